// Copyright 2026 The Chimney Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package certstore is the on-disk cache of certificate/key material
// per site, plus the in-memory slot a TLS handshake reads from. Disk
// writes are atomic (temp file + fsync + rename); the in-memory slot
// is guarded by a sync.RWMutex so concurrent handshakes never block
// each other and a renewal only takes the write lock for the instant
// it swaps the pointer (spec.md §4.6, §5).
package certstore

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aosasona/chimney/internal/chimneyconfig"
)

// CertEntry is an immutable, fully-parsed certificate ready to be
// handed to a TLS handshake.
type CertEntry struct {
	Certificate *tls.Certificate
	NotBefore   time.Time
	NotAfter    time.Time
	Source      chimneyconfig.CertSource
}

// ExpiresWithin reports whether the entry's not-after is less than d
// away from now.
func (c *CertEntry) ExpiresWithin(d time.Duration) bool {
	return time.Until(c.NotAfter) < d
}

// Slot holds the single active CertEntry for one site, behind a
// reader-writer lock (spec.md §5: "readers never block each other;
// writers take the write lock only to swap the entry").
type Slot struct {
	mu    sync.RWMutex
	entry *CertEntry
}

// Get returns the currently active entry, or nil if none has been
// installed yet.
func (s *Slot) Get() *CertEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry
}

// Swap atomically installs a new entry, replacing whatever was
// previously active.
func (s *Slot) Swap(entry *CertEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = entry
}

// Store is the on-disk cache directory layout: cache_directory/<site
// name>/{cert.pem,key.pem,account.key}.
type Store struct {
	baseDir string
}

// NewStore builds a Store rooted at baseDir (ServerConfig.CacheDirectory).
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) siteDir(siteName string) string {
	return filepath.Join(s.baseDir, siteName)
}

// CertPath and KeyPath are the conventional PEM file locations for a
// site (spec.md §6).
func (s *Store) CertPath(siteName string) string { return filepath.Join(s.siteDir(siteName), "cert.pem") }
func (s *Store) KeyPath(siteName string) string  { return filepath.Join(s.siteDir(siteName), "key.pem") }
func (s *Store) AccountKeyPath(siteName string) string {
	return filepath.Join(s.siteDir(siteName), "account.key")
}

// Load reads cert.pem/key.pem for siteName from disk, if present.
// ok is false (with a nil error) when no cached material exists yet.
func (s *Store) Load(siteName string) (certPEM, keyPEM []byte, ok bool, err error) {
	certPEM, err = os.ReadFile(s.CertPath(siteName))
	if os.IsNotExist(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("reading cert.pem: %w", err)
	}
	keyPEM, err = os.ReadFile(s.KeyPath(siteName))
	if err != nil {
		return nil, nil, false, fmt.Errorf("reading key.pem: %w", err)
	}
	return certPEM, keyPEM, true, nil
}

// Save writes cert.pem and key.pem atomically: write to a sibling
// temp file, fsync, rename over the destination. The key file is
// written with mode 0600.
func (s *Store) Save(siteName string, certPEM, keyPEM []byte) error {
	dir := s.siteDir(siteName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	if err := atomicWrite(s.CertPath(siteName), certPEM, 0o644); err != nil {
		return fmt.Errorf("writing cert.pem: %w", err)
	}
	if err := atomicWrite(s.KeyPath(siteName), keyPEM, 0o600); err != nil {
		return fmt.Errorf("writing key.pem: %w", err)
	}
	return nil
}

// SaveAccountKey persists the ACME account private key for siteName,
// with the same atomic-write-then-rename discipline and 0600
// permissions as the certificate key.
func (s *Store) SaveAccountKey(siteName string, keyPEM []byte) error {
	dir := s.siteDir(siteName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	return atomicWrite(s.AccountKeyPath(siteName), keyPEM, 0o600)
}

// LoadAccountKey reads a previously saved ACME account key, if any.
func (s *Store) LoadAccountKey(siteName string) (keyPEM []byte, ok bool, err error) {
	keyPEM, err = os.ReadFile(s.AccountKeyPath(siteName))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return keyPEM, true, nil
}

func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
