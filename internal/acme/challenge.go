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

package acme

import (
	"sync"
	"time"
)

// challengeTTL bounds how long an installed HTTP-01 token is honored
// even if the manager never explicitly removes it (spec.md §3).
const challengeTTL = 5 * time.Minute

// ChallengeStore is the process-wide mapping from HTTP-01 challenge
// token to key-authorization, written by the ACME manager and read by
// the request pipeline (spec.md §3, §4.9). It is safe for concurrent
// use by many readers and the (serialized) manager writer.
type ChallengeStore struct {
	mu      sync.Mutex
	entries map[string]challengeEntry
}

type challengeEntry struct {
	keyAuthorization string
	expiresAt        time.Time
}

// NewChallengeStore builds an empty store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{entries: make(map[string]challengeEntry)}
}

// Put installs a token -> key-authorization mapping, valid for up to
// challengeTTL.
func (s *ChallengeStore) Put(token, keyAuthorization string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = challengeEntry{
		keyAuthorization: keyAuthorization,
		expiresAt:        time.Now().Add(challengeTTL),
	}
}

// Get returns the key-authorization for token, if present and not
// expired.
func (s *ChallengeStore) Get(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.keyAuthorization, true
}

// Remove clears a token, normally called once validation completes
// (successfully or not).
func (s *ChallengeStore) Remove(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}
