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

// Package acme drives the per-site ACME HTTP-01 issuance and renewal
// state machine described in spec.md §4.7, against the low-level
// protocol client in golang.org/x/crypto/acme. One Manager is created
// per ACME-mode site; issuance is serialized per site by an internal
// mutex, while different sites' managers run fully independently so
// one site's ACME failure never blocks another (spec.md §5, §7).
package acme

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
	"time"

	xacme "golang.org/x/crypto/acme"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aosasona/chimney/internal/certstore"
	"github.com/aosasona/chimney/internal/chimneyconfig"
)

// State is one node of the per-site ACME state machine in spec.md
// §4.7's diagram.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateValidating
	StateFinalizing
	StateCached
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateValidating:
		return "validating"
	case StateFinalizing:
		return "finalizing"
	case StateCached:
		return "cached"
	default:
		return "unknown"
	}
}

// Event names the observable lifecycle events a Manager emits for
// the supervisor to log (spec.md §4.7). IssuanceID correlates every
// event and the issuance log lines produced by a single issueWithID
// run (the per-state debug lines written by setState do not carry
// it), so a renewal
// failure can be traced back through the logs to the exact attempt
// that produced it even when multiple sites are issuing concurrently.
type Event struct {
	Name       string // CertCached, RenewalStarted, RenewalFailed
	Site       string
	Reason     string
	IssuanceID string
}

const (
	minBackoff   = 1 * time.Second
	maxBackoff   = 30 * time.Second
	backoffLimit = 2 * time.Minute
	renewBefore  = 30 * 24 * time.Hour
)

// Manager owns one ACME site's state, its HTTP-01 challenge
// installation, and its active certificate slot.
type Manager struct {
	siteName string
	domains  []string
	email    string
	directory string

	store     *certstore.Store
	challenges *ChallengeStore
	slot      *certstore.Slot
	log       *zap.Logger
	events    chan<- Event

	mu    sync.Mutex // serializes issuance for this site
	state State
}

// NewManager constructs a Manager for one site. events may be nil if
// the caller does not want to observe lifecycle events.
func NewManager(siteName string, cfg *chimneyconfig.HttpsConfig, domains []string, store *certstore.Store, challenges *ChallengeStore, log *zap.Logger, events chan<- Event) *Manager {
	return &Manager{
		siteName:   siteName,
		domains:    domains,
		email:      cfg.ACMEEmail,
		directory:  cfg.ACMEDirectory,
		store:      store,
		challenges: challenges,
		slot:       &certstore.Slot{},
		log:        log.Named("acme").With(zap.String("site", siteName)),
		events:     events,
	}
}

// Slot exposes the site's certificate slot for the TLS acceptor.
func (m *Manager) Slot() *certstore.Slot { return m.slot }

// EnsureCert implements the startup loading policy of spec.md §4.6
// for ACME mode: load cached PEM if present; if absent or expiring
// within 30 days, issue synchronously so the server does not start
// accepting TLS connections for this site without a valid cert.
func (m *Manager) EnsureCert(ctx context.Context) error {
	if certPEM, keyPEM, ok, err := m.store.Load(m.siteName); err != nil {
		return err
	} else if ok {
		entry, err := certstore.ParseCertEntry(certPEM, keyPEM, chimneyconfig.CertSourceACME)
		if err == nil && !entry.ExpiresWithin(renewBefore) {
			m.slot.Swap(entry)
			m.setState(StateCached)
			return nil
		}
	}
	return m.issueWithID(ctx, uuid.NewString())
}

// MaybeRenew is called by the background renewal task once per tick
// (spec.md §4.7: every 24h). It issues a new certificate only if the
// active one expires within 30 days.
func (m *Manager) MaybeRenew(ctx context.Context) {
	entry := m.slot.Get()
	if entry != nil && !entry.ExpiresWithin(renewBefore) {
		return
	}
	issuanceID := uuid.NewString()
	m.emit(Event{Name: "RenewalStarted", Site: m.siteName, IssuanceID: issuanceID})
	if err := m.issueWithID(ctx, issuanceID); err != nil {
		m.emit(Event{Name: "RenewalFailed", Site: m.siteName, Reason: err.Error(), IssuanceID: issuanceID})
		m.log.Warn("renewal failed, keeping previous certificate if any", zap.String("issuance_id", issuanceID), zap.Error(err))
	}
}

func (m *Manager) setState(s State) {
	m.state = s
	m.log.Debug("state transition", zap.String("state", s.String()))
}

func (m *Manager) emit(e Event) {
	if m.events == nil {
		return
	}
	select {
	case m.events <- e:
	default:
	}
}

// issueWithID drives Idle -> Requesting -> Validating -> Finalizing ->
// Cached to completion, serialized against any concurrent call on
// this same Manager (spec.md §4.7: "at most one concurrent issuance
// per site"). issuanceID tags this attempt's issuance log lines and
// every Event it emits (state-transition debug lines from setState
// are not tagged), so a failure can be correlated across the logs of a
// process issuing for many sites concurrently.
func (m *Manager) issueWithID(ctx context.Context, issuanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.log.With(zap.String("issuance_id", issuanceID))

	ctx, cancel := context.WithTimeout(ctx, backoffLimit)
	defer cancel()

	m.setState(StateRequesting)
	log.Debug("issuance started")

	accountKey, err := m.loadOrCreateAccountKey()
	if err != nil {
		return fmt.Errorf("account key: %w", err)
	}

	client := &xacme.Client{
		Key:          accountKey,
		DirectoryURL: m.directory,
	}

	if _, err := client.Discover(ctx); err != nil {
		return fmt.Errorf("discovering directory: %w", err)
	}

	account := &xacme.Account{Contact: []string{"mailto:" + m.email}}
	if _, err := client.Register(ctx, account, xacme.AcceptTOS); err != nil && err != xacme.ErrAccountAlreadyExists {
		return fmt.Errorf("registering account: %w", err)
	}

	authzIDs := make([]xacme.AuthzID, 0, len(m.domains))
	for _, d := range m.domains {
		if d == "*" {
			continue
		}
		authzIDs = append(authzIDs, xacme.AuthzID{Type: "dns", Value: d})
	}
	if len(authzIDs) == 0 {
		return fmt.Errorf("no concrete domain names to request a certificate for")
	}

	order, err := client.AuthorizeOrder(ctx, authzIDs)
	if err != nil {
		return fmt.Errorf("authorizing order: %w", err)
	}

	m.setState(StateValidating)
	if err := m.validateAll(ctx, client, order); err != nil {
		m.setState(StateIdle)
		return fmt.Errorf("validating challenges: %w", err)
	}

	m.setState(StateFinalizing)
	certDER, certKey, err := m.finalize(ctx, client, order)
	if err != nil {
		m.setState(StateIdle)
		return fmt.Errorf("finalizing order: %w", err)
	}

	certPEM, keyPEM := encodePEM(certDER, certKey)
	if err := m.store.Save(m.siteName, certPEM, keyPEM); err != nil {
		return fmt.Errorf("caching certificate: %w", err)
	}

	entry, err := certstore.ParseCertEntry(certPEM, keyPEM, chimneyconfig.CertSourceACME)
	if err != nil {
		return fmt.Errorf("parsing issued certificate: %w", err)
	}
	m.slot.Swap(entry)
	m.setState(StateCached)
	log.Info("certificate cached")
	m.emit(Event{Name: "CertCached", Site: m.siteName, IssuanceID: issuanceID})
	return nil
}

// validateAll installs the HTTP-01 token for every authorization in
// order, asks the CA to validate each, and polls with the backoff
// schedule in spec.md §4.7 (1s initial, factor 2, capped at 30s,
// bounded overall by ctx's deadline).
func (m *Manager) validateAll(ctx context.Context, client *xacme.Client, order *xacme.Order) error {
	for _, authzURL := range order.AuthzURLs {
		authz, err := client.GetAuthorization(ctx, authzURL)
		if err != nil {
			return err
		}

		var challenge *xacme.Challenge
		for _, c := range authz.Challenges {
			if c.Type == "http-01" {
				challenge = c
				break
			}
		}
		if challenge == nil {
			return fmt.Errorf("no http-01 challenge offered for %s", authz.Identifier.Value)
		}

		keyAuth, err := client.HTTP01ChallengeResponse(challenge.Token)
		if err != nil {
			return err
		}
		m.challenges.Put(challenge.Token, keyAuth)
		defer m.challenges.Remove(challenge.Token)

		if _, err := client.Accept(ctx, challenge); err != nil {
			return err
		}

		if _, err := pollWithBackoff(ctx, func() (bool, error) {
			a, err := client.GetAuthorization(ctx, authzURL)
			if err != nil {
				return false, err
			}
			switch a.Status {
			case xacme.StatusValid:
				return true, nil
			case xacme.StatusInvalid:
				return false, fmt.Errorf("authorization for %s is invalid", a.Identifier.Value)
			default:
				return false, nil
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) finalize(ctx context.Context, client *xacme.Client, order *xacme.Order) ([][]byte, *ecdsa.PrivateKey, error) {
	certKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	csr, err := buildCSR(certKey, m.domains)
	if err != nil {
		return nil, nil, err
	}

	der, _, err := client.CreateOrderCert(ctx, order.FinalizeURL, csr, true)
	if err != nil {
		return nil, nil, err
	}
	return der, certKey, nil
}

func (m *Manager) loadOrCreateAccountKey() (*ecdsa.PrivateKey, error) {
	if keyPEM, ok, err := m.store.LoadAccountKey(m.siteName); err != nil {
		return nil, err
	} else if ok {
		block, _ := pem.Decode(keyPEM)
		if block == nil {
			return nil, fmt.Errorf("decoding account key PEM")
		}
		return x509.ParseECPrivateKey(block.Bytes)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := m.store.SaveAccountKey(m.siteName, pemBytes); err != nil {
		return nil, err
	}
	return key, nil
}

// pollWithBackoff calls check repeatedly until it reports done,
// returns an error, or ctx is cancelled, sleeping with the backoff
// schedule from spec.md §4.7 between attempts.
func pollWithBackoff(ctx context.Context, check func() (bool, error)) (bool, error) {
	backoff := minBackoff
	for {
		done, err := check()
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
