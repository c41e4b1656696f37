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

// Package supervisor wires the site registry, TLS acceptor, request
// pipeline, and ACME renewal loop into a running server and owns its
// graceful shutdown (spec.md §4.10).
package supervisor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aosasona/chimney/internal/acme"
	"github.com/aosasona/chimney/internal/certstore"
	"github.com/aosasona/chimney/internal/chimneyconfig"
	"github.com/aosasona/chimney/internal/pipeline"
	"github.com/aosasona/chimney/internal/siteregistry"
	"github.com/aosasona/chimney/internal/tlsserver"
)

const (
	idleTimeout      = 30 * time.Second
	shutdownGrace    = 15 * time.Second
	maxRequestsPerConn = 256
)

// ExitBindFailure is the process exit code for a fatal listener bind
// error at startup (spec.md §4.10).
const ExitBindFailure = 2

// Supervisor owns the listeners and background tasks for one running
// chimney process.
type Supervisor struct {
	server     chimneyconfig.ServerConfig
	registry   *siteregistry.Registry
	log        *zap.Logger
	challenges *acme.ChallengeStore
	events     chan acme.Event

	httpServer  *http.Server
	httpsServer *http.Server

	wg sync.WaitGroup
}

// New provisions every HTTPS-enabled site's certificate (per the
// mode-specific loading policy in spec.md §4.6), builds the site
// registry, and returns a Supervisor ready to Run.
func New(loaded *chimneyconfig.Loaded, log *zap.Logger) (*Supervisor, error) {
	store := certstore.NewStore(loaded.Server.CacheDirectory)
	challenges := acme.NewChallengeStore()
	events := make(chan acme.Event, 16)

	provision := func(cfg chimneyconfig.SiteConfig) (*certstore.Slot, *acme.Manager, error) {
		return provisionSite(cfg, store, challenges, log, events)
	}

	registry, err := siteregistry.Build(loaded.Sites, provision)
	if err != nil {
		return nil, fmt.Errorf("building site registry: %w", err)
	}

	return &Supervisor{
		server:     loaded.Server,
		registry:   registry,
		log:        log,
		challenges: challenges,
		events:     events,
	}, nil
}

// provisionSite implements spec.md §4.6's per-mode loading policy.
func provisionSite(cfg chimneyconfig.SiteConfig, store *certstore.Store, challenges *acme.ChallengeStore, log *zap.Logger, events chan acme.Event) (*certstore.Slot, *acme.Manager, error) {
	switch cfg.HTTPS.Mode() {
	case chimneyconfig.CertSourceManual:
		certPEM, err := os.ReadFile(cfg.HTTPS.CertFile)
		if err != nil {
			return nil, nil, fmt.Errorf("reading cert_file: %w", err)
		}
		keyPEM, err := os.ReadFile(cfg.HTTPS.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("reading key_file: %w", err)
		}
		entry, err := certstore.ParseCertEntry(certPEM, keyPEM, chimneyconfig.CertSourceManual)
		if err != nil {
			return nil, nil, err
		}
		slot := &certstore.Slot{}
		slot.Swap(entry)
		return slot, nil, nil

	case chimneyconfig.CertSourceSelfSigned:
		if certPEM, keyPEM, ok, err := store.Load(cfg.Name); err == nil && ok {
			if entry, err := certstore.ParseCertEntry(certPEM, keyPEM, chimneyconfig.CertSourceSelfSigned); err == nil && !entry.ExpiresWithin(30*24*time.Hour) {
				slot := &certstore.Slot{}
				slot.Swap(entry)
				return slot, nil, nil
			}
		}
		certPEM, keyPEM, err := acme.GenerateSelfSigned(cfg.DomainNames)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Save(cfg.Name, certPEM, keyPEM); err != nil {
			return nil, nil, err
		}
		entry, err := certstore.ParseCertEntry(certPEM, keyPEM, chimneyconfig.CertSourceSelfSigned)
		if err != nil {
			return nil, nil, err
		}
		slot := &certstore.Slot{}
		slot.Swap(entry)
		return slot, nil, nil

	case chimneyconfig.CertSourceACME:
		mgr := acme.NewManager(cfg.Name, cfg.HTTPS, cfg.DomainNames, store, challenges, log, events)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := mgr.EnsureCert(ctx); err != nil {
			log.Warn("initial ACME issuance failed; site will refuse TLS connections until renewal succeeds",
				zap.String("site", cfg.Name), zap.Error(err))
		}
		return mgr.Slot(), mgr, nil
	}

	return nil, nil, fmt.Errorf("unknown https mode for site %q", cfg.Name)
}

// Run starts the HTTP listener unconditionally, the HTTPS listener if
// any site has HTTPS enabled, and the background ACME renewal task,
// then blocks until ctx is cancelled or a termination signal arrives,
// performing the graceful shutdown described in spec.md §4.10.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	plainHandler := pipeline.New(&pipeline.Handler{
		Registry:      s.registry,
		Challenges:    s.challenges,
		HostDetection: s.server.HostDetection,
		ExtraHeaders:  s.server.ExtraHeaders,
		Log:           s.log,
		IsTLS:         false,
	})

	addr := fmt.Sprintf("%s:%d", s.server.Host, s.server.HTTPPort)
	httpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding http listener on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:     limitRequestsPerConn(plainHandler),
		IdleTimeout: idleTimeout,
		ConnContext: connContext,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("http listener started", zap.String("addr", addr))
		if err := s.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http listener stopped unexpectedly", zap.Error(err))
		}
	}()

	if s.anyHTTPSEnabled() {
		if err := s.startHTTPS(); err != nil {
			return err
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRenewalLoop(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logEvents(ctx)
	}()

	<-ctx.Done()
	s.log.Info("shutting down")
	return s.shutdown()
}

func (s *Supervisor) anyHTTPSEnabled() bool {
	for _, site := range s.registry.All() {
		if site.HTTPSEnabled() {
			return true
		}
	}
	return false
}

func (s *Supervisor) startHTTPS() error {
	secureHandler := pipeline.New(&pipeline.Handler{
		Registry:      s.registry,
		Challenges:    s.challenges,
		HostDetection: s.server.HostDetection,
		ExtraHeaders:  s.server.ExtraHeaders,
		Log:           s.log,
		IsTLS:         true,
	})

	addr := fmt.Sprintf("%s:%d", s.server.Host, s.server.HTTPSPort)
	tcpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding https listener on %s: %w", addr, err)
	}

	tlsConfig := tlsserver.Config(s.registry, s.log)
	tlsListener := tls.NewListener(tcpListener, tlsConfig)

	s.httpsServer = &http.Server{
		Handler:     limitRequestsPerConn(secureHandler),
		IdleTimeout: idleTimeout,
		TLSConfig:   tlsConfig,
		ConnContext: connContext,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("https listener started", zap.String("addr", addr))
		if err := s.httpsServer.Serve(tlsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("https listener stopped unexpectedly", zap.Error(err))
		}
	}()

	return nil
}

// runRenewalLoop sweeps every ACME-mode site once per
// chimneyconfig.RenewalInterval (24h), issuing a new certificate for
// any site within 30 days of expiry. Issuance across sites runs in
// parallel; within a site it is serialized by Manager itself.
func (s *Supervisor) runRenewalLoop(ctx context.Context) {
	ticker := time.NewTicker(chimneyconfig.RenewalInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var wg sync.WaitGroup
			for _, site := range s.registry.All() {
				if site.ACME == nil {
					continue
				}
				wg.Add(1)
				go func(mgr *acme.Manager) {
					defer wg.Done()
					mgr.MaybeRenew(ctx)
				}(site.ACME)
			}
			wg.Wait()
		}
	}
}

func (s *Supervisor) logEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.events:
			switch e.Name {
			case "RenewalFailed":
				s.log.Warn("acme renewal failed", zap.String("site", e.Site), zap.String("reason", e.Reason))
			default:
				s.log.Info("acme event", zap.String("event", e.Name), zap.String("site", e.Site))
			}
		}
	}
}

// shutdown stops accepting new connections and waits up to
// shutdownGrace for in-flight requests to finish.
func (s *Supervisor) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.httpsServer != nil {
		if err := s.httpsServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.wg.Wait()

	return errors.Join(errs...)
}
