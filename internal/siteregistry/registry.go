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

// Package siteregistry indexes the configured sites by every domain
// name they claim, plus an optional wildcard fallback, and resolves
// the effective host for an inbound connection according to the
// configured host-detection policy. The registry is built once at
// startup and is never mutated afterwards, so lookups require no
// locking.
package siteregistry

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"golang.org/x/net/idna"

	"github.com/aosasona/chimney/internal/acme"
	"github.com/aosasona/chimney/internal/certstore"
	"github.com/aosasona/chimney/internal/chimneyconfig"
)

// Site is the runtime form of a SiteConfig: validated configuration,
// its canonical absolute root, and (for HTTPS-enabled sites) the
// certificate slot a TLS handshake reads from plus, for ACME-mode
// sites, the manager driving issuance and renewal.
type Site struct {
	Config chimneyconfig.SiteConfig
	Root   string
	Slot   *certstore.Slot
	ACME   *acme.Manager
}

// IsWildcard reports whether this site is the registry's default.
func (s *Site) IsWildcard() bool {
	for _, d := range s.Config.DomainNames {
		if d == "*" {
			return true
		}
	}
	return false
}

// HTTPSEnabled reports whether this site terminates TLS.
func (s *Site) HTTPSEnabled() bool {
	return s.Config.HTTPS != nil && s.Config.HTTPS.Enabled
}

// Registry is the immutable, built-once index of sites by domain.
type Registry struct {
	byDomain map[string]*Site
	wildcard *Site
	all      []*Site
}

// ProvisionCert is called once per HTTPS-enabled site during Build.
// It is responsible for getting a certificate into a Slot by
// whichever mode the site's HttpsConfig names (manual load,
// self-signed generation, or ACME issuance) and returns that Slot
// plus, for ACME-mode sites, the Manager that will drive renewal.
type ProvisionCert func(cfg chimneyconfig.SiteConfig) (*certstore.Slot, *acme.Manager, error)

// Build canonicalizes each site's root and assembles the registry,
// enforcing the one-site-per-domain and at-most-one-wildcard
// invariants (already checked by chimneyconfig.Validate, but
// re-checked here since Build is the authoritative constructor for
// any caller that assembles sites directly).
func Build(sites []chimneyconfig.SiteConfig, provisionCert ProvisionCert) (*Registry, error) {
	reg := &Registry{byDomain: make(map[string]*Site)}

	for _, cfg := range sites {
		root, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("site %q: resolving root: %w", cfg.Name, err)
		}
		root, err = filepath.EvalSymlinks(root)
		if err != nil {
			return nil, fmt.Errorf("site %q: canonicalizing root: %w", cfg.Name, err)
		}

		site := &Site{Config: cfg, Root: root}

		if site.HTTPSEnabled() && provisionCert != nil {
			slot, mgr, err := provisionCert(cfg)
			if err != nil {
				return nil, fmt.Errorf("site %q: %w", cfg.Name, err)
			}
			site.Slot = slot
			site.ACME = mgr
		}

		reg.all = append(reg.all, site)

		for _, domain := range cfg.DomainNames {
			if domain == "*" {
				if reg.wildcard != nil {
					return nil, fmt.Errorf("site %q: wildcard already registered by %q", cfg.Name, reg.wildcard.Config.Name)
				}
				reg.wildcard = site
				continue
			}
			key := normalizeHost(domain)
			if existing, ok := reg.byDomain[key]; ok {
				return nil, fmt.Errorf("domain %q registered by both %q and %q", key, existing.Config.Name, cfg.Name)
			}
			reg.byDomain[key] = site
		}
	}

	return reg, nil
}

// All returns every registered site, in load order.
func (r *Registry) All() []*Site { return r.all }

// Wildcard returns the wildcard site, or nil if none is registered.
func (r *Registry) Wildcard() *Site { return r.wildcard }

// Lookup resolves host (which may carry a ":port" suffix) to a site:
// an exact domain match first, the wildcard site otherwise, or nil if
// neither exists (spec.md §4.3).
func (r *Registry) Lookup(host string) *Site {
	host = stripPort(host)
	host = normalizeHost(host)
	if site, ok := r.byDomain[host]; ok {
		return site
	}
	return r.wildcard
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// normalizeHost puts a domain name (ASCII or Unicode/IDN) into the
// canonical lowercase-ASCII form used as the registry's map key, so
// that a request for "café.example" and one already configured as
// "xn--caf-dma.example" resolve to the same site. idna conversion can
// fail on malformed input (e.g. invalid label lengths); in that case
// fall back to a plain lowercase so an odd domain still gets a
// deterministic, if unconverted, key rather than causing a lookup
// panic or silent miss.
func normalizeHost(host string) string {
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return strings.ToLower(host)
}

// EffectiveHost picks the hostname to look up according to the
// server's host_detection policy (spec.md §4.3): sni when
// host_detection=sni and the connection is TLS, header when =header,
// and for auto, SNI on TLS connections else the Host header.
func EffectiveHost(policy chimneyconfig.HostDetection, isTLS bool, sni, hostHeader string) string {
	switch policy {
	case chimneyconfig.HostDetectionSNI:
		return sni
	case chimneyconfig.HostDetectionHeader:
		return hostHeader
	default: // auto
		if isTLS && sni != "" {
			return sni
		}
		return hostHeader
	}
}
