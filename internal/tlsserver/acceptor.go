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

// Package tlsserver builds the SNI-dispatched tls.Config used by the
// HTTPS listener: the certificate-selection callback looks up the
// site for the handshake's SNI hostname and returns its active
// CertEntry, falling back to the wildcard site when SNI is absent
// (spec.md §4.8).
package tlsserver

import (
	"crypto/tls"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aosasona/chimney/internal/siteregistry"
)

// Config builds a *tls.Config whose GetCertificate callback resolves
// the site via reg and returns its certificate slot's current entry.
// TLS 1.2 is the enforced minimum (spec.md §4.8).
func Config(reg *siteregistry.Registry, log *zap.Logger) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			return getCertificate(reg, log, hello)
		},
	}
}

func getCertificate(reg *siteregistry.Registry, log *zap.Logger, hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	sni := strings.ToLower(hello.ServerName)

	var site *siteregistry.Site
	if sni != "" {
		site = reg.Lookup(sni)
	} else {
		site = reg.Wildcard()
	}

	if site == nil || !site.HTTPSEnabled() || site.Slot == nil {
		log.Debug("TLS handshake aborted: no site for SNI", zap.String("sni", sni))
		return nil, fmt.Errorf("no certificate available for %q", sni)
	}

	entry := site.Slot.Get()
	if entry == nil {
		log.Debug("TLS handshake aborted: certificate not yet issued", zap.String("site", site.Config.Name))
		return nil, fmt.Errorf("no certificate cached yet for site %q", site.Config.Name)
	}

	return entry.Certificate, nil
}
