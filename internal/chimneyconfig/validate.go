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

package chimneyconfig

import (
	"os"
	"strings"
)

// Validate enforces the invariants of spec.md §3: every non-wildcard
// domain maps to exactly one site, at most one wildcard site exists,
// every site root resolves to an existing directory, and every
// HTTPS-enabled site names exactly one certificate-source mode.
func Validate(l *Loaded) error {
	if len(l.Sites) == 0 {
		return nil // allowed during init; the caller logs this.
	}

	seenDomains := make(map[string]string, len(l.Sites))
	wildcardSite := ""

	for i := range l.Sites {
		site := &l.Sites[i]

		info, err := os.Stat(site.Root)
		if err != nil {
			return configErrorf("site %q: root %q: %v", site.Name, site.Root, err)
		}
		if !info.IsDir() {
			return configErrorf("site %q: root %q is not a directory", site.Name, site.Root)
		}

		if len(site.DomainNames) == 0 {
			return configErrorf("site %q: domain_names must be non-empty", site.Name)
		}

		for _, domain := range site.DomainNames {
			if domain == "*" {
				if wildcardSite != "" && wildcardSite != site.Name {
					return configErrorf("site %q: a wildcard site is already registered by %q", site.Name, wildcardSite)
				}
				wildcardSite = site.Name
				continue
			}
			domain = strings.ToLower(domain)
			if owner, ok := seenDomains[domain]; ok && owner != site.Name {
				return configErrorf("domain %q is registered by both %q and %q", domain, owner, site.Name)
			}
			seenDomains[domain] = site.Name
		}

		if site.HTTPS != nil && site.HTTPS.Enabled {
			if err := validateHTTPS(site); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateHTTPS(site *SiteConfig) error {
	h := site.HTTPS
	modes := 0
	if h.CertFile != "" || h.KeyFile != "" {
		modes++
		if h.CertFile == "" || h.KeyFile == "" {
			return configErrorf("site %q: manual https mode requires both cert_file and key_file", site.Name)
		}
	}
	if h.UseSelfSigned {
		modes++
	}
	if h.AutoIssue {
		modes++
		if h.ACMEEmail == "" {
			return configErrorf("site %q: acme mode requires acme_email", site.Name)
		}
	}
	if modes == 0 {
		return configErrorf("site %q: https.enabled requires one of manual, self-signed, or acme mode", site.Name)
	}
	if modes > 1 {
		return configErrorf("site %q: https config names more than one certificate-source mode", site.Name)
	}
	return nil
}
