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

// Package chimneyconfig holds the strongly-typed server and per-site
// configuration model, together with TOML loading, legacy-schema
// normalization, and validation.
package chimneyconfig

import "time"

// HostDetection selects which source the server trusts for the
// request's effective hostname.
type HostDetection string

const (
	HostDetectionAuto   HostDetection = "auto"
	HostDetectionHeader HostDetection = "header"
	HostDetectionSNI    HostDetection = "sni"
)

// ServerConfig is the process-wide configuration.
type ServerConfig struct {
	Host            string            `toml:"host"`
	HTTPPort        int               `toml:"http_port"`
	HTTPSPort       int               `toml:"https_port"`
	SitesDirectory  string            `toml:"sites_directory"`
	CacheDirectory  string            `toml:"cache_directory"`
	HostDetection   HostDetection     `toml:"host_detection"`
	LogLevel        string            `toml:"log_level"`
	ExtraHeaders    OrderedHeaders    `toml:"-"`
	RawExtraHeaders map[string]string `toml:"headers"`

	// Legacy single-site fields (§6), folded into an implicit
	// wildcard SiteConfig by foldLegacySite when SitesDirectory is unset.
	RootDir          string                 `toml:"root_dir"`
	FallbackDocument string                 `toml:"fallback_document"`
	EnableLogging    *bool                  `toml:"enable_logging"`
	RawRewrites      map[string]interface{} `toml:"rewrites"`
	RawRedirects     map[string]interface{} `toml:"redirects"`

	// ConfigDir is not a TOML field; it is set by the loader to the
	// directory the root config file lives in, used to resolve
	// relative paths (cache_directory default, site roots).
	ConfigDir string `toml:"-"`
}

const (
	DefaultHTTPPort  = 80
	DefaultHTTPSPort = 443
)

// SiteConfig is the per-site configuration, either loaded from a
// sites_directory subdirectory's chimney.toml, or synthesized from
// the root config's legacy single-site fields.
type SiteConfig struct {
	// Name is the site's identifier: the sites_directory subdirectory
	// name, or "default" for a folded single-site config. It is also
	// the certificate-cache and ACME-account directory name, so it
	// is restricted to [A-Za-z0-9_-].
	Name string `toml:"-"`

	Root             string                 `toml:"root"`
	DomainNames      []string               `toml:"domain_names"`
	FallbackFile     string                 `toml:"fallback_file"`
	DefaultIndexFile string                 `toml:"default_index_file"`
	RawRewrites      map[string]interface{} `toml:"rewrites"`
	RawRedirects     map[string]interface{} `toml:"redirects"`
	RawExtraHeaders  map[string]string      `toml:"headers"`
	ExtraHeaders     OrderedHeaders         `toml:"-"`
	HTTPS            *HttpsConfig           `toml:"https"`

	// Rewrites and Redirects are the decoded, validated form of
	// RawRewrites/RawRedirects, populated by normalizeSite.
	Rewrites  map[string]Rewrite  `toml:"-"`
	Redirects map[string]Redirect `toml:"-"`
}

const DefaultIndexFile = "index.html"

// HttpsConfig configures TLS for a site. Exactly one of the three
// certificate-source modes (manual, self-signed, ACME) may be set;
// Validate enforces this.
type HttpsConfig struct {
	Enabled      bool `toml:"enabled"`
	AutoRedirect bool `toml:"auto_redirect"`

	// Manual mode.
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// Self-signed mode.
	UseSelfSigned bool `toml:"use_self_signed"`

	// ACME mode.
	AutoIssue     bool   `toml:"auto_issue"`
	ACMEEmail     string `toml:"acme_email"`
	ACMEDirectory string `toml:"acme_directory"`
}

// LetsEncryptProductionDirectory is the default ACME directory URL
// used when HttpsConfig.ACMEDirectory is empty.
const LetsEncryptProductionDirectory = "https://acme-v02.api.letsencrypt.org/directory"

// CertSource identifies where a site's active certificate came from.
type CertSource string

const (
	CertSourceManual     CertSource = "manual"
	CertSourceSelfSigned CertSource = "self-signed"
	CertSourceACME       CertSource = "acme"
)

// Mode reports which HTTPS certificate mode is configured.
func (h *HttpsConfig) Mode() CertSource {
	switch {
	case h.AutoIssue:
		return CertSourceACME
	case h.UseSelfSigned:
		return CertSourceSelfSigned
	default:
		return CertSourceManual
	}
}

// Rewrite is the decoded form of a rewrites table entry.
type Rewrite struct {
	To string
}

// Redirect is the decoded form of a redirects table entry.
type Redirect struct {
	To     string
	Replay bool
}

// Status returns the HTTP status code for this redirect: 308 when
// Replay is set (preserves method/body on the client's re-request),
// 301 otherwise.
func (r Redirect) Status() int {
	if r.Replay {
		return 308
	}
	return 301
}

// renewalInterval is how often the background ACME renewal task
// sweeps all ACME-mode sites (spec.md §4.7).
const renewalInterval = 24 * time.Hour

// RenewalInterval exposes renewalInterval to the supervisor package.
func RenewalInterval() time.Duration { return renewalInterval }
