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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrConfig wraps any fatal configuration problem (spec.md §7
// ConfigError). Callers should treat it as non-recoverable at
// startup.
type ErrConfig struct {
	msg string
}

func (e *ErrConfig) Error() string { return e.msg }

func configErrorf(format string, args ...interface{}) error {
	return &ErrConfig{msg: fmt.Sprintf(format, args...)}
}

// Loaded bundles the fully normalized, validated configuration ready
// for the site registry to be built from.
type Loaded struct {
	Server ServerConfig
	Sites  []SiteConfig
}

// Load reads the root TOML config at path, folds in any sites under
// sites_directory (or the legacy single-site fields), and validates
// the result. It is the single entry point the "serve" CLI
// collaborator calls.
func Load(path string) (*Loaded, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, configErrorf("resolving config path %q: %v", path, err)
	}

	var server ServerConfig
	meta, err := toml.DecodeFile(absPath, &server)
	if err != nil {
		return nil, configErrorf("parsing %s: %v", absPath, err)
	}
	_ = meta

	server.ConfigDir = filepath.Dir(absPath)
	applyServerDefaults(&server)
	server.ExtraHeaders = NewOrderedHeaders(server.RawExtraHeaders)

	var sites []SiteConfig
	if server.SitesDirectory != "" {
		sites, err = loadSitesDirectory(&server)
		if err != nil {
			return nil, err
		}
	} else {
		site, err := foldLegacySite(&server)
		if err != nil {
			return nil, err
		}
		sites = []SiteConfig{site}
	}

	for i := range sites {
		if err := normalizeSite(&sites[i]); err != nil {
			return nil, configErrorf("site %q: %v", sites[i].Name, err)
		}
	}

	loaded := &Loaded{Server: server, Sites: sites}
	if err := Validate(loaded); err != nil {
		return nil, err
	}
	return loaded, nil
}

func applyServerDefaults(s *ServerConfig) {
	if s.HTTPPort == 0 {
		s.HTTPPort = DefaultHTTPPort
	}
	if s.HTTPSPort == 0 {
		s.HTTPSPort = DefaultHTTPSPort
	}
	if s.HostDetection == "" {
		s.HostDetection = HostDetectionAuto
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.CacheDirectory == "" {
		s.CacheDirectory = filepath.Join(s.ConfigDir, ".chimney", "certs")
	} else if !filepath.IsAbs(s.CacheDirectory) {
		s.CacheDirectory = filepath.Join(s.ConfigDir, s.CacheDirectory)
	}
}

var siteNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// loadSitesDirectory loads one SiteConfig per immediate subdirectory
// of sites_directory that contains its own chimney.toml (spec.md §6).
// Subdirectory names are restricted to [A-Za-z0-9_-] (see the Open
// Question in §9): a name outside that set is a configuration error
// rather than a best-effort sanitization, since silently renaming a
// site would make cache/ACME-account paths diverge from what the
// operator expects.
func loadSitesDirectory(server *ServerConfig) ([]SiteConfig, error) {
	sitesDir := server.SitesDirectory
	if !filepath.IsAbs(sitesDir) {
		sitesDir = filepath.Join(server.ConfigDir, sitesDir)
	}

	entries, err := os.ReadDir(sitesDir)
	if err != nil {
		return nil, configErrorf("reading sites_directory %q: %v", sitesDir, err)
	}

	var sites []SiteConfig
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		siteConfigPath := filepath.Join(sitesDir, name, "chimney.toml")
		if _, err := os.Stat(siteConfigPath); err != nil {
			continue
		}
		if !siteNamePattern.MatchString(name) {
			return nil, configErrorf("site directory name %q must match [A-Za-z0-9_-]", name)
		}

		var site SiteConfig
		if _, err := toml.DecodeFile(siteConfigPath, &site); err != nil {
			return nil, configErrorf("parsing %s: %v", siteConfigPath, err)
		}
		site.Name = name
		if !filepath.IsAbs(site.Root) {
			site.Root = filepath.Join(sitesDir, name, site.Root)
		}
		sites = append(sites, site)
	}

	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })
	return sites, nil
}

// foldLegacySite builds a single implicit wildcard SiteConfig from
// the root config's legacy single-site fields (root_dir,
// fallback_document, rewrites, redirects, headers), per spec.md §6.
// Other SiteConfig fields (root, domain_names, fallback_file,
// default_index_file, https) are not read from the root config; the
// folded site always has domain_names ["*"] and no HTTPS. It also
// relocates the legacy
// enable_logging flag into the server log level when no explicit
// log_level was set.
func foldLegacySite(server *ServerConfig) (SiteConfig, error) {
	site := SiteConfig{Name: "default"}

	root := server.RootDir
	if root == "" {
		return site, configErrorf("root_dir (or sites_directory) must be set")
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(server.ConfigDir, root)
	}
	site.Root = root
	site.DomainNames = []string{"*"}
	site.FallbackFile = server.FallbackDocument
	site.RawRewrites = server.RawRewrites
	site.RawRedirects = server.RawRedirects
	site.RawExtraHeaders = server.RawExtraHeaders

	if server.EnableLogging != nil && server.LogLevel == "" {
		if *server.EnableLogging {
			server.LogLevel = "trace"
		} else {
			server.LogLevel = "error"
		}
	}

	return site, nil
}

// normalizeSite fills per-site defaults and decodes the raw
// rewrite/redirect tables (which TOML hands back as either a bare
// string or a map[string]interface{} record) into the typed sum
// types Rewrite/Redirect.
func normalizeSite(site *SiteConfig) error {
	if site.DefaultIndexFile == "" {
		site.DefaultIndexFile = DefaultIndexFile
	}
	site.ExtraHeaders = NewOrderedHeaders(site.RawExtraHeaders)

	rewrites, err := decodeRewrites(site.RawRewrites)
	if err != nil {
		return err
	}
	site.Rewrites = rewrites

	redirects, err := decodeRedirects(site.RawRedirects)
	if err != nil {
		return err
	}
	site.Redirects = redirects

	if site.HTTPS != nil && site.HTTPS.ACMEDirectory == "" {
		site.HTTPS.ACMEDirectory = LetsEncryptProductionDirectory
	}

	return nil
}

func decodeRewrites(raw map[string]interface{}) (map[string]Rewrite, error) {
	out := make(map[string]Rewrite, len(raw))
	for key, value := range raw {
		if !strings.HasPrefix(key, "/") {
			return nil, configErrorf("rewrite key %q must begin with \"/\"", key)
		}
		switch v := value.(type) {
		case string:
			out[key] = Rewrite{To: v}
		case map[string]interface{}:
			to, _ := v["to"].(string)
			if to == "" {
				return nil, configErrorf("rewrite %q: record form requires a \"to\" string", key)
			}
			out[key] = Rewrite{To: to}
		default:
			return nil, configErrorf("rewrite %q: unsupported value type %T", key, value)
		}
	}
	return out, nil
}

func decodeRedirects(raw map[string]interface{}) (map[string]Redirect, error) {
	out := make(map[string]Redirect, len(raw))
	for key, value := range raw {
		if !strings.HasPrefix(key, "/") {
			return nil, configErrorf("redirect key %q must begin with \"/\"", key)
		}
		switch v := value.(type) {
		case string:
			out[key] = Redirect{To: v}
		case map[string]interface{}:
			to, _ := v["to"].(string)
			if to == "" {
				return nil, configErrorf("redirect %q: record form requires a \"to\" string", key)
			}
			replay, _ := v["replay"].(bool)
			out[key] = Redirect{To: to, Replay: replay}
		default:
			return nil, configErrorf("redirect %q: unsupported value type %T", key, value)
		}
	}
	return out, nil
}
