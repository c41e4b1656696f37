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

package siteregistry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aosasona/chimney/internal/acme"
	"github.com/aosasona/chimney/internal/certstore"
	"github.com/aosasona/chimney/internal/chimneyconfig"
)

func TestBuildLookupExactAndWildcard(t *testing.T) {
	sites := []chimneyconfig.SiteConfig{
		{Name: "main", Root: t.TempDir(), DomainNames: []string{"example.com", "www.example.com"}},
		{Name: "catchall", Root: t.TempDir(), DomainNames: []string{"*"}},
	}

	reg, err := Build(sites, nil)
	require.NoError(t, err)

	require.Equal(t, "main", reg.Lookup("example.com").Config.Name)
	require.Equal(t, "main", reg.Lookup("WWW.EXAMPLE.COM").Config.Name)
	require.Equal(t, "main", reg.Lookup("example.com:8443").Config.Name)
	require.Equal(t, "catchall", reg.Lookup("nowhere.test").Config.Name)
	require.True(t, reg.Wildcard().IsWildcard())
}

func TestBuildRejectsDuplicateDomain(t *testing.T) {
	sites := []chimneyconfig.SiteConfig{
		{Name: "a", Root: t.TempDir(), DomainNames: []string{"dup.test"}},
		{Name: "b", Root: t.TempDir(), DomainNames: []string{"dup.test"}},
	}

	_, err := Build(sites, nil)
	require.ErrorContains(t, err, "dup.test")
}

func TestBuildRejectsSecondWildcard(t *testing.T) {
	sites := []chimneyconfig.SiteConfig{
		{Name: "a", Root: t.TempDir(), DomainNames: []string{"*"}},
		{Name: "b", Root: t.TempDir(), DomainNames: []string{"*"}},
	}

	_, err := Build(sites, nil)
	require.ErrorContains(t, err, "wildcard")
}

func TestBuildCallsProvisionCertForHTTPSSites(t *testing.T) {
	var called []string
	sites := []chimneyconfig.SiteConfig{
		{Name: "plain", Root: t.TempDir(), DomainNames: []string{"plain.test"}},
		{
			Name:        "secure",
			Root:        t.TempDir(),
			DomainNames: []string{"secure.test"},
			HTTPS:       &chimneyconfig.HttpsConfig{Enabled: true},
		},
	}

	reg, err := Build(sites, func(cfg chimneyconfig.SiteConfig) (*certstore.Slot, *acme.Manager, error) {
		called = append(called, cfg.Name)
		return &certstore.Slot{}, nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"secure"}, called)
	require.Nil(t, reg.Lookup("plain.test").Slot)
	require.NotNil(t, reg.Lookup("secure.test").Slot)
}

func TestLookupReturnsNilWithoutWildcard(t *testing.T) {
	sites := []chimneyconfig.SiteConfig{
		{Name: "only", Root: t.TempDir(), DomainNames: []string{"only.test"}},
	}

	reg, err := Build(sites, nil)
	require.NoError(t, err)
	require.Nil(t, reg.Lookup("elsewhere.test"))
}

func TestEffectiveHost(t *testing.T) {
	require.Equal(t, "sni.test", EffectiveHost(chimneyconfig.HostDetectionSNI, true, "sni.test", "header.test"))
	require.Equal(t, "header.test", EffectiveHost(chimneyconfig.HostDetectionHeader, true, "sni.test", "header.test"))
	require.Equal(t, "sni.test", EffectiveHost(chimneyconfig.HostDetectionAuto, true, "sni.test", "header.test"))
	require.Equal(t, "header.test", EffectiveHost(chimneyconfig.HostDetectionAuto, false, "", "header.test"))
}
