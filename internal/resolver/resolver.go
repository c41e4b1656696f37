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

// Package resolver implements the pure (site, request path) ->
// ResolvedAction function described in spec.md §4.4. It performs no
// I/O beyond the filesystem stats strictly required to decide the
// action, and it never panics: every failure mode is expressed as a
// ResolvedAction or an error.
package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/aosasona/chimney/internal/chimneyconfig"
	"github.com/aosasona/chimney/internal/mimetype"
	"github.com/aosasona/chimney/internal/pathsafe"
)

// ActionKind discriminates the ResolvedAction variant.
type ActionKind int

const (
	ActionServeFile ActionKind = iota
	ActionRedirect
	ActionNotFound
)

// ResolvedAction is the tagged result of Resolve.
type ResolvedAction struct {
	Kind ActionKind

	// ServeFile fields.
	AbsolutePath string
	MediaType    string
	IsIndex      bool

	// Redirect fields.
	Location string
	Status   int

	// NotFound fields.
	FallbackAttempted bool
}

// ErrForbidden is returned when the requested path cannot be served
// because it would escape the site root (spec.md §4.1); the pipeline
// translates it to an HTTP 403.
var ErrForbidden = errors.New("forbidden")

// Site is the minimal view of a site the resolver needs; it is
// satisfied by siteregistry.Site without creating an import cycle
// between the two packages.
type Site struct {
	Root             string
	DefaultIndexFile string
	FallbackFile     string
	Rewrites         map[string]chimneyconfig.Rewrite
	Redirects        map[string]chimneyconfig.Redirect
}

// Resolve implements spec.md §4.4's strict ordering: redirect table,
// then rewrite table, then filesystem resolution with directory-index
// fallback, then the site fallback file, then NotFound.
func Resolve(site Site, rawPath string) (ResolvedAction, error) {
	normalized := pathsafe.Normalize(rawPath)

	if redirect, ok := site.Redirects[normalized]; ok {
		return ResolvedAction{
			Kind:     ActionRedirect,
			Location: redirect.To,
			Status:   redirect.Status(),
		}, nil
	}

	relPath := normalized
	if rewrite, ok := site.Rewrites[normalized]; ok {
		relPath = "/" + strings.TrimPrefix(rewrite.To, "/")
	}

	action, served, err := resolveFilesystem(site, relPath)
	if err != nil {
		return ResolvedAction{}, err
	}
	if served {
		return action, nil
	}

	if site.FallbackFile != "" {
		fallbackAbs, err := pathsafe.Resolve(site.Root, "/"+strings.TrimPrefix(site.FallbackFile, "/"))
		if err != nil {
			if errors.Is(err, pathsafe.ErrEscape) {
				return ResolvedAction{}, ErrForbidden
			}
			return ResolvedAction{}, err
		}
		if info, statErr := os.Stat(fallbackAbs); statErr == nil && info.Mode().IsRegular() {
			return ResolvedAction{
				Kind:         ActionServeFile,
				AbsolutePath: fallbackAbs,
				MediaType:    mimetype.ForPath(fallbackAbs, false),
			}, nil
		}
	}

	return ResolvedAction{Kind: ActionNotFound, FallbackAttempted: site.FallbackFile != ""}, nil
}

// resolveFilesystem runs path safety against relPath and, if it
// names a regular file, a ServeFile action; if it names a directory,
// attempts the default index file inside it. served reports whether
// a ResolvedAction was produced (as opposed to falling through to the
// site fallback).
func resolveFilesystem(site Site, relPath string) (ResolvedAction, bool, error) {
	abs, err := pathsafe.Resolve(site.Root, relPath)
	if err != nil {
		if errors.Is(err, pathsafe.ErrEscape) || errors.Is(err, pathsafe.ErrInvalid) {
			return ResolvedAction{}, false, ErrForbidden
		}
		return ResolvedAction{}, false, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return ResolvedAction{}, false, nil
	}

	if info.Mode().IsRegular() {
		return ResolvedAction{
			Kind:         ActionServeFile,
			AbsolutePath: abs,
			MediaType:    mimetype.ForPath(abs, false),
		}, true, nil
	}

	if info.IsDir() {
		indexPath := filepath.Join(abs, site.DefaultIndexFile)
		if indexInfo, err := os.Stat(indexPath); err == nil && indexInfo.Mode().IsRegular() {
			return ResolvedAction{
				Kind:         ActionServeFile,
				AbsolutePath: indexPath,
				MediaType:    mimetype.ForPath(indexPath, true),
				IsIndex:      true,
			}, true, nil
		}
	}

	return ResolvedAction{}, false, nil
}
