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

// Package pipeline implements the per-request handling described in
// spec.md §4.9: ACME HTTP-01 challenge interception, site lookup,
// the HTTP->HTTPS auto-redirect, and dispatch to the resolver and
// responder.
package pipeline

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aosasona/chimney/internal/acme"
	"github.com/aosasona/chimney/internal/chimneyconfig"
	"github.com/aosasona/chimney/internal/resolver"
	"github.com/aosasona/chimney/internal/respond"
	"github.com/aosasona/chimney/internal/siteregistry"
)

const acmeChallengePrefix = "/.well-known/acme-challenge/"

// Handler is the root HTTP handler shared by the HTTP and HTTPS
// listeners. IsTLS must be set per-listener: the HTTP listener passes
// false, the HTTPS listener true.
type Handler struct {
	Registry      *siteregistry.Registry
	Challenges    *acme.ChallengeStore
	HostDetection chimneyconfig.HostDetection
	ExtraHeaders  chimneyconfig.OrderedHeaders
	Log           *zap.Logger
	IsTLS         bool
}

// New builds the chi-routed http.Handler for one listener.
func New(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get(acmeChallengePrefix+"{token}", h.serveChallenge)
	r.NotFound(h.serveSite) // catch-all: every other path/method falls through to site resolution
	r.MethodNotAllowed(h.serveSite)
	return r
}

func (h *Handler) serveChallenge(w http.ResponseWriter, r *http.Request) {
	if h.IsTLS {
		// spec.md §4.9: challenge responses are only ever served on
		// the plain HTTP listener.
		h.serveSite(w, r)
		return
	}
	token := chi.URLParam(r, "token")
	keyAuth, ok := h.Challenges.Get(token)
	if !ok {
		respond.NotFound(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(keyAuth))
}

func (h *Handler) serveSite(w http.ResponseWriter, r *http.Request) {
	if r.Host == "" {
		respond.BadRequest(w)
		return
	}

	sni := ""
	if r.TLS != nil {
		sni = r.TLS.ServerName
	}
	effectiveHost := siteregistry.EffectiveHost(h.HostDetection, h.IsTLS, sni, r.Host)

	site := h.Registry.Lookup(effectiveHost)
	if site == nil {
		respond.MisdirectedRequest(w)
		return
	}

	if !h.IsTLS && site.HTTPSEnabled() && site.Config.HTTPS.AutoRedirect {
		h.redirectToHTTPS(w, r, effectiveHost)
		return
	}

	h.dispatch(w, r, site)
}

func (h *Handler) redirectToHTTPS(w http.ResponseWriter, r *http.Request, host string) {
	target := "https://" + host + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusMovedPermanently)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, site *siteregistry.Site) {
	resolverSite := resolver.Site{
		Root:             site.Root,
		DefaultIndexFile: site.Config.DefaultIndexFile,
		FallbackFile:     site.Config.FallbackFile,
		Rewrites:         site.Config.Rewrites,
		Redirects:        site.Config.Redirects,
	}

	action, err := resolver.Resolve(resolverSite, r.URL.RequestURI())
	if err != nil {
		if errors.Is(err, resolver.ErrForbidden) {
			respond.ApplyExtraHeaders(w, h.ExtraHeaders, site.Config.ExtraHeaders)
			respond.Forbidden(w)
			return
		}
		h.Log.Error("resolver error", zap.Error(err), zap.String("site", site.Config.Name))
		respond.ApplyExtraHeaders(w, h.ExtraHeaders, site.Config.ExtraHeaders)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch action.Kind {
	case resolver.ActionRedirect:
		// A redirect is honored regardless of method (spec.md §4.5: the
		// 405 belongs to the file responder, not to redirect/rewrite
		// dispatch -- a POST to a redirect entry still gets the 3xx).
		respond.ApplyExtraHeaders(w, h.ExtraHeaders, site.Config.ExtraHeaders)
		w.Header().Set("Location", action.Location)
		w.WriteHeader(action.Status)

	case resolver.ActionServeFile:
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respond.ApplyExtraHeaders(w, h.ExtraHeaders, site.Config.ExtraHeaders)
			respond.MethodNotAllowed(w)
			return
		}
		status := http.StatusOK
		if err := respond.File(w, r.Method, action.AbsolutePath, action.MediaType, status, h.ExtraHeaders, site.Config.ExtraHeaders); err != nil {
			h.Log.Warn("serving file failed", zap.Error(err), zap.String("path", action.AbsolutePath))
		}

	case resolver.ActionNotFound:
		respond.ApplyExtraHeaders(w, h.ExtraHeaders, site.Config.ExtraHeaders)
		respond.NotFound(w)
	}
}
