package pipeline

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aosasona/chimney/internal/acme"
	"github.com/aosasona/chimney/internal/chimneyconfig"
	"github.com/aosasona/chimney/internal/siteregistry"
)

func buildTestRegistry(t *testing.T) *siteregistry.Registry {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hi"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "about"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "about", "page.html"), []byte("about"), 0o644))

	cfg := chimneyconfig.SiteConfig{
		Name:             "default",
		Root:             root,
		DomainNames:      []string{"*"},
		DefaultIndexFile: "index.html",
		Rewrites:         map[string]chimneyconfig.Rewrite{"/home": {To: "/index.html"}},
		Redirects: map[string]chimneyconfig.Redirect{
			"/rick": {To: "https://example.test/v"},
			"/live": {To: "https://x/", Replay: true},
		},
	}

	reg, err := siteregistry.Build([]chimneyconfig.SiteConfig{cfg}, nil)
	require.NoError(t, err)
	return reg
}

func newTestHandler(t *testing.T) http.Handler {
	return New(&Handler{
		Registry:      buildTestRegistry(t),
		Challenges:    acme.NewChallengeStore(),
		HostDetection: chimneyconfig.HostDetectionAuto,
		Log:           zap.NewNop(),
	})
}

func TestServeRoot(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "example.test"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hi", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestServeNestedFile(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/about/page.html", nil)
	req.Host = "example.test"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "about", rec.Body.String())
}

func TestServeRewrite(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.Host = "example.test"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hi", rec.Body.String())
}

func TestServeRedirect(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/rick", nil)
	req.Host = "example.test"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "https://example.test/v", rec.Header().Get("Location"))
}

func TestServeReplayRedirect(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/live", nil)
	req.Host = "example.test"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
	require.Equal(t, "https://x/", rec.Header().Get("Location"))
}

func TestServeTraversalForbidden(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil)
	req.Host = "example.test"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeMissingHostIsBadRequest(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = ""
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeChallengeOnHTTP(t *testing.T) {
	challenges := acme.NewChallengeStore()
	challenges.Put("tok123", "tok123.thumbprint")
	h := New(&Handler{
		Registry:      buildTestRegistry(t),
		Challenges:    challenges,
		HostDetection: chimneyconfig.HostDetectionAuto,
		Log:           zap.NewNop(),
	})

	req := httptest.NewRequest(http.MethodGet, "/.well-known/acme-challenge/tok123", nil)
	req.Host = "example.test"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tok123.thumbprint", rec.Body.String())
}
