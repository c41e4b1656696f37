package respond

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aosasona/chimney/internal/chimneyconfig"
	"github.com/stretchr/testify/require"
)

func TestFileStreamsBodyAndHeaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	server := chimneyconfig.NewOrderedHeaders(map[string]string{"X-From": "server"})
	site := chimneyconfig.NewOrderedHeaders(map[string]string{"X-From": "site"})

	rec := httptest.NewRecorder()
	err := File(rec, http.MethodGet, path, "text/html; charset=utf-8", 200, server, site)
	require.NoError(t, err)

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "2", rec.Header().Get("Content-Length"))
	require.Equal(t, "site", rec.Header().Get("X-From"))
	require.Equal(t, "hi", rec.Body.String())
}

func TestFileHeadHasNoBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	rec := httptest.NewRecorder()
	err := File(rec, http.MethodHead, path, "text/html", 200, chimneyconfig.OrderedHeaders{}, chimneyconfig.OrderedHeaders{})
	require.NoError(t, err)
	require.Empty(t, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowed(rec)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}
