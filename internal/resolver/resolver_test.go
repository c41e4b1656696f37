package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aosasona/chimney/internal/chimneyconfig"
	"github.com/stretchr/testify/require"
)

func newTestSite(t *testing.T) (Site, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hi"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "about"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "about", "page.html"), []byte("about"), 0o644))

	site := Site{
		Root:             root,
		DefaultIndexFile: "index.html",
		Rewrites:         map[string]chimneyconfig.Rewrite{},
		Redirects:        map[string]chimneyconfig.Redirect{},
	}
	return site, root
}

func TestResolveServesRoot(t *testing.T) {
	site, root := newTestSite(t)
	action, err := Resolve(site, "/")
	require.NoError(t, err)
	require.Equal(t, ActionServeFile, action.Kind)
	require.Equal(t, filepath.Join(root, "index.html"), action.AbsolutePath)
}

func TestResolveServesNestedFile(t *testing.T) {
	site, _ := newTestSite(t)
	action, err := Resolve(site, "/about/page.html")
	require.NoError(t, err)
	require.Equal(t, ActionServeFile, action.Kind)
}

func TestResolveRewrite(t *testing.T) {
	site, root := newTestSite(t)
	site.Rewrites["/home"] = chimneyconfig.Rewrite{To: "/index.html"}

	action, err := Resolve(site, "/home")
	require.NoError(t, err)
	require.Equal(t, ActionServeFile, action.Kind)
	require.Equal(t, filepath.Join(root, "index.html"), action.AbsolutePath)
}

func TestResolveRedirectWinsOverRewrite(t *testing.T) {
	site, _ := newTestSite(t)
	site.Redirects["/rick"] = chimneyconfig.Redirect{To: "https://example.test/v"}
	site.Rewrites["/rick"] = chimneyconfig.Rewrite{To: "/index.html"}

	action, err := Resolve(site, "/rick")
	require.NoError(t, err)
	require.Equal(t, ActionRedirect, action.Kind)
	require.Equal(t, "https://example.test/v", action.Location)
	require.Equal(t, 301, action.Status)
}

func TestResolveReplayRedirect(t *testing.T) {
	site, _ := newTestSite(t)
	site.Redirects["/live"] = chimneyconfig.Redirect{To: "https://x/", Replay: true}

	action, err := Resolve(site, "/live")
	require.NoError(t, err)
	require.Equal(t, 308, action.Status)
}

func TestResolveTraversalIsForbidden(t *testing.T) {
	site, _ := newTestSite(t)
	_, err := Resolve(site, "/../../etc/passwd")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestResolveFallback(t *testing.T) {
	site, root := newTestSite(t)
	site.FallbackFile = "index.html"

	action, err := Resolve(site, "/nonexistent")
	require.NoError(t, err)
	require.Equal(t, ActionServeFile, action.Kind)
	require.Equal(t, filepath.Join(root, "index.html"), action.AbsolutePath)
}

func TestResolveNotFoundWithoutFallback(t *testing.T) {
	site, _ := newTestSite(t)
	action, err := Resolve(site, "/nonexistent")
	require.NoError(t, err)
	require.Equal(t, ActionNotFound, action.Kind)
}

func TestResolveRewriteNotChained(t *testing.T) {
	site, root := newTestSite(t)
	// /a rewrites to /b, and /b is itself a rewrite key -- the /b
	// rewrite must NOT be re-looked-up (spec.md §4.4 invariant 4).
	site.Rewrites["/a"] = chimneyconfig.Rewrite{To: "/b"}
	site.Rewrites["/b"] = chimneyconfig.Rewrite{To: "/index.html"}
	require.NoError(t, os.WriteFile(filepath.Join(root, "b"), []byte("literal-b"), 0o644))

	action, err := Resolve(site, "/a")
	require.NoError(t, err)
	require.Equal(t, ActionServeFile, action.Kind)
	require.Equal(t, filepath.Join(root, "b"), action.AbsolutePath)
}

func TestResolveDirectoryWithoutTrailingSlash(t *testing.T) {
	site, root := newTestSite(t)
	action, err := Resolve(site, "/about")
	require.NoError(t, err)
	require.Equal(t, ActionNotFound, action.Kind) // "about" has no about/index.html
	_ = root
}

func TestResolveDirectoryIndexFallbackNoRedirect(t *testing.T) {
	site, root := newTestSite(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "about", "index.html"), []byte("about-index"), 0o644))

	action, err := Resolve(site, "/about")
	require.NoError(t, err)
	require.Equal(t, ActionServeFile, action.Kind)
	require.Equal(t, filepath.Join(root, "about", "index.html"), action.AbsolutePath)
	require.True(t, action.IsIndex)
}
