package pathsafe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"/about/page.html":   "/about/page.html",
		"about/page.html":    "/about/page.html",
		"/a//b///c":          "/a/b/c",
		"/x?q=1":             "/x",
		"/x#frag":            "/x",
		"/%2e%2e/etc/passwd": "/../etc/passwd",
		"":                   "/",
	}
	for in, want := range cases {
		require.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve(root, "/../../etc/passwd")
	require.ErrorIs(t, err, ErrEscape)
}

// TestResolveRejectsPercentEncodedTraversal confirms that Normalize's
// refusal to resolve ".." segments doesn't let a percent-encoded
// traversal attempt slip past Resolve's rejection (spec.md §8 property
// 5): the full Normalize-then-Resolve pipeline must still reject it.
func TestResolveRejectsPercentEncodedTraversal(t *testing.T) {
	root := t.TempDir()
	rel := Normalize("/%2e%2e/%2e%2e/etc/passwd")
	_, err := Resolve(root, rel)
	require.ErrorIs(t, err, ErrEscape)
}

func TestResolveRejectsNullByte(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve(root, "/foo\x00bar")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestResolveAllowsDescendant(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "about"), 0o755))
	got, err := Resolve(root, "/about/page.html")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "about", "page.html"), got)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("nope"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")))

	_, err := Resolve(root, "/link.txt")
	require.ErrorIs(t, err, ErrEscape)
}

func TestResolveAllowsNotYetExistingLeaf(t *testing.T) {
	root := t.TempDir()
	got, err := Resolve(root, "/new-file.html")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "new-file.html"), got)
}
