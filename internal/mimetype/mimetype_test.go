package mimetype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	require.Equal(t, "text/html; charset=utf-8", ForExtension("html"))
	require.Equal(t, "text/html; charset=utf-8", ForExtension(".HTML"))
	require.Equal(t, "image/png", ForExtension("png"))
	require.Equal(t, defaultType, ForExtension("bogus"))
}

func TestForPath(t *testing.T) {
	require.Equal(t, "text/html; charset=utf-8", ForPath("/about/page.html", false))
	require.Equal(t, defaultType, ForPath("/about/README", false))
	require.Equal(t, "text/html; charset=utf-8", ForPath("/about/README", true))
}
