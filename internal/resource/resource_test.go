package resource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/composer/internal/resource"
)

// =============================================================================
// P1: hash determinism
// =============================================================================

func TestP1ResourceHashDeterminism(t *testing.T) {
	r := resource.Local("./docs/a.md")
	h1 := resource.ResourceHash(r)
	h2 := resource.ResourceHash(r)
	assert.Equal(t, h1, h2)
}

func TestP1ContentHashDeterminism(t *testing.T) {
	b := []byte("hello world")
	assert.Equal(t, resource.ContentHash(b), resource.ContentHash(b))
}

func TestResourceHashDiffersBySource(t *testing.T) {
	a := resource.Local("./a.md")
	b := resource.Local("./b.md")
	assert.NotEqual(t, resource.ResourceHash(a), resource.ResourceHash(b))
}

func TestRemoteDefaultsCacheDuration(t *testing.T) {
	r := resource.Remote("https://example.com/x.md")
	require.NotZero(t, r.CacheDuration)
	assert.False(t, r.IsLocal())
}

func TestLocalIsLocal(t *testing.T) {
	r := resource.Local("./x.md")
	assert.True(t, r.IsLocal())
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, resource.IsValidURL("https://example.com/x"))
	assert.False(t, resource.IsValidURL("./relative/path.md"))
	assert.False(t, resource.IsValidURL("not a url"))
}
