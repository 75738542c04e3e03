package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnumCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status.yaml"), []byte(`
items:
  - {code: open, name: Open, order: 2}
  - {code: closed, name: Closed, order: 1}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prio.yml"), []byte(`
name: priority
items:
  - {code: p1, name: Urgent}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	cats, err := LoadEnumCatalog(dir)
	require.NoError(t, err)
	require.Len(t, cats, 2)

	label, ok := cats.Label("status", "open")
	require.True(t, ok)
	assert.Equal(t, "Open", label)

	_, ok = cats.Label("priority", "p9")
	assert.False(t, ok)

	ordered := cats["status"].Ordered()
	assert.Equal(t, "closed", ordered[0].Code)
}

func TestLoadEnumCatalogMissingDir(t *testing.T) {
	cats, err := LoadEnumCatalog(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, cats)
}
