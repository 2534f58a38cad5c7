package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteRemovesFileAndDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "sub", "out.bam")
	require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o755))
	require.NoError(t, os.WriteFile(nested, []byte("data"), 0o644))

	d := New()
	require.NoError(t, d.Delete(filepath.Join(dir, "sub")))

	_, err := os.Stat(filepath.Join(dir, "sub"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteOnMissingPathIsNotAnError(t *testing.T) {
	d := New()
	assert.NoError(t, d.Delete(filepath.Join(t.TempDir(), "never-existed")))
}
