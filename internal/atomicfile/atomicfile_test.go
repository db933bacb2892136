package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.cbor")

	require.NoError(t, Write(path, []byte("first"), 0o600))
	require.NoError(t, Write(path, []byte("second"), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWrite_MissingDir(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "nope", "x"), []byte("x"), 0o600)
	require.Error(t, err)
}
