package pdfextract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainerNumberMissingFile(t *testing.T) {
	t.Parallel()

	_, err := New().ContainerNumber(filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
}

func TestContainerNumberCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))

	_, err := New().ContainerNumber(path)
	require.Error(t, err)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "done.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	require.NoError(t, New().Remove(path))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
