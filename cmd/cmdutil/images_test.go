package cmdutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", "sub/c.jpeg"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}

	files, err := ImageFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "sub", "c.jpeg"),
	}, files)

	single := filepath.Join(dir, "notes.txt")
	files, err = ImageFiles(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	empty := t.TempDir()
	_, err = ImageFiles(empty)
	assert.Error(t, err)

	_, err = ImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
