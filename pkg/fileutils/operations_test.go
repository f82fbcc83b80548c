package fileutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "incoming", "issue.pdf")
	dst := filepath.Join(dir, "library", "Wired", "2023", "issue.pdf")

	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("content"), 0o644))

	require.NoError(t, MoveFile(src, dst))

	moved, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content", string(moved))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestMoveFile_MissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := MoveFile(filepath.Join(dir, "nope.pdf"), filepath.Join(dir, "out", "nope.pdf"))
	assert.Error(t, err)
}
