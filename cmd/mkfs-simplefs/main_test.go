package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pranjas/simplefs-go"
	"github.com/stretchr/testify/require"
)

func TestRunFormatsImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.simplefs")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(4*1024*1024))
	require.NoError(t, f.Close())

	blockSize = simplefs.DefaultBlockSize
	inodePerc = simplefs.DefaultInodePercent
	bigEndian = false
	verbose = false

	require.NoError(t, run(rootCmd, []string{path}))

	fs, err := simplefs.Mount(path)
	require.NoError(t, err)
	defer fs.Close()

	entries, err := fs.Readdir(simplefs.RootInodeNumber)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunRejectsMissingPath(t *testing.T) {
	blockSize = simplefs.DefaultBlockSize
	inodePerc = simplefs.DefaultInodePercent
	err := run(rootCmd, []string{filepath.Join(t.TempDir(), "does-not-exist")})
	require.Error(t, err)
}
