package dumputil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	out := NewFilesystemOutput(dir)

	at := time.Date(2025, time.August, 20, 10, 4, 5, 0, time.UTC)
	path, err := out.Write(at, "failure/page.html", []byte("<html></html>"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20250820-100405-failure_page.html"), path)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "<html></html>", string(contents))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
