package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePattern(t *testing.T) {
	at := time.Date(2024, 6, 15, 9, 30, 45, 0, time.UTC)

	assert.Equal(t, "master_registration_20240615_093045.csv",
		ResolvePattern("master_registration_{timestamp}.csv", ".csv", at))
	assert.Equal(t, "custom_report_20240615_093045.xls",
		ResolvePattern("custom_report_{timestamp}", ".xls", at))
	assert.Equal(t, "plain.csv", ResolvePattern("plain", ".csv", at))
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")

	assert.Equal(t, path, UniquePath(path))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "report_1.csv"), UniquePath(path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report_1.csv"), []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "report_2.csv"), UniquePath(path))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	got, err := EnsureDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	st, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.csv")
	recent := filepath.Join(dir, "recent.csv")
	require.NoError(t, os.WriteFile(old, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(recent, []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("c"), 0o644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	infos, err := List(dir, "*.csv")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "recent.csv", infos[0].Name)
	assert.Equal(t, "old.csv", infos[1].Name)
	assert.Equal(t, int64(1), infos[1].Size)
}

func TestCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.csv")
	recent := filepath.Join(dir, "recent.csv")
	require.NoError(t, os.WriteFile(old, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(recent, []byte("b"), 0o644))

	past := time.Now().AddDate(0, 0, -40)
	require.NoError(t, os.Chtimes(old, past, past))

	removed, err := CleanupOlderThan(dir, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)

	// Retention disabled removes nothing.
	removed, err = CleanupOlderThan(dir, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.0 MB", FormatSize(2*1024*1024))
}
