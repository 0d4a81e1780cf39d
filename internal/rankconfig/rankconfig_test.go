package rankconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	w, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), w)
}

func TestLoadFillsUnsetFieldsWithDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".kb"), 0o755))
	toml := "title = 3.0\nprefix_boost = 0.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kb", "ranking.toml"), []byte(toml), 0o644))

	w, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3.0, w.Title)
	assert.Equal(t, 0.5, w.PrefixBoost)
	assert.Equal(t, 1.0, w.Description)
	assert.Equal(t, 1.0, w.Content)
	assert.Equal(t, 1.0, w.Tags)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".kb"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kb", "ranking.toml"), []byte("not valid [[[ toml"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
