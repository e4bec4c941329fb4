package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hostname: node-1\nserverPort: 9999\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "node-1", cfg.Hostname)
	assert.Equal(t, 9999, cfg.ServerPort)
	// Untouched fields keep their default values.
	assert.Equal(t, DefaultConfig().PackageDirectory, cfg.PackageDirectory)
}

func TestLoad_MalformedYAMLIsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("hostname: [unclosed"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestParseTags(t *testing.T) {
	tags, err := ParseTags([]string{"rack=a", "zone=us-east-1a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"rack": "a", "zone": "us-east-1a"}, tags)
}

func TestParseTags_Invalid(t *testing.T) {
	_, err := ParseTags([]string{"no-equals-sign"})
	assert.Error(t, err)
}
