package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsBadTickTiming(t *testing.T) {
	cfg := Default()
	cfg.TickTiming.MaxDt = time.Millisecond
	cfg.TickTiming.MinDt = 10 * time.Millisecond
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	cfg := Default()
	cfg.Role = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestLoadFillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instance.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role: server\nlistenAddr: 0.0.0.0:7777\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, RoleServer, cfg.Role)
	assert.Equal(t, "0.0.0.0:7777", cfg.ListenAddr)
	assert.Equal(t, DefaultTickTiming, cfg.TickTiming)
	assert.Equal(t, DefaultSessionConfig.MessageSizeLimit, cfg.Session.MessageSizeLimit)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role: [unterminated\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
