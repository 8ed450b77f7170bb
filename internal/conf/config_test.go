package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "sqlite", s.Database.Dialect)
	assert.Equal(t, "opsdeck.db", s.Database.DSN)
	assert.Equal(t, ":8080", s.HTTP.Listen)
	assert.Equal(t, 4, s.Evaluation.Concurrency)
	assert.Equal(t, 10*time.Second, s.Evaluation.AdapterTimeout.Std())
	assert.Equal(t, 15*time.Second, s.Notification.SendTimeout.Std())
	assert.Equal(t, 30*time.Second, s.Commands.PatternCacheTTL.Std())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log_level: debug
database:
  dialect: mysql
  dsn: user:pass@tcp(localhost:3306)/opsdeck
http:
  listen: ":9090"
evaluation:
  concurrency: 8
  adapter_timeout: 30s
commands:
  pattern_cache_ttl: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "mysql", s.Database.Dialect)
	assert.Equal(t, ":9090", s.HTTP.Listen)
	assert.Equal(t, 8, s.Evaluation.Concurrency)
	assert.Equal(t, 30*time.Second, s.Evaluation.AdapterTimeout.Std())
	assert.Equal(t, 2*time.Minute, s.Commands.PatternCacheTTL.Std())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bad_dialect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  dialect: mongodb\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database dialect")

	path = filepath.Join(dir, "bad_concurrency.yaml")
	require.NoError(t, os.WriteFile(path, []byte("evaluation:\n  concurrency: 0\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
}
