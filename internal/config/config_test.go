package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
scan:
  max_pages: 10
  mode: deep
  settle_ms: 500
classifier:
  threshold: 5
  high: ["leave this list"]
storage:
  kv: redis
  redis_addr: "redis:6379"
server:
  port: 9090
  cors_origins: ["http://localhost:3000"]
log:
  level: debug
  redact: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Scan.MaxPages)
	assert.Equal(t, "deep", cfg.Scan.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.SettleDelay())
	assert.Equal(t, KVRedis, cfg.Storage.KV)
	assert.Equal(t, "redis:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, "localhost:9090", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Redact)

	rules := cfg.Classifier.Rules()
	assert.Equal(t, 5, rules.Threshold)
	assert.Contains(t, rules.High, "leave this list")
	assert.Contains(t, rules.High, "unsubscribe")

	// defaults for unset fields
	assert.Equal(t, 50, cfg.Scan.PageSize)
	assert.Equal(t, 10, cfg.Scan.Fanout)
	assert.Equal(t, 30*time.Second, cfg.Unsubscribe.Timeout())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, "quick", cfg.Scan.Mode)
	assert.Equal(t, KVSQLite, cfg.Storage.KV)
	assert.True(t, cfg.Log.Redact)
	assert.Equal(t, 2*time.Second, cfg.Scan.SettleDelay())
	assert.Equal(t, 1, cfg.Classifier.Rules().Threshold)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "scan: [not a map"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "scan:\n  mode: thorough\n"))
	assert.ErrorContains(t, err, "scan.mode")

	_, err = Load(writeConfig(t, "storage:\n  kv: etcd\n"))
	assert.ErrorContains(t, err, "storage.kv")
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "scan:\n  max_pages: 2\n")
	t.Setenv("INBOXSWEEP_SCAN_MAX_PAGES", "7")
	t.Setenv("INBOXSWEEP_KV", "memory")
	t.Setenv("INBOXSWEEP_PORT", "not-a-number")
	t.Setenv("INBOXSWEEP_LOG_REDACT", "false")
	t.Setenv("INBOXSWEEP_GMAIL_QUERY", "category:promotions")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scan.MaxPages)
	assert.Equal(t, KVMemory, cfg.Storage.KV)
	assert.Equal(t, 8787, cfg.Server.Port, "unparsable override is ignored")
	assert.False(t, cfg.Log.Redact)
	assert.Equal(t, "category:promotions", cfg.Scan.GmailQuery)
}

func TestLoadFromEnv_InvalidOverride(t *testing.T) {
	t.Setenv("INBOXSWEEP_SCAN_MODE", "sideways")
	_, err := LoadFromEnv(writeConfig(t, ""))
	assert.Error(t, err)
}
