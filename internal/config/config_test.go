package config_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/menuflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menuflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 100, cfg.Engine.MaxTransitions)
	assert.Equal(t, 10*time.Second, cfg.Engine.HTTPTimeout)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
flow:
  path: flows/main.yaml
  watch: false
bot:
  user_id: "@bot:example.org"
  users_ignore: ["@spam:example.org", "@other:example.org"]
store:
  driver: redis
  redis:
    addr: redis:6379
    ttl: 24h
engine:
  http_timeout: 2s
  max_transitions: 20
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "flows/main.yaml", cfg.Flow.Path)
	assert.False(t, cfg.Flow.Watch)
	assert.Equal(t, []string{"@spam:example.org", "@other:example.org"}, cfg.Bot.UsersIgnore)
	assert.Equal(t, config.DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, "menuflow:", cfg.Store.Redis.Prefix, "unset keys keep their default")
	assert.Equal(t, 2*time.Second, cfg.Engine.HTTPTimeout)
	assert.Equal(t, 20, cfg.Engine.MaxTransitions)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: file\n")
	t.Setenv("MENUFLOW_STORE_DRIVER", "redis")
	t.Setenv("MENUFLOW_HTTP_TIMEOUT", "750ms")
	t.Setenv("MENUFLOW_USERS_IGNORE", "@a:x, @b:x")
	t.Setenv("MENUFLOW_MAX_TRANSITIONS", "not-a-number")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DriverRedis, cfg.Store.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.HTTPTimeout)
	assert.Equal(t, []string{"@a:x", "@b:x"}, cfg.Bot.UsersIgnore)
	assert.Equal(t, 100, cfg.Engine.MaxTransitions, "unparsable values are ignored")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "servr:\n  addr: x\n", "servr"},
		{"bad duration", "engine:\n  http_timeout: soon\n", "http_timeout"},
		{"unknown driver", "store:\n  driver: etcd\n", "unknown driver"},
		{"non-positive guard", "engine:\n  max_transitions: 0\n", "max_transitions"},
		{"bad key", "store:\n  encryption_key: short\n", "encryption_key"},
		{"invalid yaml", "server: [", "invalid yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestStoreConfig_Keys(t *testing.T) {
	active := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 32)))
	old := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("b", 32)))

	s := config.StoreConfig{EncryptionKey: active, FallbackKeys: []string{old}}
	a, f, err := s.Keys()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	require.Len(t, f, 1)
	assert.Equal(t, byte('b'), f[0][0])

	a, f, err = config.StoreConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Nil(t, f)

	_, _, err = config.StoreConfig{EncryptionKey: active, FallbackKeys: []string{"!!"}}.Keys()
	assert.ErrorContains(t, err, "fallback_keys[0]")
}
