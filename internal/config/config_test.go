package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "shared", cfg.Store.SharedTable)
	assert.Equal(t, "appid_timestamp", cfg.Store.SharedIndex)
	assert.Equal(t, "para", cfg.Store.DefaultTenant)
	assert.Equal(t, 10, cfg.Store.WriteChunkLimit)
	assert.Equal(t, 100, cfg.Store.ReadChunkLimit)
	assert.Equal(t, 8, cfg.Store.MaxRetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.Store.MaxRetryBackoff)
	assert.Equal(t, 0, cfg.Log.Verbosity)
	assert.False(t, cfg.Log.JSON)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "dynadao.toml", `
[store]
table_prefix = "dev_"
shared_tenants = ["alpha", "beta"]
write_chunk_limit = 25
max_retry_backoff = "250ms"

[aws]
region = "eu-west-1"
endpoint = "http://localhost:8000"

[log]
verbosity = 2
json = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev_", cfg.Store.TablePrefix)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Store.SharedTenants)
	assert.Equal(t, 25, cfg.Store.WriteChunkLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.MaxRetryBackoff)
	assert.Equal(t, "shared", cfg.Store.SharedTable, "unset keys keep defaults")
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "http://localhost:8000", cfg.AWS.Endpoint)
	assert.Equal(t, 2, cfg.Log.Verbosity)
	assert.True(t, cfg.Log.JSON)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "dynadao.yaml", `
store:
  default_tenant: main
  read_chunk_limit: 50
aws:
  profile: staging
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Store.DefaultTenant)
	assert.Equal(t, 50, cfg.Store.ReadChunkLimit)
	assert.Equal(t, "staging", cfg.AWS.Profile)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "dynadao.toml", `
[store]
table_prefix = "dev_"
`)
	t.Setenv("DYNADAO_STORE_TABLE_PREFIX", "prod_")
	t.Setenv("DYNADAO_STORE_SHARED_TENANTS", "one,two")
	t.Setenv("DYNADAO_STORE_MAX_RETRY_ATTEMPTS", "3")
	t.Setenv("DYNADAO_AWS_REGION", "us-east-2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod_", cfg.Store.TablePrefix)
	assert.Equal(t, []string{"one", "two"}, cfg.Store.SharedTenants)
	assert.Equal(t, 3, cfg.Store.MaxRetryAttempts)
	assert.Equal(t, "us-east-2", cfg.AWS.Region)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "dynadao.ini", "x=1"))
	assert.Error(t, err, "unsupported extension")

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err, "missing file")

	_, err = Load(writeFile(t, "bad.toml", "[store\n"))
	assert.Error(t, err, "malformed file")
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"DYNADAO_STORE_TABLE_PREFIX", "store.table_prefix"},
		{"DYNADAO_AWS_ENDPOINT", "aws.endpoint"},
		{"DYNADAO_LOG_JSON", "log.json"},
		{"DYNADAO_DEBUG", "debug"},
	}

	for _, tt := range tests {
		if got := envKey(tt.in); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}
