package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, time.Hour, cfg.Ledger.ReconcileCacheTTL)
	assert.False(t, cfg.AMQP.Enabled)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=password dbname=seaclub sslmode=disable", cfg.Database.DSN())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "DATABASE_NAME=club\nAMQP_ENABLED=true\nLEDGER_RECONCILE_CACHE_TTL=10m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DATABASE_NAME", "from_env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Database.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.AMQP.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Ledger.ReconcileCacheTTL)
	assert.Contains(t, cfg.Database.DSN(), "dbname=from_env")
}

func TestLedgerConfig_Location(t *testing.T) {
	assert.Equal(t, time.UTC, LedgerConfig{Timezone: "Nowhere/Atlantis"}.Location())
	assert.Equal(t, "UTC", LedgerConfig{Timezone: "UTC"}.Location().String())
}
