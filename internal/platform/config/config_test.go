package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, time.Minute, cfg.PresenceSweepInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.VectorTimeout)
	assert.Equal(t, "presence.transitions", cfg.KafkaTopic)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\nvector_timeout: 2s\nlog_level: debug\n"), 0o600))

	t.Setenv("BEACON_LOG_LEVEL", "warn")
	t.Setenv("BEACON_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("BEACON_TRUSTED_PROXIES", "10.0.0.0/8")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.VectorTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.TrustedProxies)
}

func TestValidate(t *testing.T) {
	t.Run("sweep interval above five minutes", func(t *testing.T) {
		cfg := Defaults()
		cfg.PresenceSweepInterval = 10 * time.Minute
		assert.ErrorContains(t, cfg.Validate(), "presence_sweep_interval")
	})

	t.Run("per-call timeout beyond overall deadline", func(t *testing.T) {
		cfg := Defaults()
		cfg.EnrichCallTimeout = 6 * time.Second
		assert.ErrorContains(t, cfg.Validate(), "enrich_call_timeout")
	})

	t.Run("chroma without embedder", func(t *testing.T) {
		cfg := Defaults()
		cfg.ChromaURL = "http://chroma:8000"
		assert.ErrorContains(t, cfg.Validate(), "chroma_url")
	})
}
