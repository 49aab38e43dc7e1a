// Package config loads registry configuration from defaults, an optional config
// file and BEACON_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: addr is read from BEACON_ADDR.
const EnvPrefix = "BEACON"

// Config is the full registry configuration. Empty connection strings select
// the in-memory or disabled implementation of that collaborator.
type Config struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`
	// TrustedProxies are CIDRs or addresses of load balancers allowed to set
	// X-Forwarded-For. Empty means clients are identified by the TCP peer.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	DatabaseURL  string   `mapstructure:"database_url"`
	RedisURL     string   `mapstructure:"redis_url"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	ChromaURL        string `mapstructure:"chroma_url"`
	ChromaCollection string `mapstructure:"chroma_collection"`
	EmbedBaseURL     string `mapstructure:"embed_base_url"`
	EmbedAPIKey      string `mapstructure:"embed_api_key"`
	EmbedModel       string `mapstructure:"embed_model"`
	VectorTopK       int    `mapstructure:"vector_top_k"`

	JWTSigningKey  string   `mapstructure:"jwt_signing_key"`
	APIKeys        []string `mapstructure:"api_keys"`
	TierPolicyFile string   `mapstructure:"tier_policy_file"`

	PresenceSweepInterval time.Duration `mapstructure:"presence_sweep_interval"`
	NudgeSweepInterval    time.Duration `mapstructure:"nudge_sweep_interval"`
	VectorTimeout         time.Duration `mapstructure:"vector_timeout"`
	EnrichCallTimeout     time.Duration `mapstructure:"enrich_call_timeout"`
	EnrichDeadline        time.Duration `mapstructure:"enrich_deadline"`

	SMTPAddr     string `mapstructure:"smtp_addr"`
	SMTPFrom     string `mapstructure:"smtp_from"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`

	TracingExporter string  `mapstructure:"tracing_exporter"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	TraceSampleRate float64 `mapstructure:"trace_sample_rate"`
}

// Defaults returns the development configuration: everything in memory,
// vector search and email disabled.
func Defaults() Config {
	return Config{
		Addr:                  ":8080",
		LogLevel:              "info",
		KafkaTopic:            "presence.transitions",
		ChromaCollection:      "beacon-nodes",
		EmbedModel:            "text-embedding-3-small",
		VectorTopK:            20,
		JWTSigningKey:         "dev-secret-key-change-in-production",
		PresenceSweepInterval: time.Minute,
		NudgeSweepInterval:    time.Hour,
		VectorTimeout:         1500 * time.Millisecond,
		EnrichCallTimeout:     2 * time.Second,
		EnrichDeadline:        5 * time.Second,
		SMTPFrom:              "beacon@localhost",
		TracingExporter:       "none",
		TraceSampleRate:       1.0,
	}
}

// Load reads configuration into a fresh Config. path may be empty.
func Load(v *viper.Viper, path string) (Config, error) {
	d := Defaults()
	defaults := map[string]any{
		"addr":                    d.Addr,
		"log_level":               d.LogLevel,
		"trusted_proxies":         d.TrustedProxies,
		"database_url":            d.DatabaseURL,
		"redis_url":               d.RedisURL,
		"kafka_brokers":           d.KafkaBrokers,
		"kafka_topic":             d.KafkaTopic,
		"chroma_url":              d.ChromaURL,
		"chroma_collection":       d.ChromaCollection,
		"embed_base_url":          d.EmbedBaseURL,
		"embed_api_key":           d.EmbedAPIKey,
		"embed_model":             d.EmbedModel,
		"vector_top_k":            d.VectorTopK,
		"jwt_signing_key":         d.JWTSigningKey,
		"api_keys":                d.APIKeys,
		"tier_policy_file":        d.TierPolicyFile,
		"presence_sweep_interval": d.PresenceSweepInterval,
		"nudge_sweep_interval":    d.NudgeSweepInterval,
		"vector_timeout":          d.VectorTimeout,
		"enrich_call_timeout":     d.EnrichCallTimeout,
		"enrich_deadline":         d.EnrichDeadline,
		"smtp_addr":               d.SMTPAddr,
		"smtp_from":               d.SMTPFrom,
		"smtp_username":           d.SMTPUsername,
		"smtp_password":           d.SMTPPassword,
		"tracing_exporter":        d.TracingExporter,
		"otlp_endpoint":           d.OTLPEndpoint,
		"trace_sample_rate":       d.TraceSampleRate,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.PresenceSweepInterval <= 0 || c.PresenceSweepInterval > 5*time.Minute {
		errs = append(errs, errors.New("presence_sweep_interval must be in (0, 5m]"))
	}
	if c.NudgeSweepInterval <= 0 {
		errs = append(errs, errors.New("nudge_sweep_interval must be positive"))
	}
	if c.VectorTimeout <= 0 || c.EnrichCallTimeout <= 0 || c.EnrichDeadline <= 0 {
		errs = append(errs, errors.New("vector and enrichment timeouts must be positive"))
	}
	if c.EnrichCallTimeout > c.EnrichDeadline {
		errs = append(errs, errors.New("enrich_call_timeout must not exceed enrich_deadline"))
	}
	if c.ChromaURL != "" && c.EmbedBaseURL == "" && c.EmbedAPIKey == "" {
		errs = append(errs, errors.New("chroma_url requires embed_base_url or embed_api_key"))
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		errs = append(errs, errors.New("trace_sample_rate must be within [0, 1]"))
	}
	return errors.Join(errs...)
}
