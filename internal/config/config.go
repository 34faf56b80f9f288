package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/blindfoldanimeshka/neuro-search-project-sub001/pkg/config"
)

// Config holds all configuration for the search index service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int      `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Index bounds and ingestion policy
	AllowedSources []string      `env:"ALLOWED_SOURCES" envDefault:"wildberries,ozon,avito,yandex,sbermegamarket" envSeparator:","`
	EnforceSources bool          `env:"ENFORCE_SOURCES" envDefault:"true"`
	MaxRecords     int           `env:"MAX_RECORDS" envDefault:"500000"`
	MaxPerPage     int           `env:"MAX_PER_PAGE" envDefault:"100"`
	Retention      time.Duration `env:"RETENTION" envDefault:"168h"`
	EvictInterval  time.Duration `env:"EVICT_INTERVAL" envDefault:"10m"`

	// Normalization
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"RUB"`

	// Collector service URL for reindex fetching; empty disables reindex.
	CollectorURL string `env:"COLLECTOR_URL"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"search-index"`
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`

	// Tracing
	OTLPEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSamplePct float64 `env:"TRACE_SAMPLE_PCT" envDefault:"100"`

	// Profiling
	PprofEnabled bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofCIDRs   []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search index config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("MAX_RECORDS must not be negative: %d", c.MaxRecords)
	}
	if c.MaxPerPage < 1 {
		return fmt.Errorf("MAX_PER_PAGE must be positive: %d", c.MaxPerPage)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("RETENTION must be positive: %s", c.Retention)
	}
	if c.EvictInterval <= 0 {
		return fmt.Errorf("EVICT_INTERVAL must be positive: %s", c.EvictInterval)
	}
	if c.TraceSamplePct < 0 || c.TraceSamplePct > 100 {
		return fmt.Errorf("TRACE_SAMPLE_PCT must be within [0, 100]: %v", c.TraceSamplePct)
	}
	if c.EnforceSources && len(c.AllowedSources) == 0 {
		return fmt.Errorf("ENFORCE_SOURCES is set but ALLOWED_SOURCES is empty")
	}
	return nil
}

// SourceAllowList returns the allow-list the store should enforce, or nil
// when enforcement is disabled.
func (c *Config) SourceAllowList() []string {
	if !c.EnforceSources {
		return nil
	}
	return c.AllowedSources
}
