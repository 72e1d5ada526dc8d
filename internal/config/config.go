package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Global singleton for packages that cannot take injected config
var globalConfig *Config

// Config holds all environment backed configuration for channel-api.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Idempotency store backend. When REDIS_URL is set the dedup/debounce
	// records live in Redis with native TTLs; otherwise they share the
	// Postgres database.
	RedisURL string `env:"REDIS_URL"`

	// Webhook verification
	WebhookVerifyToken string `env:"WEBHOOK_VERIFY_TOKEN"`

	// Provider (WhatsApp Graph-style API)
	ProviderBaseURL      string        `env:"PROVIDER_BASE_URL" envDefault:"https://graph.facebook.com/v20.0"`
	ProviderSendTimeout  time.Duration `env:"PROVIDER_SEND_TIMEOUT" envDefault:"10s"`
	MediaResolveTimeout  time.Duration `env:"MEDIA_RESOLVE_TIMEOUT" envDefault:"5s"`
	MediaDownloadTimeout time.Duration `env:"MEDIA_DOWNLOAD_TIMEOUT" envDefault:"30s"`
	MaxOutboundTextRunes int           `env:"MAX_OUTBOUND_TEXT_RUNES" envDefault:"4096"`

	// Reply engine (external responder)
	ReplyEngineURL      string        `env:"REPLY_ENGINE_URL,notEmpty"`
	ReplyEngineTimeout  time.Duration `env:"REPLY_ENGINE_TIMEOUT" envDefault:"60s"`
	ReplyFallbackText   string        `env:"REPLY_FALLBACK_TEXT" envDefault:"Lo siento, no puedo responder en este momento. Intenta de nuevo más tarde."`
	ReplyHistoryLimit   int           `env:"REPLY_HISTORY_LIMIT" envDefault:"20"`
	AccessTokenSecret   string        `env:"ACCESS_TOKEN_SECRET"`
	StaleMessageCutoff  time.Duration `env:"STALE_MESSAGE_CUTOFF" envDefault:"12m"`
	DedupWindow         time.Duration `env:"DEDUP_WINDOW" envDefault:"10m"`
	DebounceWindow      time.Duration `env:"DEBOUNCE_WINDOW" envDefault:"5s"`
	ManualModeTimeout   time.Duration `env:"MANUAL_MODE_TIMEOUT" envDefault:"30m"`
	HistorySyncQuietGap time.Duration `env:"HISTORY_SYNC_QUIET_GAP" envDefault:"60s"`

	// Observability / Logging
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string        `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"channel-api"`
	ServiceNamespace string        `env:"SERVICE_NAMESPACE" envDefault:"relaydesk"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Internal
	EnvReloadedAt time.Time
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.ProviderBaseURL); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_BASE_URL: %w", err)
	}
	if _, err := url.ParseRequestURI(cfg.ReplyEngineURL); err != nil {
		return nil, fmt.Errorf("invalid REPLY_ENGINE_URL: %w", err)
	}

	if cfg.DebounceWindow >= cfg.DedupWindow {
		return nil, errors.New("DEBOUNCE_WINDOW must be shorter than DEDUP_WINDOW")
	}
	if cfg.MaxOutboundTextRunes <= 0 {
		return nil, errors.New("MAX_OUTBOUND_TEXT_RUNES must be positive")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.EnvReloadedAt = time.Now()

	globalConfig = cfg

	return cfg, nil
}

// GetGlobal returns the global config instance for backwards compatibility.
// Deprecated: Use dependency injection with Load() instead.
func GetGlobal() *Config {
	return globalConfig
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
