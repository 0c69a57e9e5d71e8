package config

import (
	"time"

	"github.com/Skotchmaster/watch_store/pkg/config"
	"github.com/Skotchmaster/watch_store/pkg/events"
	"github.com/Skotchmaster/watch_store/pkg/tracing"
)

type ServiceConfig struct {
	config.Config

	OrderTopic     string
	IdempotencyTTL time.Duration

	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	OutboxNotifyChannel string
}

func Load() ServiceConfig {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "order"
	}

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustOneOf(cfg.TracesExporter, "OTEL_TRACES_EXPORTER", tracing.ExporterNone, tracing.ExporterStdout)

	return ServiceConfig{
		Config:              cfg,
		OrderTopic:          config.EnvDefault("ORDER_EVENTS_TOPIC", events.TopicOrderEvents),
		IdempotencyTTL:      config.EnvDurationDefault("IDEMPOTENCY_TTL", 24*time.Hour),
		OutboxPollInterval:  config.EnvDurationDefault("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:     config.EnvIntDefault("OUTBOX_BATCH_SIZE", 100),
		OutboxNotifyChannel: config.EnvDefault("OUTBOX_NOTIFY_CHANNEL", ""),
	}
}
