package outbox

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/pkg/logging"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

type Relay struct {
	DB        *gorm.DB
	Publisher Publisher
	BatchSize int
	Interval  time.Duration
	// Wake triggers an immediate flush between ticks.
	Wake   <-chan struct{}
	Logger *slog.Logger
	// OnPublish is called once per record with the publish outcome.
	OnPublish func(ok bool)
}

func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	l := r.logger().With("component", "outbox_relay")
	l.Info("outbox_relay_started", "interval_ms", interval.Milliseconds())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			l.Warn("outbox_flush_error", "error", err)
		}

		select {
		case <-ctx.Done():
			l.Info("outbox_relay_stopped")
			return nil
		case <-ticker.C:
		case <-r.Wake:
		}
	}
}

// Flush publishes pending records in id order and stops at the first failure
// so per-key ordering is preserved.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	batch := r.BatchSize
	if batch <= 0 {
		batch = 100
	}

	recs, err := FetchPending(ctx, r.DB, batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range recs {
		headers := map[string]string{"event_id": rec.EventID}
		if err := r.Publisher.Publish(ctx, rec.Topic, rec.MsgKey, rec.Payload, headers); err != nil {
			r.report(false)
			r.logger().Warn("outbox_publish_error", "event_id", rec.EventID, "topic", rec.Topic, "attempts", rec.Attempts+1, "error", err)
			if mErr := MarkFailed(ctx, r.DB, rec.ID, err); mErr != nil {
				return sent, mErr
			}
			return sent, nil
		}
		r.report(true)
		if err := MarkSent(ctx, r.DB, rec.ID); err != nil {
			// the record will be published again; consumers dedupe on event_id
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (r *Relay) report(ok bool) {
	if r.OnPublish != nil {
		r.OnPublish(ok)
	}
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.Discard()
}
