package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ListenPQ subscribes to a Postgres NOTIFY channel and turns notifications
// into non-blocking wake signals for Relay.Wake. The returned close func
// releases the listener connection.
func ListenPQ(ctx context.Context, dsn, channel string, l *slog.Logger) (<-chan struct{}, func() error, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.Warn("outbox_listener_event", "event", int(ev), "error", err)
		}
	})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, nil, fmt.Errorf("outbox: listen %s: %w", channel, err)
	}

	wake := make(chan struct{}, 1)
	go func() {
		keepalive := time.NewTicker(90 * time.Second)
		defer keepalive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-listener.Notify:
				if !ok {
					return
				}
				// a nil notification follows a reconnect; flushing is still correct
				select {
				case wake <- struct{}{}:
				default:
				}
			case <-keepalive.C:
				go func() { _ = listener.Ping() }()
			}
		}
	}()

	return wake, listener.Close, nil
}
