// Package outbox stores integration events in the same transaction as the
// business change and relays them to Kafka afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

type Record struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"   json:"id"`
	EventID   string     `gorm:"size:26;uniqueIndex;not null" json:"event_id"`
	Topic     string     `gorm:"size:255;not null"          json:"topic"`
	MsgKey    string     `gorm:"size:255"                   json:"key"`
	Payload   []byte     `gorm:"not null"                   json:"payload"`
	Attempts  int        `gorm:"not null;default:0"         json:"attempts"`
	LastError string     `gorm:"size:1024"                  json:"last_error,omitempty"`
	CreatedAt time.Time  `gorm:"index"                      json:"created_at"`
	SentAt    *time.Time `gorm:"index"                      json:"sent_at"`
}

func (Record) TableName() string {
	return "outbox_events"
}

type Outbox struct {
	// NotifyChannel, when set, makes Enqueue issue pg_notify so ListenPQ
	// can wake the relay as soon as the transaction commits. Postgres only.
	NotifyChannel string
}

// Enqueue must be called with the transaction handle of the business change.
func (o Outbox) Enqueue(tx *gorm.DB, topic, key string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("outbox: marshal payload: %w", err)
	}

	rec := Record{
		EventID: ulid.Make().String(),
		Topic:   topic,
		MsgKey:  key,
		Payload: data,
	}
	if err := tx.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("outbox: insert: %w", err)
	}

	if o.NotifyChannel != "" {
		if err := tx.Exec("SELECT pg_notify(?, ?)", o.NotifyChannel, rec.EventID).Error; err != nil {
			return "", fmt.Errorf("outbox: notify: %w", err)
		}
	}
	return rec.EventID, nil
}

func FetchPending(ctx context.Context, db *gorm.DB, limit int) ([]Record, error) {
	var out []Record
	err := db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func MarkSent(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Model(&Record{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sent_at":    time.Now().UTC(),
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
		}).Error
}

func MarkFailed(ctx context.Context, db *gorm.DB, id int64, cause error) error {
	msg := cause.Error()
	if len(msg) > 1024 {
		msg = msg[:1024]
	}
	return db.WithContext(ctx).Model(&Record{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}

func CountPending(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Record{}).Where("sent_at IS NULL").Count(&n).Error
	return n, err
}
