package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	Header         = "Idempotency-Key"
	ReplayedHeader = "Idempotent-Replayed"

	statePending = "pending"
	stateDone    = "done"
)

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type entry struct {
	State    string    `json:"state"`
	Response *Response `json:"response,omitempty"`
}

type Store struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl, Prefix: "idem:"}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("idempotency: parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Reserve claims key for the caller. When the key is already taken it
// returns the stored response, or nil while the first request is in flight.
func (s *Store) Reserve(ctx context.Context, key string) (reserved bool, stored *Response, err error) {
	pending, _ := json.Marshal(entry{State: statePending})

	ok, err := s.Client.SetNX(ctx, s.Prefix+key, pending, s.TTL).Result()
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}

	raw, err := s.Client.Get(ctx, s.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.Reserve(ctx, key)
	}
	if err != nil {
		return false, nil, err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return false, nil, fmt.Errorf("idempotency: decode entry: %w", err)
	}
	if e.State == stateDone {
		return false, e.Response, nil
	}
	return false, nil, nil
}

func (s *Store) Complete(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(entry{State: stateDone, Response: &resp})
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, s.Prefix+key, data, s.TTL).Err()
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.Prefix+key).Err()
}
