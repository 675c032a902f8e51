package resultstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// RedisStore implements Store with a plain SET ... EX per key; the TTL
// resets on every write, matching the documented "24h from last write"
// retention window.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a store against an existing client. ttl defaults
// to 24h when zero.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

type wireRecord struct {
	RequestID        string `json:"requestId"`
	Status           string `json:"status"`
	Payload          []byte `json:"payload,omitempty"`
	Error            string `json:"error,omitempty"`
	CompletedAt      string `json:"completedAt,omitempty"`
	ProcessingTimeMs int64  `json:"processingTimeMs,omitempty"`
	Provider         string `json:"llmProvider,omitempty"`
	Model            string `json:"llmModel,omitempty"`
}

func (s *RedisStore) Write(ctx context.Context, record Record) error {
	existing, found, err := s.Read(ctx, record.RequestID)
	if err != nil {
		return err
	}
	if found && !domain.CanTransition(existing.Status, record.Status) && existing.Status != record.Status {
		log.Printf("resultstore: illegal transition %s -> %s for %s; writing anyway (later write wins)",
			existing.Status, record.Status, record.RequestID)
	}

	data, err := json.Marshal(toWire(record))
	if err != nil {
		return fmt.Errorf("resultstore: marshal: %w", err)
	}
	if err := s.client.Set(ctx, Key(record.RequestID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("resultstore: write: %w", err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, requestID string) (Record, bool, error) {
	data, err := s.client.Get(ctx, Key(requestID)).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("resultstore: read: %w", err)
	}
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, false, fmt.Errorf("resultstore: unmarshal: %w", err)
	}
	return fromWire(w), true, nil
}

func toWire(r Record) wireRecord {
	w := wireRecord{
		RequestID:        r.RequestID,
		Status:           string(r.Status),
		Payload:          r.Payload,
		Error:            r.Error,
		ProcessingTimeMs: r.ProcessingTimeMs,
		Provider:         r.Provider,
		Model:            r.Model,
	}
	if !r.CompletedAt.IsZero() {
		w.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return w
}

func fromWire(w wireRecord) Record {
	r := Record{
		RequestID:        w.RequestID,
		Status:           domain.ReviewStatus(w.Status),
		Payload:          w.Payload,
		Error:            w.Error,
		ProcessingTimeMs: w.ProcessingTimeMs,
		Provider:         w.Provider,
		Model:            w.Model,
	}
	if w.CompletedAt != "" {
		if t, err := time.Parse(time.RFC3339, w.CompletedAt); err == nil {
			r.CompletedAt = t
		}
	}
	return r
}
