package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBroker implements Broker with Redis Streams: XADD for append,
// XREADGROUP for claim, XACK for ack, and XPENDING for recovery listing.
type RedisBroker struct {
	client *redis.Client
	stream string
}

// NewRedisBroker builds a broker over the named stream, creating the
// default consumer group lazily on first Claim.
func NewRedisBroker(client *redis.Client, stream string) *RedisBroker {
	return &RedisBroker{client: client, stream: stream}
}

func (b *RedisBroker) Append(ctx context.Context, record Record) (string, error) {
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{
			"requestId": record.RequestID,
			"payload":   string(record.Payload),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("queue: append: %w", err)
	}
	return id, nil
}

// ensureGroup creates the consumer group starting from the beginning of
// the stream, tolerating the "already exists" error Redis returns on a
// repeat call.
func (b *RedisBroker) ensureGroup(ctx context.Context, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, b.stream, group, "0").Err()
	if err != nil && !isGroupExistsErr(err) {
		return fmt.Errorf("queue: create group %s: %w", group, err)
	}
	return nil
}

func isGroupExistsErr(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

func (b *RedisBroker) Claim(ctx context.Context, group, consumer string, maxBatch int, blockFor time.Duration) ([]Record, error) {
	if err := b.ensureGroup(ctx, group); err != nil {
		return nil, err
	}
	if maxBatch <= 0 {
		maxBatch = 1
	}

	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{b.stream, ">"},
		Count:    int64(maxBatch),
		Block:    blockFor,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: claim: %w", err)
	}

	var records []Record
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			records = append(records, recordFromMessage(msg))
		}
	}
	return records, nil
}

func (b *RedisBroker) Ack(ctx context.Context, group, id string) error {
	if err := b.client.XAck(ctx, b.stream, group, id).Err(); err != nil {
		return fmt.Errorf("queue: ack %s: %w", id, err)
	}
	return nil
}

func (b *RedisBroker) ReadPending(ctx context.Context, group string) ([]Record, error) {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: b.stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  1000,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: read pending: %w", err)
	}

	var records []Record
	for _, p := range pending {
		msgs, err := b.client.XRange(ctx, b.stream, p.ID, p.ID).Result()
		if err != nil {
			return nil, fmt.Errorf("queue: read pending range %s: %w", p.ID, err)
		}
		for _, msg := range msgs {
			records = append(records, recordFromMessage(msg))
		}
	}
	return records, nil
}

func recordFromMessage(msg redis.XMessage) Record {
	requestID, _ := msg.Values["requestId"].(string)
	payload, _ := msg.Values["payload"].(string)
	return Record{ID: msg.ID, RequestID: requestID, Payload: []byte(payload)}
}
