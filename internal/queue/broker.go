// Package queue implements the queue broker (C5): an append-only stream
// with consumer-group claim/ack semantics, backed by Redis Streams.
package queue

import (
	"context"
	"time"
)

// Record is a single queue message: the opaque request id and its JSON
// payload (a marshaled domain.ReviewRequest).
type Record struct {
	ID        string // stream-assigned id once appended/claimed
	RequestID string
	Payload   []byte
}

// Broker is the C5 contract. Delivery is at-least-once to any single
// consumer group; a message never moves backwards in the stream.
type Broker interface {
	// Append adds a record to the stream and returns its assigned id in
	// O(1).
	Append(ctx context.Context, record Record) (string, error)

	// Claim returns up to maxBatch unacknowledged records for the named
	// consumer group and consumer, blocking up to blockFor when none are
	// immediately available. Claiming establishes an implicit lease.
	Claim(ctx context.Context, group, consumer string, maxBatch int, blockFor time.Duration) ([]Record, error)

	// Ack removes id from the pending list for group.
	Ack(ctx context.Context, group, id string) error

	// ReadPending lists records leased-but-unacked for group, for
	// recovery after a crashed consumer.
	ReadPending(ctx context.Context, group string) ([]Record, error)
}
