// Package resultstore implements the result store (C12): a TTL'd
// key-value record of per-request status and payload, keyed
// "review:result:{requestId}".
package resultstore

import (
	"context"
	"time"

	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// DefaultTTL is the documented 24h retention window.
const DefaultTTL = 24 * time.Hour

// KeyPrefix is prepended to every requestId to form the store key.
const KeyPrefix = "review:result:"

// Key returns the store key for requestId.
func Key(requestID string) string {
	return KeyPrefix + requestID
}

// Record is the stored value for one ReviewRequest's lifecycle.
type Record struct {
	RequestID        string
	Status           domain.ReviewStatus
	Payload          []byte // JSON AggregatedReview, present iff Status == COMPLETED
	Error            string // present iff Status == FAILED
	CompletedAt      time.Time
	ProcessingTimeMs int64
	Provider         string
	Model            string
}

// Store is the C12 contract. Only monotonic status transitions (per
// domain.CanTransition) are permitted; a caller attempting an illegal
// transition gets ErrIllegalTransition back, but the later write wins —
// implementations log the violation and still apply whatever the caller
// asked for rather than refusing the write outright.
type Store interface {
	Write(ctx context.Context, record Record) error
	Read(ctx context.Context, requestID string) (Record, bool, error)
}
