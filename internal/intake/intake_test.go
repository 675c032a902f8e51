package intake_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/idempotency"
	"github.com/reviewpipe/reviewpipe/internal/intake"
	"github.com/reviewpipe/reviewpipe/internal/queue"
)

type memoryGate struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryGate() *memoryGate { return &memoryGate{seen: map[string]bool{}} }

func (g *memoryGate) CheckAndMark(ctx context.Context, fingerprint string) (idempotency.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[fingerprint] {
		return idempotency.Duplicate, nil
	}
	g.seen[fingerprint] = true
	return idempotency.FirstSeen, nil
}

type fakeBroker struct {
	mu      sync.Mutex
	records []queue.Record
}

func (b *fakeBroker) Append(ctx context.Context, record queue.Record) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, record)
	return record.RequestID, nil
}

func (b *fakeBroker) Claim(ctx context.Context, group, consumer string, maxBatch int, blockFor time.Duration) ([]queue.Record, error) {
	return nil, nil
}

func (b *fakeBroker) Ack(ctx context.Context, group, id string) error { return nil }

func (b *fakeBroker) ReadPending(ctx context.Context, group string) ([]queue.Record, error) {
	return nil, nil
}

func TestHandleWebhook_FirstSeenAccepted(t *testing.T) {
	gate := newMemoryGate()
	broker := &fakeBroker{}
	in := intake.New(gate, broker)

	resp, err := in.HandleWebhook(context.Background(), intake.Payload{
		Provider: "github", RepositoryID: "owner/repo", ChangeRequestID: 42,
	})
	require.NoError(t, err)
	require.Equal(t, "accepted", resp.Status)
	require.NotEmpty(t, resp.RequestID)
	require.Len(t, broker.records, 1)
}

// TestHandleWebhook_DuplicateReturns409Equivalent covers scenario 1: the
// same webhook sent twice yields one accepted response and one
// AlreadyProcessed.
func TestHandleWebhook_DuplicateReturns409Equivalent(t *testing.T) {
	gate := newMemoryGate()
	broker := &fakeBroker{}
	in := intake.New(gate, broker)

	payload := intake.Payload{Provider: "github", RepositoryID: "owner/repo", ChangeRequestID: 42}

	first, err := in.HandleWebhook(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, "accepted", first.Status)

	_, err = in.HandleWebhook(context.Background(), payload)
	require.Error(t, err)
	require.True(t, intake.IsAlreadyProcessed(err))
}

func TestHandleWebhook_ValidationErrors(t *testing.T) {
	gate := newMemoryGate()
	broker := &fakeBroker{}
	in := intake.New(gate, broker)

	_, err := in.HandleWebhook(context.Background(), intake.Payload{RepositoryID: "owner/repo", ChangeRequestID: 1})
	require.True(t, intake.IsValidationError(err))

	_, err = in.HandleWebhook(context.Background(), intake.Payload{Provider: "github", ChangeRequestID: 1})
	require.True(t, intake.IsValidationError(err))

	_, err = in.HandleWebhook(context.Background(), intake.Payload{Provider: "github", RepositoryID: "owner/repo", ChangeRequestID: 0})
	require.True(t, intake.IsValidationError(err))
}

func TestHandleWebhook_IdempotencyKeyOverridesFingerprint(t *testing.T) {
	gate := newMemoryGate()
	broker := &fakeBroker{}
	in := intake.New(gate, broker)

	p1 := intake.Payload{Provider: "github", RepositoryID: "owner/repo", ChangeRequestID: 1, IdempotencyKey: "custom-key"}
	p2 := intake.Payload{Provider: "github", RepositoryID: "owner/repo2", ChangeRequestID: 2, IdempotencyKey: "custom-key"}

	_, err := in.HandleWebhook(context.Background(), p1)
	require.NoError(t, err)

	_, err = in.HandleWebhook(context.Background(), p2)
	require.True(t, intake.IsAlreadyProcessed(err))
}
