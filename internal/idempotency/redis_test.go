package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/idempotency"
)

func TestRedisGate_FirstSeenThenDuplicate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gate := idempotency.NewRedisGate(client, time.Hour)

	ctx := context.Background()
	outcome, err := gate.CheckAndMark(ctx, "fp-1")
	require.NoError(t, err)
	require.Equal(t, idempotency.FirstSeen, outcome)

	outcome, err = gate.CheckAndMark(ctx, "fp-1")
	require.NoError(t, err)
	require.Equal(t, idempotency.Duplicate, outcome)
}

func TestRedisGate_DistinctFingerprintsBothFirstSeen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gate := idempotency.NewRedisGate(client, time.Hour)

	ctx := context.Background()
	outcome1, err := gate.CheckAndMark(ctx, "fp-a")
	require.NoError(t, err)
	outcome2, err := gate.CheckAndMark(ctx, "fp-b")
	require.NoError(t, err)

	require.Equal(t, idempotency.FirstSeen, outcome1)
	require.Equal(t, idempotency.FirstSeen, outcome2)
}
