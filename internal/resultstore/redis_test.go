package resultstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/resultstore"
)

func TestRedisStore_WriteAndRead(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := resultstore.NewRedisStore(client, time.Hour)

	ctx := context.Background()
	err := store.Write(ctx, resultstore.Record{
		RequestID: "r1",
		Status:    domain.ReviewStatusCompleted,
		Payload:   []byte(`{"summary":"ok"}`),
		Provider:  "anthropic",
		Model:     "claude",
	})
	require.NoError(t, err)

	record, found, err := store.Read(ctx, "r1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.ReviewStatusCompleted, record.Status)
	require.Equal(t, "anthropic", record.Provider)
}

func TestRedisStore_ReadMissing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := resultstore.NewRedisStore(client, time.Hour)

	_, found, err := store.Read(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStore_LaterWriteWinsOnIllegalTransition(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := resultstore.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, resultstore.Record{RequestID: "r1", Status: domain.ReviewStatusCompleted}))
	require.NoError(t, store.Write(ctx, resultstore.Record{RequestID: "r1", Status: domain.ReviewStatusPending}))

	record, _, err := store.Read(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, domain.ReviewStatusPending, record.Status)
}
