package tracking_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/tracking"
)

func TestRedisStore_LoadMissingReturnsEmptyState(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := tracking.NewRedisStore(client, time.Hour)

	target := tracking.Target{RepositoryID: "acme/widgets", ChangeRequestID: "42"}
	state, err := store.Load(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, target, state.Target)
	require.Empty(t, state.Findings)
}

func TestRedisStore_SaveAndLoadRoundTrips(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := tracking.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	target := tracking.Target{RepositoryID: "acme/widgets", ChangeRequestID: "42"}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	state := tracking.Reconcile(tracking.NewState(target), target, "sha1", []domain.ReviewFinding{
		{File: "a.go", Severity: domain.SeverityMajor, Title: "missing nil check"},
	}, now)

	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx, target)
	require.NoError(t, err)
	require.Equal(t, target, loaded.Target)
	require.True(t, loaded.HasBeenReviewed("sha1"))
	require.Len(t, loaded.ActiveFindings(), 1)
}

func TestRedisStore_Clear(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := tracking.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	target := tracking.Target{RepositoryID: "acme/widgets", ChangeRequestID: "42"}
	require.NoError(t, store.Save(ctx, tracking.NewState(target)))
	require.NoError(t, store.Clear(ctx, target))

	state, err := store.Load(ctx, target)
	require.NoError(t, err)
	require.Empty(t, state.Findings)
}
