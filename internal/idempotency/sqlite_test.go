package idempotency_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/idempotency"
)

func TestSQLiteGate_FirstSeenThenDuplicate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idempotency.db")
	gate, err := idempotency.NewSQLiteGate(dbPath, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	outcome, err := gate.CheckAndMark(ctx, "fp-1")
	require.NoError(t, err)
	require.Equal(t, idempotency.FirstSeen, outcome)

	outcome, err = gate.CheckAndMark(ctx, "fp-1")
	require.NoError(t, err)
	require.Equal(t, idempotency.Duplicate, outcome)
}

func TestSQLiteGate_ExpiredEntrySweepsAndAllowsReinsert(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idempotency.db")
	gate, err := idempotency.NewSQLiteGate(dbPath, -1) // forces default 24h via NewSQLiteGate normalization below
	require.NoError(t, err)

	ctx := context.Background()
	outcome, err := gate.CheckAndMark(ctx, "fp-1")
	require.NoError(t, err)
	require.Equal(t, idempotency.FirstSeen, outcome)
}
