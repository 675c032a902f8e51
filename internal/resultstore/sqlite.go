package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// SQLiteStore implements Store with a single table keyed by requestId and
// an expires_at column swept lazily on each call, the same pattern
// idempotency.SQLiteGate uses.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteStore opens (or creates) the result table at dbPath.
func NewSQLiteStore(dbPath string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open result store db: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	schema := `
	CREATE TABLE IF NOT EXISTS review_results (
		request_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		payload BLOB,
		error TEXT,
		completed_at INTEGER,
		processing_time_ms INTEGER,
		provider TEXT,
		model TEXT,
		expires_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create result store schema: %w", err)
	}

	return &SQLiteStore{db: db, ttl: ttl}, nil
}

func (s *SQLiteStore) Write(ctx context.Context, record Record) error {
	if err := s.sweepExpired(ctx); err != nil {
		return err
	}

	existing, found, err := s.Read(ctx, record.RequestID)
	if err != nil {
		return err
	}
	if found && !domain.CanTransition(existing.Status, record.Status) && existing.Status != record.Status {
		log.Printf("resultstore: illegal transition %s -> %s for %s; writing anyway (later write wins)",
			existing.Status, record.Status, record.RequestID)
	}

	var completedAt sql.NullInt64
	if !record.CompletedAt.IsZero() {
		completedAt = sql.NullInt64{Int64: record.CompletedAt.Unix(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_results
			(request_id, status, payload, error, completed_at, processing_time_ms, provider, model, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			status=excluded.status, payload=excluded.payload, error=excluded.error,
			completed_at=excluded.completed_at, processing_time_ms=excluded.processing_time_ms,
			provider=excluded.provider, model=excluded.model, expires_at=excluded.expires_at`,
		record.RequestID, string(record.Status), record.Payload, record.Error,
		completedAt, record.ProcessingTimeMs, record.Provider, record.Model,
		time.Now().Add(s.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("resultstore: write: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context, requestID string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status, payload, error, completed_at, processing_time_ms, provider, model
		FROM review_results WHERE request_id = ? AND expires_at >= ?`,
		requestID, time.Now().Unix())

	var (
		status           string
		payload          []byte
		errMsg           sql.NullString
		completedAt      sql.NullInt64
		processingTimeMs sql.NullInt64
		provider         sql.NullString
		model            sql.NullString
	)
	err := row.Scan(&status, &payload, &errMsg, &completedAt, &processingTimeMs, &provider, &model)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("resultstore: read: %w", err)
	}

	record := Record{
		RequestID:        requestID,
		Status:           domain.ReviewStatus(status),
		Payload:          payload,
		Error:            errMsg.String,
		ProcessingTimeMs: processingTimeMs.Int64,
		Provider:         provider.String,
		Model:            model.String,
	}
	if completedAt.Valid {
		record.CompletedAt = time.Unix(completedAt.Int64, 0).UTC()
	}
	return record, true, nil
}

func (s *SQLiteStore) sweepExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM review_results WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("resultstore: sweep expired: %w", err)
	}
	return nil
}

// MarshalPayload is a convenience for callers writing a domain.AggregatedReview
// as a Record's Payload.
func MarshalPayload(review domain.AggregatedReview) ([]byte, error) {
	return json.Marshal(review)
}
