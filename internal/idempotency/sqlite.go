package idempotency

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteConstraintPattern matches the error text mattn/go-sqlite3 returns
// for a UNIQUE constraint violation, e.g. "UNIQUE constraint failed:
// idempotency_keys.fingerprint".
var sqliteConstraintPattern = regexp.MustCompile(`UNIQUE constraint failed`)

// SQLiteGate implements Gate with an INSERT against a UNIQUE column: the
// second insert for the same fingerprint violates the constraint and that
// violation is the DUPLICATE signal. Expired rows are swept lazily on each
// call rather than by a background job.
type SQLiteGate struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteGate opens (or creates) the fingerprint table at dbPath.
func NewSQLiteGate(dbPath string, ttl time.Duration) (*SQLiteGate, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open idempotency db: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	schema := `
	CREATE TABLE IF NOT EXISTS idempotency_keys (
		fingerprint TEXT PRIMARY KEY,
		seen_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create idempotency schema: %w", err)
	}

	return &SQLiteGate{db: db, ttl: ttl}, nil
}

func (g *SQLiteGate) CheckAndMark(ctx context.Context, fingerprint string) (Outcome, error) {
	now := time.Now()

	if _, err := g.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE fingerprint = ? AND expires_at < ?`,
		fingerprint, now.Unix()); err != nil {
		return 0, fmt.Errorf("idempotency gate: sweep expired: %w", err)
	}

	_, err := g.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (fingerprint, seen_at, expires_at) VALUES (?, ?, ?)`,
		fingerprint, now.Unix(), now.Add(g.ttl).Unix())
	if err == nil {
		return FirstSeen, nil
	}
	if isUniqueViolation(err) {
		return Duplicate, nil
	}
	return 0, fmt.Errorf("idempotency gate: %w", err)
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint violations with this substring;
	// matching on text avoids an explicit dependency on its error type.
	return err != nil && sqliteConstraintPattern.MatchString(err.Error())
}
