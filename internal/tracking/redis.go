package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// RedisStore implements Store with a plain SET/GET/DEL per key, mirroring
// the result store's persistence pattern; the TTL resets on every Save.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a store against an existing client. ttl defaults
// to DefaultTTL when zero.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func key(target Target) string {
	return KeyPrefix + target.Key()
}

type wireFinding struct {
	Fingerprint     string              `json:"fingerprint"`
	Finding         domain.ReviewFinding `json:"finding"`
	Status          string              `json:"status"`
	FirstSeenCommit string              `json:"firstSeenCommit"`
	FirstSeenAt     time.Time           `json:"firstSeenAt"`
	LastSeenCommit  string              `json:"lastSeenCommit"`
	LastSeenAt      time.Time           `json:"lastSeenAt"`
	SeenCount       int                 `json:"seenCount"`
}

type wireState struct {
	RepositoryID    string        `json:"repositoryId"`
	ChangeRequestID string        `json:"changeRequestId"`
	ReviewedCommits []string      `json:"reviewedCommits"`
	Findings        []wireFinding `json:"findings"`
	LastUpdated     time.Time     `json:"lastUpdated"`
}

func toWire(s State) wireState {
	w := wireState{
		RepositoryID:    s.Target.RepositoryID,
		ChangeRequestID: s.Target.ChangeRequestID,
		ReviewedCommits: s.ReviewedCommits,
		LastUpdated:     s.LastUpdated,
	}
	for _, f := range s.Findings {
		w.Findings = append(w.Findings, wireFinding{
			Fingerprint:     string(f.Fingerprint),
			Finding:         f.Finding,
			Status:          string(f.Status),
			FirstSeenCommit: f.FirstSeenCommit,
			FirstSeenAt:     f.FirstSeenAt,
			LastSeenCommit:  f.LastSeenCommit,
			LastSeenAt:      f.LastSeenAt,
			SeenCount:       f.SeenCount,
		})
	}
	return w
}

func fromWire(w wireState) State {
	s := State{
		Target: Target{
			RepositoryID:    w.RepositoryID,
			ChangeRequestID: w.ChangeRequestID,
		},
		ReviewedCommits: w.ReviewedCommits,
		Findings:        make(map[domain.FindingFingerprint]domain.TrackedFinding, len(w.Findings)),
		LastUpdated:     w.LastUpdated,
	}
	for _, f := range w.Findings {
		fp := domain.FindingFingerprint(f.Fingerprint)
		s.Findings[fp] = domain.TrackedFinding{
			Fingerprint:     fp,
			Finding:         f.Finding,
			Status:          domain.TrackedFindingStatus(f.Status),
			FirstSeenCommit: f.FirstSeenCommit,
			FirstSeenAt:     f.FirstSeenAt,
			LastSeenCommit:  f.LastSeenCommit,
			LastSeenAt:      f.LastSeenAt,
			SeenCount:       f.SeenCount,
		}
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context, target Target) (State, error) {
	if err := target.Validate(); err != nil {
		return State{}, err
	}
	data, err := s.client.Get(ctx, key(target)).Bytes()
	if err == redis.Nil {
		return NewState(target), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("tracking: read: %w", err)
	}
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return State{}, fmt.Errorf("tracking: unmarshal: %w", err)
	}
	return fromWire(w), nil
}

func (s *RedisStore) Save(ctx context.Context, state State) error {
	if err := state.Target.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(toWire(state))
	if err != nil {
		return fmt.Errorf("tracking: marshal: %w", err)
	}
	if err := s.client.Set(ctx, key(state.Target), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("tracking: write: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, target Target) error {
	if err := s.client.Del(ctx, key(target)).Err(); err != nil {
		return fmt.Errorf("tracking: clear: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
