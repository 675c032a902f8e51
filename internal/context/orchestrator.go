package context

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reviewpipe/reviewpipe/internal/diff"
	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// Config controls the orchestrator's gating and per-strategy timeout.
type Config struct {
	Enabled       bool
	MaxDiffLines  int
	SkipLargeDiff bool
	Timeout       time.Duration
}

// DefaultConfig mirrors the documented defaults: a 30-line cutoff for large
// diffs and a 1s per-strategy timeout.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		MaxDiffLines:  30,
		SkipLargeDiff: true,
		Timeout:       time.Second,
	}
}

// Orchestrator runs the registered strategies and merges their results.
type Orchestrator struct {
	cfg        Config
	strategies []Strategy
}

// NewOrchestrator builds an orchestrator over the given strategies. Order
// does not matter; Priority() on each Strategy breaks merge ties.
func NewOrchestrator(cfg Config, strategies ...Strategy) *Orchestrator {
	return &Orchestrator{cfg: cfg, strategies: strategies}
}

// Config returns the orchestrator's gating configuration, for callers that
// need to build a sibling Orchestrator with an augmented strategy list.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Strategies returns the registered strategy list.
func (o *Orchestrator) Strategies() []Strategy {
	return o.strategies
}

// Retrieve runs every strategy and returns the merged bundle. When the
// feature is disabled, or the diff exceeds the configured line budget with
// skipping enabled, it returns an empty bundle without invoking anything.
func (o *Orchestrator) Retrieve(ctx context.Context, doc diff.GitDiffDocument) Bundle {
	if !o.cfg.Enabled {
		return Bundle{}
	}
	if o.cfg.SkipLargeDiff && countDiffLines(doc) > o.cfg.MaxDiffLines {
		return Bundle{}
	}

	results := make([]namedResult, len(o.strategies))
	var wg sync.WaitGroup
	for i, s := range o.strategies {
		wg.Add(1)
		go func(i int, s Strategy) {
			defer wg.Done()
			results[i] = o.runOne(ctx, s, doc)
		}(i, s)
	}
	wg.Wait()

	return merge(results)
}

type namedResult struct {
	name     string
	priority int
	result   Result
	elapsed  time.Duration
}

// runOne invokes a single strategy under its own timeout. A timeout or
// error contributes an empty result rather than aborting the others.
func (o *Orchestrator) runOne(ctx context.Context, s Strategy, doc diff.GitDiffDocument) namedResult {
	timeout := o.cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	strategyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := s.Retrieve(strategyCtx, doc)
		if err != nil {
			errCh <- err
			return
		}
		done <- res
	}()

	select {
	case res := <-done:
		return namedResult{name: s.Name(), priority: s.Priority(), result: res, elapsed: time.Since(start)}
	case <-errCh:
		return namedResult{name: s.Name(), priority: s.Priority(), result: Result{}, elapsed: time.Since(start)}
	case <-strategyCtx.Done():
		return namedResult{name: s.Name(), priority: s.Priority(), result: Result{}, elapsed: time.Since(start)}
	}
}

// merge implements §4.2 steps 3-5: merge by path keeping the highest
// confidence (ties broken by earliest priority), sort descending, and sum
// the metadata.
func merge(results []namedResult) Bundle {
	type slot struct {
		match    domain.ContextMatch
		priority int
	}
	byPath := map[string]slot{}

	var names []string
	var totalMillis int64
	var totalCandidates int
	var totalHighConfidence int
	reasonCounts := map[domain.MatchReason]int{}

	for _, nr := range results {
		names = append(names, nr.name)
		totalMillis += nr.elapsed.Milliseconds()
		totalCandidates += nr.result.CandidateCount
		totalHighConfidence += nr.result.HighConfidenceCount
		for reason, count := range nr.result.ReasonCounts {
			reasonCounts[reason] += count
		}

		for _, m := range nr.result.Matches {
			existing, ok := byPath[m.FilePath]
			if !ok {
				byPath[m.FilePath] = slot{match: m, priority: nr.priority}
				continue
			}
			if m.Confidence > existing.match.Confidence {
				byPath[m.FilePath] = slot{match: m, priority: nr.priority}
				continue
			}
			if m.Confidence == existing.match.Confidence && nr.priority < existing.priority {
				byPath[m.FilePath] = slot{match: m, priority: nr.priority}
			}
		}
	}

	matches := make([]domain.ContextMatch, 0, len(byPath))
	for _, s := range byPath {
		matches = append(matches, s.match)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	return Bundle{
		Matches:             matches,
		StrategyNames:       joinNames(names),
		TotalExecutionTime:  totalMillis,
		TotalCandidates:     totalCandidates,
		HighConfidenceCount: totalHighConfidence,
		ReasonCounts:        reasonCounts,
	}
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "+"
		}
		out += n
	}
	return out
}

func countDiffLines(doc diff.GitDiffDocument) int {
	total := 0
	for _, fm := range doc.Files {
		for _, hunk := range fm.Hunks {
			total += len(hunk.Lines)
		}
	}
	return total
}
