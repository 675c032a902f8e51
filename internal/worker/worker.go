// Package worker implements the worker loop (C10): the consumer that
// claims ReviewRequests from the queue broker (C5) and drives them
// through every downstream component — diff parsing, context retrieval,
// prompt composition, the LLM driver, aggregation, validation, and
// publication — in a fixed sequence.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/reviewpipe/reviewpipe/internal/aggregator"
	llmhttp "github.com/reviewpipe/reviewpipe/internal/adapter/llm/http"
	contextpkg "github.com/reviewpipe/reviewpipe/internal/context"
	"github.com/reviewpipe/reviewpipe/internal/diff"
	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/llm"
	"github.com/reviewpipe/reviewpipe/internal/observability"
	"github.com/reviewpipe/reviewpipe/internal/prompt"
	"github.com/reviewpipe/reviewpipe/internal/queue"
	"github.com/reviewpipe/reviewpipe/internal/resultstore"
	"github.com/reviewpipe/reviewpipe/internal/sandbox"
	"github.com/reviewpipe/reviewpipe/internal/scm"
	"github.com/reviewpipe/reviewpipe/internal/tracking"
	"github.com/reviewpipe/reviewpipe/internal/verify"
)

// LLMDriver is the narrow C7 contract the worker depends on, satisfied by
// *llm.Driver; tests substitute a fake to exercise the retry ladder
// without a real provider.
type LLMDriver interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (llm.ReviewResultSchema, error)
}

// SandboxRunner is the narrow C6 contract, satisfied by *sandbox.Runner.
type SandboxRunner interface {
	Run(ctx context.Context, cfg sandbox.Config) (sandbox.Result, error)
}

// Dependencies wires every upstream/downstream collaborator the worker
// loop needs, following the same explicit-injection style as the rest of
// this codebase's entrypoints.
type Dependencies struct {
	Broker       queue.Broker
	SCM          scm.Port
	Context      *contextpkg.Orchestrator
	Prompt       *prompt.Composer
	LLM          LLMDriver
	Sandbox      SandboxRunner
	SandboxImage sandbox.Config // base config cloned per run when SandboxEnabled
	Aggregator   aggregator.Config
	Store        resultstore.Store

	// CloneRepo checks out repositoryID at headSHA into a scratch
	// directory for the sandbox mount, the git co-change context
	// strategy, and the verification agent's Repository. Optional: a
	// nil value disables all three downstream uses without failing the
	// request. cleanup removes the scratch directory and must be
	// called once process is done with it.
	CloneRepo func(ctx context.Context, repositoryID, headSHA string) (dir string, cleanup func(), err error)

	// VerifierFactory builds a Verifier bound to a request's checked-out
	// repository. Optional: enables the agent verification enrichment
	// only when both this and CloneRepo are set.
	VerifierFactory func(repo verify.Repository) verify.Verifier

	Tracking tracking.Store // optional: enables cross-run finding reconciliation

	Metrics *observability.Metrics
	Logger  *log.Logger
}

// Worker claims records from the queue and processes them one at a time
// per consumer. Run a Worker per goroutine to scale out consumers within
// a single group.
type Worker struct {
	cfg  Config
	deps Dependencies
}

// New builds a Worker. deps.Logger defaults to log.Default() if nil.
func New(cfg Config, deps Dependencies) *Worker {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Worker{cfg: cfg, deps: deps}
}

// Run claims and processes batches until ctx is cancelled. It never
// returns a non-nil error for a single request's failure — those are
// recorded as FAILED results and acked so the stream keeps moving; Run
// only returns an error when Claim itself fails repeatedly.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		claimStart := time.Now()
		records, err := w.deps.Broker.Claim(ctx, w.cfg.Group, w.cfg.Consumer, w.cfg.MaxBatch, w.cfg.BlockFor)
		if w.deps.Metrics != nil {
			w.deps.Metrics.ClaimLatency.Observe(time.Since(claimStart).Seconds())
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.deps.Logger.Printf("worker: claim: %v", err)
			continue
		}

		for _, record := range records {
			w.processAndAck(ctx, record)
		}
	}
}

// processAndAck processes one record and acks it regardless of outcome:
// write FAILED, ack anyway, so a poisoned message never replays forever.
func (w *Worker) processAndAck(ctx context.Context, record queue.Record) {
	start := time.Now()
	status := domain.ReviewStatusCompleted
	if err := w.process(ctx, record); err != nil {
		status = domain.ReviewStatusFailed
		w.deps.Logger.Printf("worker: request %s failed: %v", record.RequestID, err)
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.RequestsProcessed.WithLabelValues(string(status)).Inc()
		w.deps.Metrics.ProcessingTime.Observe(time.Since(start).Seconds())
	}

	if err := w.deps.Broker.Ack(ctx, w.cfg.Group, record.ID); err != nil {
		w.deps.Logger.Printf("worker: ack %s: %v", record.ID, err)
	}
}

// process runs the full C1-C9 pipeline for a single claimed record. A
// returned error means the request finished FAILED; the caller still
// acks the message.
func (w *Worker) process(ctx context.Context, record queue.Record) error {
	startedAt := time.Now()

	var request domain.ReviewRequest
	if err := json.Unmarshal(record.Payload, &request); err != nil {
		return fmt.Errorf("worker: unmarshal request: %w", err)
	}

	w.writeStatus(ctx, request, domain.ReviewStatusProcessing, resultstore.Record{})

	patch, err := w.deps.SCM.GetDiff(ctx, request.RepositoryID, request.ChangeRequestID)
	if err != nil {
		if scm.IsNotFound(err) {
			return w.fail(ctx, request, startedAt, fmt.Errorf("change request gone: %w", err))
		}
		return w.fail(ctx, request, startedAt, fmt.Errorf("fetch diff: %w", err))
	}

	doc, err := diff.ParseDocument(patch)
	if err != nil {
		// A malformed diff degrades to an empty document rather than
		// failing the request outright, so the context step still gets an
		// (empty) bundle to work with.
		w.deps.Logger.Printf("worker: request %s: parse diff: %v", request.RequestID, err)
		doc = diff.GitDiffDocument{}
	}

	var repoDir string
	if w.deps.CloneRepo != nil {
		dir, cleanup, err := w.deps.CloneRepo(ctx, request.RepositoryID, request.HeadSHA)
		if err != nil {
			w.deps.Logger.Printf("worker: request %s: clone repository: %v", request.RequestID, err)
		} else {
			repoDir = dir
			defer cleanup()
		}
	}

	bundle := contextpkg.Bundle{}
	if w.deps.Context != nil {
		bundle = w.contextOrchestrator(repoDir).Retrieve(ctx, doc)
	}

	var testResult *aggregator.TestExecutionResult
	if w.cfg.SandboxEnabled && w.deps.Sandbox != nil {
		testResult = w.runSandbox(ctx, request, repoDir)
	}

	metadata, err := w.deps.SCM.GetPullRequestMetadata(ctx, request.RepositoryID, request.ChangeRequestID)
	if err != nil {
		w.deps.Logger.Printf("worker: request %s: pull request metadata: %v", request.RequestID, err)
	}

	var aiResult *llm.ReviewResultSchema
	if w.deps.Prompt != nil && w.deps.LLM != nil {
		systemPrompt, userPrompt := w.deps.Prompt.Compose(prompt.Input{
			PRMetadata: formatMetadata(metadata),
			Diff:       doc,
			Context:    bundle.Matches,
		})

		result, err := w.invokeWithRetry(ctx, systemPrompt, userPrompt)
		if err != nil {
			var jsonErr *llm.JsonValidationError
			if errors.As(err, &jsonErr) {
				return w.fail(ctx, request, startedAt, fmt.Errorf("llm response validation: %w", err))
			}
			return w.fail(ctx, request, startedAt, fmt.Errorf("llm invoke: %w", err))
		}
		aiResult = &result
	}

	review := aggregator.Aggregate(w.deps.Aggregator, aiResult, testResult)
	review.Findings = validateAgainstDiff(doc, review.Findings)
	if w.cfg.VerificationEnabled && repoDir != "" {
		review.Findings = w.applyVerification(ctx, repoDir, review.Findings)
	}

	if err := w.publish(ctx, request, review); err != nil {
		w.deps.Logger.Printf("worker: request %s: publish: %v", request.RequestID, err)
	}
	if w.cfg.TrackingEnabled {
		w.reconcileTracking(ctx, request, review.Findings)
	}

	payload, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("worker: marshal review: %w", err)
	}

	w.writeStatus(ctx, request, domain.ReviewStatusCompleted, resultstore.Record{
		Payload:          payload,
		ProcessingTimeMs: time.Since(startedAt).Milliseconds(),
	})
	return nil
}

// validateAgainstDiff implements C9: drop any finding whose file/line does
// not fall within the parsed diff, the sole gate between a finding and
// publication.
func validateAgainstDiff(doc diff.GitDiffDocument, findings []domain.ReviewFinding) []domain.ReviewFinding {
	out := make([]domain.ReviewFinding, 0, len(findings))
	for _, f := range findings {
		if diff.IsLineInDiff(doc, f.File, f.StartLine) {
			out = append(out, f)
		}
	}
	return out
}

// invokeWithRetry runs C3's composed prompt through C7, retrying transient
// provider errors up to cfg.MaxRetries with exponential backoff capped at
// MaxBackoff. A JsonValidationError is never retried.
func (w *Worker) invokeWithRetry(ctx context.Context, systemPrompt, userPrompt string) (llm.ReviewResultSchema, error) {
	backoffCfg := llmhttp.RetryConfig{
		MaxRetries:     w.cfg.MaxRetries,
		InitialBackoff: nonZero(w.cfg.InitialBackoff, time.Second),
		MaxBackoff:     nonZero(w.cfg.MaxBackoff, 30*time.Second),
		Multiplier:     2.0,
	}

	var lastErr error
	for attempt := 0; attempt <= backoffCfg.MaxRetries; attempt++ {
		result, err := w.deps.LLM.Invoke(ctx, systemPrompt, userPrompt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var jsonErr *llm.JsonValidationError
		if errors.As(err, &jsonErr) {
			return llm.ReviewResultSchema{}, err
		}
		if attempt >= backoffCfg.MaxRetries {
			break
		}

		if w.deps.Metrics != nil {
			w.deps.Metrics.LLMRetries.Inc()
		}
		wait := llmhttp.ExponentialBackoff(attempt, backoffCfg)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return llm.ReviewResultSchema{}, ctx.Err()
		}
	}
	return llm.ReviewResultSchema{}, lastErr
}

// runSandbox launches the sandboxed test workload and reduces its result
// to a single synthetic pass/fail test case. The pipeline has no JUnit/TAP
// parser in scope (see DESIGN.md); exit code is the sole signal. repoDir,
// when non-empty, is bind-mounted read-write as the container's workspace.
func (w *Worker) runSandbox(ctx context.Context, request domain.ReviewRequest, repoDir string) *aggregator.TestExecutionResult {
	cfg := w.deps.SandboxImage
	if repoDir != "" {
		cfg.WorkspaceVolume = repoDir
	}
	result, err := w.deps.Sandbox.Run(ctx, cfg)
	if err != nil {
		w.deps.Logger.Printf("worker: request %s: sandbox: %v", request.RequestID, err)
		return nil
	}
	if result.TimedOut && w.deps.Metrics != nil {
		w.deps.Metrics.SandboxTimeouts.Inc()
	}

	status := aggregator.TestStatusPassed
	message := result.Stdout
	if result.ExitCode != 0 || result.TimedOut {
		status = aggregator.TestStatusFailed
		message = result.Stderr
	}
	return &aggregator.TestExecutionResult{
		Tests: []aggregator.TestCase{{
			ClassName: "sandbox.TestWorkload",
			Name:      "run",
			Status:    status,
			Message:   message,
		}},
	}
}

// publish picks a ReviewAction from the aggregated severity mix and
// publishes the findings and summary via the SCM collaborator, skipping
// publication entirely when the change request has since closed.
func (w *Worker) publish(ctx context.Context, request domain.ReviewRequest, review domain.AggregatedReview) error {
	open, err := w.deps.SCM.IsChangeRequestOpen(ctx, request.RepositoryID, request.ChangeRequestID)
	if err != nil {
		return fmt.Errorf("check change request state: %w", err)
	}
	if !open {
		return nil
	}

	action := w.chooseAction(review.CountsBySeverity)
	if err := w.deps.SCM.PublishReview(ctx, request.RepositoryID, request.ChangeRequestID, review.Findings, action); err != nil {
		return fmt.Errorf("publish review: %w", err)
	}
	if err := w.deps.SCM.PublishSummaryComment(ctx, request.RepositoryID, request.ChangeRequestID, review.Summary); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

// chooseAction maps the worst severity present onto the configured
// ActionOnCritical/High/Medium/Low action ladder.
func (w *Worker) chooseAction(counts map[domain.Severity]int) scm.ReviewAction {
	switch {
	case counts[domain.SeverityCritical] > 0:
		return scm.ReviewAction(nonEmpty(w.cfg.ActionOnCritical, string(scm.ActionRequestChanges)))
	case counts[domain.SeverityMajor] > 0:
		return scm.ReviewAction(nonEmpty(w.cfg.ActionOnMajor, string(scm.ActionComment)))
	case counts[domain.SeverityMinor] > 0 || counts[domain.SeverityError] > 0:
		return scm.ReviewAction(nonEmpty(w.cfg.ActionOnMinor, string(scm.ActionComment)))
	default:
		return scm.ReviewAction(nonEmpty(w.cfg.ActionOnNone, string(scm.ActionApprove)))
	}
}

// fail writes a FAILED result and returns the error unwrapped so process's
// caller logs it once.
func (w *Worker) fail(ctx context.Context, request domain.ReviewRequest, startedAt time.Time, err error) error {
	w.writeStatus(ctx, request, domain.ReviewStatusFailed, resultstore.Record{
		Error:            err.Error(),
		ProcessingTimeMs: time.Since(startedAt).Milliseconds(),
	})
	return err
}

func (w *Worker) writeStatus(ctx context.Context, request domain.ReviewRequest, status domain.ReviewStatus, partial resultstore.Record) {
	record := partial
	record.RequestID = request.RequestID
	record.Status = status
	record.CompletedAt = time.Now()
	record.Provider = string(request.Provider)

	if w.deps.Store == nil {
		return
	}
	if err := w.deps.Store.Write(ctx, record); err != nil {
		w.deps.Logger.Printf("worker: request %s: write status %s: %v", request.RequestID, status, err)
	}
}

// contextOrchestrator returns the configured orchestrator, augmented with
// a GitHistoryCoChangeStrategy bound to repoDir when a clone is available.
// A fresh Orchestrator is built per call rather than mutating the shared
// one, since repoDir differs per request.
func (w *Worker) contextOrchestrator(repoDir string) *contextpkg.Orchestrator {
	if repoDir == "" {
		return w.deps.Context
	}
	strategies := append(append([]contextpkg.Strategy{}, w.deps.Context.Strategies()...),
		contextpkg.NewGitHistoryCoChangeStrategy(repoDir, len(w.deps.Context.Strategies()), 0))
	return contextpkg.NewOrchestrator(w.deps.Context.Config(), strategies...)
}

func formatMetadata(m scm.PullRequestMetadata) string {
	if m.Title == "" && m.Description == "" {
		return ""
	}
	return fmt.Sprintf("Title: %s\nAuthor: %s\n%s", m.Title, m.Author, m.Description)
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
