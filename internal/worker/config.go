package worker

import (
	"time"

	"github.com/reviewpipe/reviewpipe/internal/config"
	"github.com/reviewpipe/reviewpipe/internal/scm"
)

// Config is the C10 worker loop's tunables: the consumer.* surface plus
// the retry/action/verification knobs the worker layers on top.
type Config struct {
	Stream      string
	Group       string
	Consumer    string
	MaxBatch    int
	BlockFor    time.Duration
	MaxRetries  int // LLM invoke retries, default 3
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	SandboxEnabled bool

	// ActionOnCritical/High/Medium/Low choose the published ReviewAction
	// for the most severe finding present.
	ActionOnCritical string
	ActionOnMajor    string
	ActionOnMinor    string
	ActionOnNone     string

	BotUsername string // used to find and dismiss this bot's prior reviews

	// VerificationEnabled gates the agent verification step; Confidence
	// supplies the per-severity thresholds findings must clear to survive it.
	VerificationEnabled bool
	Confidence          config.ConfidenceThresholds

	// TrackingEnabled gates cross-run finding reconciliation and stale
	// bot-review dismissal.
	TrackingEnabled bool
}

// DefaultConfig returns the documented defaults: batch of 10, 5s block,
// 3 LLM retries backing off from 1s to 30s, and a REQUEST_CHANGES /
// COMMENT / COMMENT / APPROVE severity ladder.
func DefaultConfig() Config {
	return Config{
		Stream:           "reviewpipe:requests",
		Group:            "reviewpipe-workers",
		Consumer:         "worker-1",
		MaxBatch:         10,
		BlockFor:         5 * time.Second,
		MaxRetries:       3,
		InitialBackoff:   time.Second,
		MaxBackoff:       30 * time.Second,
		ActionOnCritical: string(scm.ActionRequestChanges),
		ActionOnMajor:    string(scm.ActionComment),
		ActionOnMinor:    string(scm.ActionComment),
		ActionOnNone:     string(scm.ActionApprove),
	}
}
