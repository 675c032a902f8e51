// Package intake implements the webhook intake (C11): validates the
// inbound payload, computes the idempotency fingerprint, and hands the
// request to the idempotency gate (C4) and queue broker (C5). It exposes
// a pure function rather than an HTTP handler, keeping the web-transport
// layer out of this module's core.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/idempotency"
	"github.com/reviewpipe/reviewpipe/internal/queue"
)

// Payload is the transport-neutral webhook body.
type Payload struct {
	Provider        string `json:"provider"`
	RepositoryID    string `json:"repositoryId"`
	ChangeRequestID int    `json:"changeRequestId"`
	EventSource     string `json:"eventSource"`
	HeadSHA         string `json:"headSha,omitempty"`
	// IdempotencyKey, when non-blank, overrides the computed fingerprint
	// (the optional Idempotency-Key header).
	IdempotencyKey string `json:"-"`
}

// Response is the success payload returned to the caller.
type Response struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
}

// AlreadyProcessed is returned when the fingerprint was already seen; the
// transport edge maps this to HTTP 409.
type AlreadyProcessed struct {
	Fingerprint string
}

func (e *AlreadyProcessed) Error() string {
	return fmt.Sprintf("intake: change request already processed (fingerprint %s)", e.Fingerprint)
}

// ValidationError reports a malformed payload; the transport edge maps
// this to HTTP 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intake: validation: %s", e.Reason)
}

// Intake wires the gate and broker together to implement HandleWebhook.
type Intake struct {
	gate   idempotency.Gate
	broker queue.Broker
	stream string
}

// New builds an Intake over the idempotency gate and queue broker.
func New(gate idempotency.Gate, broker queue.Broker) *Intake {
	return &Intake{gate: gate, broker: broker}
}

// HandleWebhook implements C11: validate, compute the fingerprint, check
// the gate, and on FIRST_SEEN enqueue a ReviewRequest.
func (in *Intake) HandleWebhook(ctx context.Context, payload Payload) (Response, error) {
	if err := validate(payload); err != nil {
		return Response{}, err
	}

	provider := domain.Provider(strings.ToUpper(payload.Provider))
	changeRequestID := strconv.Itoa(payload.ChangeRequestID)

	fingerprint := payload.IdempotencyKey
	if strings.TrimSpace(fingerprint) == "" {
		fingerprint = domain.ComputeFingerprint(provider, payload.RepositoryID, changeRequestID, payload.HeadSHA)
	}

	outcome, err := in.gate.CheckAndMark(ctx, fingerprint)
	if err != nil {
		return Response{}, fmt.Errorf("intake: idempotency check: %w", err)
	}
	if outcome == idempotency.Duplicate {
		return Response{}, &AlreadyProcessed{Fingerprint: fingerprint}
	}

	requestID := uuid.NewString()
	request := domain.ReviewRequest{
		RequestID:       requestID,
		Provider:        provider,
		RepositoryID:    payload.RepositoryID,
		ChangeRequestID: changeRequestID,
		HeadSHA:         payload.HeadSHA,
		Fingerprint:     fingerprint,
		CreatedAt:       time.Now().Unix(),
	}

	data, err := json.Marshal(request)
	if err != nil {
		return Response{}, fmt.Errorf("intake: marshal request: %w", err)
	}

	if _, err := in.broker.Append(ctx, queue.Record{RequestID: requestID, Payload: data}); err != nil {
		return Response{}, fmt.Errorf("intake: enqueue: %w", err)
	}

	return Response{Status: "accepted", RequestID: requestID}, nil
}

func validate(p Payload) error {
	if strings.TrimSpace(p.Provider) == "" {
		return &ValidationError{Reason: "provider is required"}
	}
	if strings.TrimSpace(p.RepositoryID) == "" {
		return &ValidationError{Reason: "repositoryId is required"}
	}
	if p.ChangeRequestID < 1 {
		return &ValidationError{Reason: "changeRequestId must be >= 1"}
	}
	return nil
}

// IsAlreadyProcessed reports whether err is an AlreadyProcessed error,
// for transport edges mapping it to a 409.
func IsAlreadyProcessed(err error) bool {
	var ap *AlreadyProcessed
	return errors.As(err, &ap)
}

// IsValidationError reports whether err is a ValidationError, for
// transport edges mapping it to a 400.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
