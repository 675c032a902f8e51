package worker

import (
	"context"
	"time"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/tracking"
)

// reconcileTracking folds this run's findings into the cross-run tracking
// state and, once no active findings remain for the change request,
// dismisses any bot reviews still open on it. A nil Tracking store is a
// no-op so the step degrades cleanly when tracking isn't configured.
func (w *Worker) reconcileTracking(ctx context.Context, request domain.ReviewRequest, findings []domain.ReviewFinding) {
	if w.deps.Tracking == nil {
		return
	}

	target := tracking.Target{
		RepositoryID:    request.RepositoryID,
		ChangeRequestID: request.ChangeRequestID,
	}

	prior, err := w.deps.Tracking.Load(ctx, target)
	if err != nil {
		w.deps.Logger.Printf("worker: request %s: load tracking state: %v", request.RequestID, err)
		return
	}

	state := tracking.Reconcile(prior, target, request.HeadSHA, findings, time.Now())
	if err := w.deps.Tracking.Save(ctx, state); err != nil {
		w.deps.Logger.Printf("worker: request %s: save tracking state: %v", request.RequestID, err)
	}

	if len(state.ActiveFindings()) > 0 || w.cfg.BotUsername == "" {
		return
	}
	w.dismissStaleReviews(ctx, request)
}

// dismissStaleReviews withdraws every review the bot previously published
// on the change request, now that reconcileTracking found no active
// findings remaining.
func (w *Worker) dismissStaleReviews(ctx context.Context, request domain.ReviewRequest) {
	reviews, err := w.deps.SCM.ListBotReviews(ctx, request.RepositoryID, request.ChangeRequestID, w.cfg.BotUsername)
	if err != nil {
		w.deps.Logger.Printf("worker: request %s: list bot reviews: %v", request.RequestID, err)
		return
	}
	for _, review := range reviews {
		if err := w.deps.SCM.DismissReview(ctx, request.RepositoryID, request.ChangeRequestID, review.ID); err != nil {
			w.deps.Logger.Printf("worker: request %s: dismiss review %s: %v", request.RequestID, review.ID, err)
		}
	}
}
