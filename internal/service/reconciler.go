package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/metrics"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/provider"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
)

// Reconciler repairs queue items stuck between "dispatched" and
// "confirmed" (a crash between the provider call and the outcome write)
// and re-enqueues prospects that lost their queue item entirely.
type Reconciler struct {
	Campaigns repository.CampaignRepositoryInterface
	Prospects repository.ProspectRepositoryInterface
	Queue     repository.QueueRepositoryInterface
	Provider  provider.Messenger
	Writer    *QueueWriter
	Clock     ratelimit.Clock
	Logger    *zap.Logger

	// DispatchTimeout is how long an item may sit in dispatched before
	// it counts as stuck; Grace is how much longer we keep trying to
	// confirm it before treating the dispatch as failed and retryable.
	DispatchTimeout time.Duration
	Grace           time.Duration
	MaxAttempts     int
	BatchCap        int
}

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	StuckSeen   int `json:"stuck_seen"`
	Confirmed   int `json:"confirmed"`
	Requeued    int `json:"requeued"`
	Failed      int `json:"failed"`
	Rescheduled int `json:"rescheduled"`
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	now := r.Clock.Now()
	var result SweepResult

	stuck, err := r.Queue.ListStuck(ctx, now.Add(-r.DispatchTimeout), r.BatchCap)
	if err != nil {
		return result, err
	}
	result.StuckSeen = len(stuck)
	for _, item := range stuck {
		r.repairItem(ctx, item, now, &result)
	}

	orphans, err := r.Prospects.ListOrphans(ctx, r.BatchCap)
	if err != nil {
		return result, err
	}
	for _, p := range orphans {
		scheduled, schedErr := r.Writer.ScheduleNext(ctx, p.ID)
		if schedErr != nil {
			var ov *appErrors.ErrOwnershipViolation
			if !errors.As(schedErr, &ov) {
				r.Logger.Warn("could not reschedule orphaned prospect",
					zap.Int64("prospect_id", p.ID), zap.Error(schedErr))
			}
			continue
		}
		if scheduled != nil {
			result.Rescheduled++
		}
	}

	return result, nil
}

func (r *Reconciler) repairItem(ctx context.Context, item *model.QueueItem, now time.Time, result *SweepResult) {
	log := r.Logger.With(
		zap.Int64("queue_item_id", item.ID),
		zap.Int64("prospect_id", item.ProspectID),
		zap.Int("slot", item.MessageSlot))

	// A connection request can be confirmed after the fact: if the
	// provider shows an invite (or an accepted connection), the send
	// clearly went out before the crash.
	if item.MessageSlot == model.SlotConnectionRequest {
		if r.confirmLostConnectionRequest(ctx, item, now, log) {
			result.Confirmed++
			metrics.ReconciledTotal.Inc()
			return
		}
	}

	age := time.Duration(0)
	if item.DispatchedAt != nil {
		age = now.Sub(*item.DispatchedAt)
	}
	if age < r.DispatchTimeout+r.Grace {
		// Still inside the grace period; give confirmation a chance.
		return
	}

	if item.AttemptCount+1 >= r.MaxAttempts {
		if err := r.Queue.Fail(ctx, item.ID, "dispatch outcome unconfirmable, retries exhausted"); err != nil {
			log.Warn("could not fail unconfirmable item", zap.Error(err))
			return
		}
		result.Failed++
		metrics.ReconciledTotal.Inc()
		log.Warn("unconfirmable dispatch failed permanently")
		return
	}

	if err := r.Queue.RetryLater(ctx, item.ID, now, "dispatch outcome unconfirmable, requeued"); err != nil {
		log.Warn("could not requeue stuck item", zap.Error(err))
		return
	}
	result.Requeued++
	metrics.ReconciledTotal.Inc()
	log.Info("stuck item requeued")
}

// confirmLostConnectionRequest probes the provider to decide whether a
// stuck connection-request dispatch actually happened.
func (r *Reconciler) confirmLostConnectionRequest(ctx context.Context, item *model.QueueItem, now time.Time, log *zap.Logger) bool {
	p, err := r.Prospects.GetByID(ctx, item.ProspectID)
	if err != nil {
		return false
	}
	c, err := r.Campaigns.GetByID(ctx, item.CampaignID)
	if err != nil {
		return false
	}
	rel, err := r.Provider.GetRelationshipStatus(ctx, c.SendingAccountID, p.LinkedInIdentifier)
	if err != nil || !rel.Accepted {
		return false
	}

	if err := r.Queue.Confirm(ctx, item.ID, ""); err != nil {
		log.Warn("could not confirm recovered item", zap.Error(err))
		return false
	}
	if p.Status == model.ProspectApproved {
		if err := r.Prospects.Transition(ctx, p.ID, model.ProspectApproved, model.ProspectConnectionRequested, "recovered by reconciliation"); err != nil {
			log.Warn("could not advance recovered prospect", zap.Error(err))
		}
		if err := r.Prospects.MarkContacted(ctx, p.ID, now, now); err != nil {
			log.Warn("could not stamp recovered prospect", zap.Error(err))
		}
	}
	log.Info("stuck connection request confirmed via provider")
	return true
}
