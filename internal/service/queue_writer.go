package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/timing"
)

// QueueWriter enqueues the next due send for a prospect, exactly once.
// Idempotence comes from the queue's partial unique index, not from any
// in-process lock: the scheduler tick, the acceptance gate and the
// reconciler may all call ScheduleNext for the same prospect
// concurrently, and exactly one of them inserts.
type QueueWriter struct {
	Campaigns repository.CampaignRepositoryInterface
	Prospects repository.ProspectRepositoryInterface
	Accounts  repository.AccountRepositoryInterface
	Queue     repository.QueueRepositoryInterface
	Limiter   *ratelimit.Limiter
	Timing    *timing.Generator
	Clock     ratelimit.Clock
	Logger    *zap.Logger
}

// ScheduleNext computes the prospect's next message slot and inserts a
// pending queue item for it. It returns nil when no further step is due:
// terminal prospect, paused campaign, exhausted sequence, or a step that
// is gated on connection acceptance.
func (w *QueueWriter) ScheduleNext(ctx context.Context, prospectID int64) (*model.QueueItem, error) {
	p, err := w.Prospects.GetByID(ctx, prospectID)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() || p.Status == model.ProspectPending {
		return nil, nil
	}
	if p.LinkedInIdentifier == "" {
		if err := w.Prospects.FlagExcluded(ctx, p.ID, "no resolvable linkedin identifier"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	c, err := w.Campaigns.GetByID(ctx, p.CampaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignActive {
		return nil, nil
	}
	if !p.OwnedBy(c.SendingAccountID) {
		if err := w.Prospects.FlagExcluded(ctx, p.ID, "owned by another sending account, excluded from outreach"); err != nil {
			return nil, err
		}
		return nil, appErrors.NewOwnershipViolation(p.ID, *p.OwningAccountID, c.ID)
	}

	seq, err := w.Campaigns.GetSequence(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if p.Status == model.ProspectConnectionRequested {
		// Waiting on the acceptance gate; it schedules follow-up #1.
		return nil, nil
	}

	lastConfirmed, confirmedAt, err := w.Queue.MaxConfirmedSlot(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	slot := lastConfirmed + 1
	if slot == model.SlotConnectionRequest && p.ConnectionAcceptedAt != nil {
		// Connection confirmed out of band (reconciler recovery); the
		// request itself must not be sent again.
		slot = 1
	}
	if slot >= len(seq) {
		return nil, nil
	}
	if slot > model.SlotConnectionRequest && p.ConnectionAcceptedAt == nil {
		// Follow-ups wait for the acceptance gate.
		return nil, nil
	}

	earliest := w.Clock.Now()
	if slot > model.SlotConnectionRequest+1 && confirmedAt != nil {
		if spaced := confirmedAt.Add(c.InterFollowupWait()); spaced.After(earliest) {
			earliest = spaced
		}
	}

	account, err := w.Accounts.GetByID(ctx, c.SendingAccountID)
	if err != nil {
		return nil, err
	}
	loc := account.Location()
	base := w.Limiter.NextWindow(earliest.In(loc))
	scheduledFor, err := w.Timing.NextSendTime(ctx, account.ID, loc, base)
	if err != nil {
		return nil, err
	}

	item := &model.QueueItem{
		ProspectID:   p.ID,
		CampaignID:   c.ID,
		WorkspaceID:  p.WorkspaceID,
		MessageSlot:  slot,
		ScheduledFor: scheduledFor,
		Status:       model.QueueItemPending,
	}
	if err := w.Queue.Insert(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateItem) {
			// A concurrent caller won the insert; reuse their item.
			return w.Queue.GetActive(ctx, p.ID, slot)
		}
		return nil, err
	}

	w.bumpFollowUpStatus(ctx, p, slot)

	w.Logger.Info("scheduled next step",
		zap.Int64("prospect_id", p.ID),
		zap.Int64("campaign_id", c.ID),
		zap.Int("slot", slot),
		zap.Time("scheduled_for", scheduledFor))
	return item, nil
}

// bumpFollowUpStatus moves connected/follow_up_sent prospects to
// follow_up_due once their next follow-up is queued. A stale-status
// failure just means another caller already did it.
func (w *QueueWriter) bumpFollowUpStatus(ctx context.Context, p *model.Prospect, slot int) {
	if slot == model.SlotConnectionRequest {
		return
	}
	if p.Status != model.ProspectConnected && p.Status != model.ProspectFollowUpSent {
		return
	}
	err := w.Prospects.Transition(ctx, p.ID, p.Status, model.ProspectFollowUpDue, "")
	if err != nil && !errors.Is(err, appErrors.ErrStaleStatus) {
		w.Logger.Warn("could not mark prospect follow_up_due",
			zap.Int64("prospect_id", p.ID), zap.Error(err))
	}
}

// nextRetryAt caps exponential backoff growth for retryable failures.
func nextRetryAt(now time.Time, base time.Duration, attempt int) time.Time {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= 24*time.Hour {
			delay = 24 * time.Hour
			break
		}
	}
	return now.Add(delay)
}
