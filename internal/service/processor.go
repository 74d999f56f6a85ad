package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/metrics"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/provider"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
)

// Processor runs one scheduler pass: probe due acceptance checks, claim
// due queue items, dispatch them to the provider, record outcomes and
// schedule follow-on steps. It is invoked on an external cadence and must
// never assume it is the only caller in an interval; all correctness
// rests on database-level CAS updates and the queue uniqueness
// constraint.
type Processor struct {
	Campaigns repository.CampaignRepositoryInterface
	Prospects repository.ProspectRepositoryInterface
	Accounts  repository.AccountRepositoryInterface
	Queue     repository.QueueRepositoryInterface
	Writer    *QueueWriter
	Gate      *AcceptanceGate
	Limiter   *ratelimit.Limiter
	Provider  provider.Messenger
	Clock     ratelimit.Clock
	Logger    *zap.Logger

	BatchCap      int
	PoolSize      int
	MaxAttempts   int
	RetryBackoff  time.Duration
	PauseDefer    time.Duration
	AcceptRecheck time.Duration

	accountLocks keyedMutex
}

// TickResult summarizes one pass for the trigger response and logs.
type TickResult struct {
	AcceptanceChecks int `json:"acceptance_checks"`
	Claimed          int `json:"claimed"`
	Confirmed        int `json:"confirmed"`
	Retried          int `json:"retried"`
	Failed           int `json:"failed"`
	Deferred         int `json:"deferred"`
}

// Tick is one idempotent scheduler pass over the given scope.
func (pr *Processor) Tick(ctx context.Context, scope repository.Scope) (TickResult, error) {
	now := pr.Clock.Now()
	var result TickResult

	due, err := pr.Prospects.ListDueAcceptanceChecks(ctx, scope, now, pr.BatchCap)
	if err != nil {
		return result, err
	}
	for _, p := range due {
		result.AcceptanceChecks++
		if _, gateErr := pr.Gate.CheckProspect(ctx, p); gateErr != nil {
			pr.Logger.Warn("acceptance check failed",
				zap.Int64("prospect_id", p.ID), zap.Error(gateErr))
		}
	}

	items, err := pr.Queue.ClaimDue(ctx, scope, now, pr.BatchCap)
	if err != nil {
		return result, err
	}
	result.Claimed = len(items)

	if depth, depthErr := pr.Queue.DepthByStatus(ctx); depthErr == nil {
		metrics.QueuePending.Set(float64(depth[string(model.QueueItemPending)]))
	}

	// Bounded pool; items for the same sending account are serialized so
	// one stalled provider call cannot interleave that account's sends.
	sem := make(chan struct{}, pr.poolSize())
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, item := range items {
		wg.Add(1)
		go func(item *model.QueueItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := pr.processItem(ctx, item)

			mu.Lock()
			switch outcome {
			case outcomeConfirmed:
				result.Confirmed++
			case outcomeRetried:
				result.Retried++
			case outcomeFailed:
				result.Failed++
			case outcomeDeferred:
				result.Deferred++
			}
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	return result, nil
}

type itemOutcome string

const (
	outcomeConfirmed itemOutcome = "confirmed"
	outcomeRetried   itemOutcome = "retried"
	outcomeFailed    itemOutcome = "failed"
	outcomeDeferred  itemOutcome = "deferred"
)

func (pr *Processor) processItem(ctx context.Context, item *model.QueueItem) itemOutcome {
	now := pr.Clock.Now()
	log := pr.Logger.With(
		zap.Int64("queue_item_id", item.ID),
		zap.Int64("prospect_id", item.ProspectID),
		zap.Int("slot", item.MessageSlot))

	p, err := pr.Prospects.GetByID(ctx, item.ProspectID)
	if err != nil {
		return pr.fail(ctx, item, nil, "prospect missing: "+err.Error(), log)
	}
	c, err := pr.Campaigns.GetByID(ctx, item.CampaignID)
	if err != nil {
		return pr.fail(ctx, item, nil, "campaign missing: "+err.Error(), log)
	}

	if c.Status != model.CampaignActive {
		// Pause raced the claim; push the item out and let the pause
		// flow cancel it.
		return pr.deferItem(ctx, item, now.Add(pr.PauseDefer), "campaign not active", log)
	}
	if p.Status.IsTerminal() {
		return pr.fail(ctx, item, nil, "prospect already terminal", log)
	}
	if !p.OwnedBy(c.SendingAccountID) {
		if flagErr := pr.Prospects.FlagExcluded(ctx, p.ID, "owned by another sending account, excluded from outreach"); flagErr != nil {
			log.Warn("could not flag ownership violation", zap.Error(flagErr))
		}
		return pr.fail(ctx, item, nil, "ownership violation", log)
	}

	// Acceptance gate for follow-up slots.
	if item.IsFollowUpSlot() && p.ConnectionAcceptedAt == nil {
		outcome, gateErr := pr.Gate.CheckProspect(ctx, p)
		if gateErr != nil {
			return pr.deferItem(ctx, item, now.Add(time.Hour), "acceptance check error: "+gateErr.Error(), log)
		}
		switch outcome {
		case GateAccepted:
			// Fall through to dispatch.
		case GateWaiting, GateDeferred:
			return pr.deferItem(ctx, item, now.Add(pr.AcceptRecheck), "awaiting connection acceptance", log)
		default:
			// Prospect went terminal; its pending items were cancelled
			// and this in-flight one closes as failed.
			return pr.fail(ctx, item, nil, "connection gate closed: "+string(outcome), log)
		}
	}

	// Serialize per sending account.
	unlock := pr.accountLocks.lock(c.SendingAccountID)
	defer unlock()

	reservation, err := pr.Limiter.TryReserve(ctx, c.SendingAccountID)
	if err != nil {
		return pr.deferItem(ctx, item, now.Add(time.Hour), "rate limiter error: "+err.Error(), log)
	}
	if !reservation.Authorized {
		return pr.deferItem(ctx, item, reservation.RetryAt, reservation.Reason, log)
	}

	seq, err := pr.Campaigns.GetSequence(ctx, c.ID)
	if err != nil || item.MessageSlot >= len(seq) {
		_ = pr.Limiter.Release(ctx, reservation)
		return pr.fail(ctx, item, p, "message slot out of sequence", log)
	}
	body := RenderTemplate(seq[item.MessageSlot].Body, p)

	var providerMessageID string
	if item.MessageSlot == model.SlotConnectionRequest {
		providerMessageID, err = pr.Provider.SendConnectionRequest(ctx, c.SendingAccountID, p.LinkedInIdentifier, body)
	} else {
		providerMessageID, err = pr.Provider.SendMessage(ctx, c.SendingAccountID, p.LinkedInIdentifier, body)
	}
	if err != nil {
		// The quota stays consumed: the call may have gone through.
		return pr.handleSendError(ctx, item, p, err, now, log)
	}

	if err := pr.Queue.Confirm(ctx, item.ID, providerMessageID); err != nil {
		log.Error("send succeeded but confirmation write failed; reconciler will repair", zap.Error(err))
		return outcomeFailed
	}
	pr.advanceProspect(ctx, item, p, seq, now, log)

	metrics.SendsTotal.WithLabelValues(string(outcomeConfirmed)).Inc()
	log.Info("message dispatched", zap.String("provider_message_id", providerMessageID))
	return outcomeConfirmed
}

// advanceProspect applies the confirmed outcome to the prospect state
// machine and asks the writer for the following step.
func (pr *Processor) advanceProspect(ctx context.Context, item *model.QueueItem, p *model.Prospect, seq []model.CampaignMessage, now time.Time, log *zap.Logger) {
	lastSlot := len(seq) - 1

	var to model.ProspectStatus
	switch {
	case item.MessageSlot == model.SlotConnectionRequest:
		to = model.ProspectConnectionRequested
	case item.MessageSlot == lastSlot:
		to = model.ProspectGoodbyeSent
	default:
		to = model.ProspectFollowUpSent
	}

	if err := pr.Prospects.Transition(ctx, p.ID, p.Status, to, ""); err != nil &&
		!errors.Is(err, appErrors.ErrStaleStatus) {
		log.Warn("prospect transition failed", zap.String("to", string(to)), zap.Error(err))
		return
	}

	if item.MessageSlot == model.SlotConnectionRequest {
		if err := pr.Prospects.MarkContacted(ctx, p.ID, now, now.Add(pr.AcceptRecheck)); err != nil {
			log.Warn("could not stamp contacted_at", zap.Error(err))
		}
		// Follow-ups wait for the acceptance gate; nothing to enqueue.
		return
	}
	if to == model.ProspectGoodbyeSent {
		return
	}

	if _, err := pr.Writer.ScheduleNext(ctx, p.ID); err != nil {
		log.Warn("could not schedule following step", zap.Error(err))
	}
}

// handleSendError classifies a provider failure. Retryable errors go back
// to pending with exponential backoff until the attempt cap converts them
// into permanent ones; permanent errors terminate the prospect.
func (pr *Processor) handleSendError(ctx context.Context, item *model.QueueItem, p *model.Prospect, sendErr error, now time.Time, log *zap.Logger) itemOutcome {
	if provider.IsPermanent(sendErr) {
		return pr.fail(ctx, item, p, sendErr.Error(), log)
	}

	attempts := item.AttemptCount + 1
	if attempts >= pr.MaxAttempts {
		return pr.fail(ctx, item, p, "retries exhausted: "+sendErr.Error(), log)
	}

	retryAt := nextRetryAt(now, pr.RetryBackoff, attempts)
	if err := pr.Queue.RetryLater(ctx, item.ID, retryAt, sendErr.Error()); err != nil {
		log.Error("could not requeue item for retry", zap.Error(err))
		return outcomeFailed
	}
	metrics.SendsTotal.WithLabelValues(string(outcomeRetried)).Inc()
	log.Warn("transient send failure, retrying",
		zap.Int("attempt", attempts), zap.Time("retry_at", retryAt), zap.Error(sendErr))
	return outcomeRetried
}

// fail closes the item as failed and, when a prospect is given, takes it
// out of outreach permanently.
func (pr *Processor) fail(ctx context.Context, item *model.QueueItem, p *model.Prospect, reason string, log *zap.Logger) itemOutcome {
	if err := pr.Queue.Fail(ctx, item.ID, reason); err != nil {
		log.Error("could not mark item failed", zap.String("reason", reason), zap.Error(err))
	}
	if p != nil && !p.Status.IsTerminal() {
		if err := pr.Prospects.Transition(ctx, p.ID, p.Status, model.ProspectFailedPermanently, reason); err != nil &&
			!errors.Is(err, appErrors.ErrStaleStatus) {
			log.Warn("could not terminate prospect", zap.Error(err))
		}
		if _, err := pr.Queue.CancelForProspect(ctx, p.ID); err != nil {
			log.Warn("could not cancel remaining items", zap.Error(err))
		}
	}
	metrics.SendsTotal.WithLabelValues(string(outcomeFailed)).Inc()
	log.Warn("queue item failed", zap.String("reason", reason))
	return outcomeFailed
}

func (pr *Processor) deferItem(ctx context.Context, item *model.QueueItem, at time.Time, reason string, log *zap.Logger) itemOutcome {
	if err := pr.Queue.Defer(ctx, item.ID, at, reason); err != nil {
		log.Error("could not defer item", zap.String("reason", reason), zap.Error(err))
		return outcomeFailed
	}
	metrics.SendsTotal.WithLabelValues(string(outcomeDeferred)).Inc()
	log.Info("dispatch deferred", zap.String("reason", reason), zap.Time("until", at))
	return outcomeDeferred
}

func (pr *Processor) poolSize() int {
	if pr.PoolSize <= 0 {
		return 1
	}
	return pr.PoolSize
}

// keyedMutex serializes work per sending account id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*sync.Mutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
