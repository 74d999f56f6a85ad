package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/metrics"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/provider"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
)

// GateOutcome is what one acceptance probe concluded about a prospect.
type GateOutcome string

const (
	GateAccepted GateOutcome = "accepted"
	GateWaiting  GateOutcome = "waiting"
	GateExpired  GateOutcome = "expired"
	GateReplied  GateOutcome = "replied"
	GateFailed   GateOutcome = "failed"
	GateDeferred GateOutcome = "deferred"
)

// AcceptanceGate blocks follow-up dispatch until the connection request
// has been accepted, and writes off prospects whose request sat
// unanswered past the campaign's connection_wait.
type AcceptanceGate struct {
	Campaigns repository.CampaignRepositoryInterface
	Prospects repository.ProspectRepositoryInterface
	Queue     repository.QueueRepositoryInterface
	Provider  provider.Messenger
	Writer    *QueueWriter
	Clock     ratelimit.Clock
	Logger    *zap.Logger

	// RecheckInterval spaces out provider probes for still-pending
	// connection requests.
	RecheckInterval time.Duration
}

// IsAccepted answers the bare gate question for one prospect without any
// side effects on the queue.
func (g *AcceptanceGate) IsAccepted(ctx context.Context, prospectID int64) (bool, error) {
	p, err := g.Prospects.GetByID(ctx, prospectID)
	if err != nil {
		return false, err
	}
	if p.ConnectionAcceptedAt != nil {
		return true, nil
	}
	c, err := g.Campaigns.GetByID(ctx, p.CampaignID)
	if err != nil {
		return false, err
	}
	rel, err := g.Provider.GetRelationshipStatus(ctx, c.SendingAccountID, p.LinkedInIdentifier)
	if err != nil {
		return false, err
	}
	return rel.Accepted, nil
}

// CheckProspect probes the provider once and advances the prospect
// accordingly: connected (and the queue writer schedules follow-up #1),
// replied, expired past connection_wait, or still waiting.
func (g *AcceptanceGate) CheckProspect(ctx context.Context, p *model.Prospect) (GateOutcome, error) {
	now := g.Clock.Now()
	c, err := g.Campaigns.GetByID(ctx, p.CampaignID)
	if err != nil {
		return GateDeferred, err
	}

	rel, err := g.Provider.GetRelationshipStatus(ctx, c.SendingAccountID, p.LinkedInIdentifier)
	if err != nil {
		if provider.IsPermanent(err) {
			return g.terminate(ctx, p, model.ProspectFailedPermanently, err.Error(), GateFailed)
		}
		// Transient provider trouble: try again soon, never busy-wait.
		if dueErr := g.Prospects.SetNextActionDue(ctx, p.ID, now.Add(time.Hour)); dueErr != nil {
			return GateDeferred, dueErr
		}
		g.observe(GateDeferred)
		return GateDeferred, nil
	}

	if rel.Replied {
		return g.terminate(ctx, p, model.ProspectReplied, "prospect replied before sequence completed", GateReplied)
	}

	if rel.Accepted {
		if err := g.Prospects.MarkAccepted(ctx, p.ID, now); err != nil {
			return GateDeferred, err
		}
		if err := g.Prospects.Transition(ctx, p.ID, model.ProspectConnectionRequested, model.ProspectConnected, ""); err != nil {
			return GateDeferred, err
		}
		if _, err := g.Writer.ScheduleNext(ctx, p.ID); err != nil {
			g.Logger.Warn("accepted but could not schedule follow-up",
				zap.Int64("prospect_id", p.ID), zap.Error(err))
		}
		g.observe(GateAccepted)
		return GateAccepted, nil
	}

	if p.ContactedAt != nil && now.Sub(*p.ContactedAt) > c.ConnectionWait() {
		return g.terminate(ctx, p, model.ProspectConnectionNotAccepted,
			"connection request not accepted within wait window", GateExpired)
	}

	if err := g.Prospects.SetNextActionDue(ctx, p.ID, now.Add(g.RecheckInterval)); err != nil {
		return GateWaiting, err
	}
	g.observe(GateWaiting)
	return GateWaiting, nil
}

// terminate moves the prospect to a terminal status and cancels whatever
// pending queue items it still has.
func (g *AcceptanceGate) terminate(ctx context.Context, p *model.Prospect, to model.ProspectStatus, note string, outcome GateOutcome) (GateOutcome, error) {
	if err := g.Prospects.Transition(ctx, p.ID, p.Status, to, note); err != nil {
		return outcome, err
	}
	if _, err := g.Queue.CancelForProspect(ctx, p.ID); err != nil {
		return outcome, err
	}
	g.observe(outcome)
	g.Logger.Info("prospect left outreach",
		zap.Int64("prospect_id", p.ID),
		zap.String("status", string(to)),
		zap.String("note", note))
	return outcome, nil
}

func (g *AcceptanceGate) observe(outcome GateOutcome) {
	metrics.AcceptanceChecksTotal.WithLabelValues(string(outcome)).Inc()
}
