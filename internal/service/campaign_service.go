package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
)

// CampaignService carries the campaign lifecycle operations the scheduler
// exposes: pausing and resuming outreach.
type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Queue     repository.QueueRepositoryInterface
	Logger    *zap.Logger
}

// PauseResult reports what a pause actually did.
type PauseResult struct {
	CampaignID     int64 `json:"campaign_id"`
	ItemsCancelled int64 `json:"items_cancelled"`
}

// Pause stops a campaign and cancels its pending queue items. The whole
// operation is idempotent: pausing an already-paused campaign cancels
// nothing and is not an error. In-flight dispatched items are left to
// complete.
func (s *CampaignService) Pause(ctx context.Context, campaignID int64) (*PauseResult, error) {
	if _, err := s.Campaigns.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}

	err := s.Campaigns.UpdateStatus(ctx, campaignID, model.CampaignActive, model.CampaignPaused)
	if err != nil && !errors.Is(err, appErrors.ErrStaleStatus) {
		return nil, err
	}

	cancelled, err := s.Queue.CancelForCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("campaign paused",
		zap.Int64("campaign_id", campaignID),
		zap.Int64("items_cancelled", cancelled))
	return &PauseResult{CampaignID: campaignID, ItemsCancelled: cancelled}, nil
}

// Resume reactivates a paused campaign. Prospects whose items were
// cancelled are picked back up by the reconciliation sweep's orphan scan.
func (s *CampaignService) Resume(ctx context.Context, campaignID int64) error {
	if _, err := s.Campaigns.GetByID(ctx, campaignID); err != nil {
		return err
	}

	err := s.Campaigns.UpdateStatus(ctx, campaignID, model.CampaignPaused, model.CampaignActive)
	if err != nil && !errors.Is(err, appErrors.ErrStaleStatus) {
		return err
	}
	s.Logger.Info("campaign resumed", zap.Int64("campaign_id", campaignID))
	return nil
}

// UpdateMessage edits one slot of the campaign's message sequence. Edits
// are refused once any prospect has progressed past approval, so messages
// already queued or sent always match what the sequence said at send time.
func (s *CampaignService) UpdateMessage(ctx context.Context, campaignID int64, slot int, body string) error {
	if _, err := s.Campaigns.GetByID(ctx, campaignID); err != nil {
		return err
	}

	if err := s.Campaigns.UpdateMessage(ctx, campaignID, slot, body); err != nil {
		return err
	}
	s.Logger.Info("campaign message updated",
		zap.Int64("campaign_id", campaignID),
		zap.Int("slot", slot))
	return nil
}
