package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
)

// Scope restricts a scheduler pass to one workspace and/or campaign.
// The zero value means a global sweep.
type Scope struct {
	WorkspaceID int64 `json:"workspace_id,omitempty"`
	CampaignID  int64 `json:"campaign_id,omitempty"`
}

type CampaignRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	GetSequence(ctx context.Context, campaignID int64) ([]model.CampaignMessage, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.CampaignStatus) error
	UpdateMessage(ctx context.Context, campaignID int64, slot int, body string) error
}

type CampaignRepository struct {
	DB *sqlx.DB
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.GetContext(ctx, &c, `
        SELECT id, workspace_id, name, status, sending_account_id,
               connection_wait_hours, inter_followup_wait_hours, created_at, updated_at
        FROM campaigns WHERE id = $1
    `, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) GetSequence(ctx context.Context, campaignID int64) ([]model.CampaignMessage, error) {
	msgs := []model.CampaignMessage{}
	err := r.DB.SelectContext(ctx, &msgs, `
        SELECT campaign_id, slot, body
        FROM campaign_messages WHERE campaign_id = $1
        ORDER BY slot
    `, campaignID)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateStatus is a compare-and-set guarded by the campaign transition
// table; a write that would skip a state or race another caller fails.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int64, from, to model.CampaignStatus) error {
	if !from.CanTransitionTo(to) {
		return appErrors.ErrIllegalTransition
	}
	res, err := r.DB.ExecContext(ctx, `
        UPDATE campaigns SET status = $1, updated_at = NOW()
        WHERE id = $2 AND status = $3
    `, to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.ErrStaleStatus
	}
	return nil
}

// UpdateMessage edits one sequence slot. The sequence is immutable once
// any prospect of the campaign has progressed past approval.
func (r *CampaignRepository) UpdateMessage(ctx context.Context, campaignID int64, slot int, body string) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE campaign_messages SET body = $1
        WHERE campaign_id = $2 AND slot = $3
          AND NOT EXISTS (
              SELECT 1 FROM prospects
              WHERE campaign_id = $2 AND status NOT IN ('pending', 'approved')
          )
    `, body, campaignID, slot)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSequenceLocked
	}
	return nil
}

// ErrSequenceLocked rejects sequence edits after outreach has started.
var ErrSequenceLocked = errors.New("campaign sequence is locked: prospects already contacted")

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
