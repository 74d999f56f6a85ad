package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
)

type ProspectRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.Prospect, error)
	Transition(ctx context.Context, id int64, from, to model.ProspectStatus, note string) error
	MarkContacted(ctx context.Context, id int64, contactedAt, nextDueAt time.Time) error
	MarkAccepted(ctx context.Context, id int64, acceptedAt time.Time) error
	SetNextActionDue(ctx context.Context, id int64, dueAt time.Time) error
	FlagExcluded(ctx context.Context, id int64, note string) error
	ListDueAcceptanceChecks(ctx context.Context, scope Scope, now time.Time, limit int) ([]*model.Prospect, error)
	ListOrphans(ctx context.Context, limit int) ([]*model.Prospect, error)
}

type ProspectRepository struct {
	DB *sqlx.DB
}

const prospectColumns = `
        id, campaign_id, workspace_id, linkedin_identifier, first_name, last_name, company,
        status, owning_account_id, contacted_at, connection_accepted_at, next_action_due_at,
        status_note, created_at, updated_at`

func (r *ProspectRepository) GetByID(ctx context.Context, id int64) (*model.Prospect, error) {
	var p model.Prospect
	err := r.DB.GetContext(ctx, &p, `SELECT `+prospectColumns+` FROM prospects WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewProspectNotFound(id)
		}
		return nil, err
	}
	return &p, nil
}

// Transition moves a prospect between statuses with a compare-and-set on
// the previous status, validated against the transition table first.
func (r *ProspectRepository) Transition(ctx context.Context, id int64, from, to model.ProspectStatus, note string) error {
	if !from.CanTransitionTo(to) {
		return appErrors.ErrIllegalTransition
	}
	res, err := r.DB.ExecContext(ctx, `
        UPDATE prospects
        SET status = $1,
            status_note = CASE WHEN $2 <> '' THEN $2 ELSE status_note END,
            updated_at = NOW()
        WHERE id = $3 AND status = $4
    `, to, note, id, from)
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

func (r *ProspectRepository) MarkContacted(ctx context.Context, id int64, contactedAt, nextDueAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE prospects
        SET contacted_at = $1, next_action_due_at = $2, updated_at = NOW()
        WHERE id = $3
    `, contactedAt, nextDueAt, id)
	return err
}

func (r *ProspectRepository) MarkAccepted(ctx context.Context, id int64, acceptedAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE prospects
        SET connection_accepted_at = $1, next_action_due_at = NULL, updated_at = NOW()
        WHERE id = $2
    `, acceptedAt, id)
	return err
}

func (r *ProspectRepository) SetNextActionDue(ctx context.Context, id int64, dueAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE prospects SET next_action_due_at = $1, updated_at = NOW() WHERE id = $2
    `, dueAt, id)
	return err
}

// FlagExcluded records why a prospect was taken out of scheduling without
// touching its status, for manual review.
func (r *ProspectRepository) FlagExcluded(ctx context.Context, id int64, note string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE prospects SET status_note = $1, updated_at = NOW() WHERE id = $2
    `, note, id)
	return err
}

// ListDueAcceptanceChecks returns prospects waiting on a connection
// request whose recheck time has come.
func (r *ProspectRepository) ListDueAcceptanceChecks(ctx context.Context, scope Scope, now time.Time, limit int) ([]*model.Prospect, error) {
	query := `SELECT ` + prospectColumns + `
        FROM prospects
        WHERE status = 'connection_requested' AND next_action_due_at <= $1`
	args := []interface{}{now}
	if scope.WorkspaceID != 0 {
		query += ` AND workspace_id = $2`
		args = append(args, scope.WorkspaceID)
	}
	if scope.CampaignID != 0 {
		query += ` AND campaign_id = $` + itoa(len(args)+1)
		args = append(args, scope.CampaignID)
	}
	query += ` ORDER BY next_action_due_at LIMIT $` + itoa(len(args)+1)
	args = append(args, limit)

	prospects := []*model.Prospect{}
	if err := r.DB.SelectContext(ctx, &prospects, query, args...); err != nil {
		return nil, err
	}
	return prospects, nil
}

// ListOrphans finds prospects that should have a live queue item but do
// not: non-terminal, past approval, and not waiting on the acceptance
// gate. The reconciler re-invokes the queue writer for them.
func (r *ProspectRepository) ListOrphans(ctx context.Context, limit int) ([]*model.Prospect, error) {
	prospects := []*model.Prospect{}
	err := r.DB.SelectContext(ctx, &prospects, `
        SELECT `+prospectColumns+`
        FROM prospects p
        WHERE p.status IN ('approved', 'connected', 'follow_up_due', 'follow_up_sent')
          AND NOT EXISTS (
              SELECT 1 FROM queue_items q
              WHERE q.prospect_id = p.id AND q.status IN ('pending', 'dispatched')
          )
        ORDER BY p.updated_at
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	return prospects, nil
}

var _ ProspectRepositoryInterface = (*ProspectRepository)(nil)
