package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
)

// ErrDuplicateItem means the partial unique index on (prospect_id,
// message_slot) already holds a live item for the step. Callers fetch and
// reuse the existing item instead of duplicating work.
var ErrDuplicateItem = errors.New("queue item already scheduled for this step")

type QueueRepositoryInterface interface {
	Insert(ctx context.Context, item *model.QueueItem) error
	GetActive(ctx context.Context, prospectID int64, slot int) (*model.QueueItem, error)
	ClaimDue(ctx context.Context, scope Scope, now time.Time, limit int) ([]*model.QueueItem, error)
	Confirm(ctx context.Context, id int64, providerMessageID string) error
	Fail(ctx context.Context, id int64, lastError string) error
	RetryLater(ctx context.Context, id int64, at time.Time, lastError string) error
	Defer(ctx context.Context, id int64, at time.Time, note string) error
	CancelForCampaign(ctx context.Context, campaignID int64) (int64, error)
	CancelForProspect(ctx context.Context, prospectID int64) (int64, error)
	MaxConfirmedSlot(ctx context.Context, prospectID int64) (int, *time.Time, error)
	ListStuck(ctx context.Context, dispatchedBefore time.Time, limit int) ([]*model.QueueItem, error)
	CountStuck(ctx context.Context, dispatchedBefore time.Time) (int, error)
	DepthByStatus(ctx context.Context) (map[string]int, error)
}

type QueueRepository struct {
	DB *sqlx.DB
}

const queueColumns = `
        id, prospect_id, campaign_id, workspace_id, message_slot, scheduled_for, status,
        provider_message_id, attempt_count, last_error, dispatched_at, created_at, updated_at`

// Insert creates a pending queue item. The partial unique index makes the
// enqueue idempotent even when multiple trigger sources race; the loser
// gets ErrDuplicateItem.
func (r *QueueRepository) Insert(ctx context.Context, item *model.QueueItem) error {
	err := r.DB.QueryRowContext(ctx, `
        INSERT INTO queue_items
            (prospect_id, campaign_id, workspace_id, message_slot, scheduled_for, status,
             provider_message_id, attempt_count, last_error, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 'pending', '', 0, '', NOW(), NOW())
        RETURNING id, created_at, updated_at
    `, item.ProspectID, item.CampaignID, item.WorkspaceID, item.MessageSlot, item.ScheduledFor).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateItem
		}
		return err
	}
	item.Status = model.QueueItemPending
	return nil
}

// GetActive returns the live (pending or dispatched) item for a step, or
// nil when none exists.
func (r *QueueRepository) GetActive(ctx context.Context, prospectID int64, slot int) (*model.QueueItem, error) {
	var item model.QueueItem
	err := r.DB.GetContext(ctx, &item, `
        SELECT `+queueColumns+`
        FROM queue_items
        WHERE prospect_id = $1 AND message_slot = $2 AND status IN ('pending', 'dispatched')
    `, prospectID, slot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ClaimDue atomically flips a batch of due pending items to dispatched
// and returns them. SKIP LOCKED keeps concurrent scheduler passes from
// claiming the same rows.
func (r *QueueRepository) ClaimDue(ctx context.Context, scope Scope, now time.Time, limit int) ([]*model.QueueItem, error) {
	query := `
        UPDATE queue_items SET status = 'dispatched', dispatched_at = $1, updated_at = NOW()
        WHERE id IN (
            SELECT id FROM queue_items
            WHERE status = 'pending' AND scheduled_for <= $1`
	args := []interface{}{now}
	if scope.WorkspaceID != 0 {
		query += ` AND workspace_id = $2`
		args = append(args, scope.WorkspaceID)
	}
	if scope.CampaignID != 0 {
		query += ` AND campaign_id = $` + itoa(len(args)+1)
		args = append(args, scope.CampaignID)
	}
	query += `
            ORDER BY scheduled_for
            LIMIT $` + itoa(len(args)+1) + `
            FOR UPDATE SKIP LOCKED
        )
        RETURNING ` + queueColumns
	args = append(args, limit)

	items := []*model.QueueItem{}
	if err := r.DB.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *QueueRepository) Confirm(ctx context.Context, id int64, providerMessageID string) error {
	return r.cas(ctx, `
        UPDATE queue_items
        SET status = 'confirmed', provider_message_id = $1, last_error = '', updated_at = NOW()
        WHERE id = $2 AND status = 'dispatched'
    `, providerMessageID, id)
}

func (r *QueueRepository) Fail(ctx context.Context, id int64, lastError string) error {
	return r.cas(ctx, `
        UPDATE queue_items
        SET status = 'failed', last_error = $1, updated_at = NOW()
        WHERE id = $2 AND status = 'dispatched'
    `, lastError, id)
}

// RetryLater reverts a dispatched item to pending with backoff and counts
// the attempt.
func (r *QueueRepository) RetryLater(ctx context.Context, id int64, at time.Time, lastError string) error {
	return r.cas(ctx, `
        UPDATE queue_items
        SET status = 'pending', scheduled_for = $1, attempt_count = attempt_count + 1,
            last_error = $2, dispatched_at = NULL, updated_at = NOW()
        WHERE id = $3 AND status = 'dispatched'
    `, at, lastError, id)
}

// Defer reverts a dispatched item to pending at a later time without
// counting an attempt. Used when the step is gated, not broken: quota
// exhausted, outside business hours, connection not yet accepted.
func (r *QueueRepository) Defer(ctx context.Context, id int64, at time.Time, note string) error {
	return r.cas(ctx, `
        UPDATE queue_items
        SET status = 'pending', scheduled_for = $1, last_error = $2,
            dispatched_at = NULL, updated_at = NOW()
        WHERE id = $3 AND status = 'dispatched'
    `, at, note, id)
}

// CancelForCampaign cancels every pending item of a campaign. In-flight
// dispatched items are left to complete; repeated calls are no-ops.
func (r *QueueRepository) CancelForCampaign(ctx context.Context, campaignID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE queue_items SET status = 'cancelled', updated_at = NOW()
        WHERE campaign_id = $1 AND status = 'pending'
    `, campaignID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *QueueRepository) CancelForProspect(ctx context.Context, prospectID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE queue_items SET status = 'cancelled', updated_at = NOW()
        WHERE prospect_id = $1 AND status = 'pending'
    `, prospectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MaxConfirmedSlot returns the highest confirmed slot for a prospect and
// when it was confirmed, or (-1, nil) when nothing has been sent.
func (r *QueueRepository) MaxConfirmedSlot(ctx context.Context, prospectID int64) (int, *time.Time, error) {
	var row struct {
		Slot        int       `db:"message_slot"`
		ConfirmedAt time.Time `db:"updated_at"`
	}
	err := r.DB.GetContext(ctx, &row, `
        SELECT message_slot, updated_at FROM queue_items
        WHERE prospect_id = $1 AND status = 'confirmed'
        ORDER BY message_slot DESC
        LIMIT 1
    `, prospectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return -1, nil, nil
		}
		return -1, nil, err
	}
	return row.Slot, &row.ConfirmedAt, nil
}

// ListStuck returns items sitting in dispatched since before the cutoff:
// the provider call was issued but its outcome never recorded.
func (r *QueueRepository) ListStuck(ctx context.Context, dispatchedBefore time.Time, limit int) ([]*model.QueueItem, error) {
	items := []*model.QueueItem{}
	err := r.DB.SelectContext(ctx, &items, `
        SELECT `+queueColumns+`
        FROM queue_items
        WHERE status = 'dispatched' AND dispatched_at < $1
        ORDER BY dispatched_at
        LIMIT $2
    `, dispatchedBefore, limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *QueueRepository) CountStuck(ctx context.Context, dispatchedBefore time.Time) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `
        SELECT COUNT(*) FROM queue_items WHERE status = 'dispatched' AND dispatched_at < $1
    `, dispatchedBefore)
	return n, err
}

func (r *QueueRepository) DepthByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT status, COUNT(*) FROM queue_items GROUP BY status
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	depth := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		depth[status] = count
	}
	return depth, rows.Err()
}

func (r *QueueRepository) cas(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemStateChanged
	}
	return nil
}

// ErrItemStateChanged means a queue item update matched no row: the item
// moved on under a concurrent caller or reconciler pass.
var ErrItemStateChanged = errors.New("queue item no longer in expected status")

var _ QueueRepositoryInterface = (*QueueRepository)(nil)
