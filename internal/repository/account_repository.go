package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
)

type AccountRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.SendingAccount, error)
	TryIncrementQuota(ctx context.Context, id int64, localDay string) (bool, error)
	DecrementQuota(ctx context.Context, id int64, localDay string) error
	QuotaUsage(ctx context.Context, workspaceID int64) ([]AccountQuota, error)
}

// AccountQuota is the ops view of one account's daily consumption.
type AccountQuota struct {
	AccountID      int64  `db:"id" json:"account_id"`
	DisplayName    string `db:"display_name" json:"display_name"`
	SendsToday     int    `db:"sends_today" json:"sends_today"`
	DailySendLimit int    `db:"daily_send_limit" json:"daily_send_limit"`
	QuotaDay       string `db:"quota_day" json:"quota_day"`
}

type AccountRepository struct {
	DB *sqlx.DB
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.SendingAccount, error) {
	var a model.SendingAccount
	err := r.DB.GetContext(ctx, &a, `
        SELECT id, workspace_id, display_name, timezone, daily_send_limit,
               sends_today, quota_day, connection_status, created_at
        FROM sending_accounts WHERE id = $1
    `, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewAccountNotFound(id)
		}
		return nil, err
	}
	return &a, nil
}

// TryIncrementQuota reserves one send in a single conditional UPDATE.
// The counter rolls over when localDay (the account's local calendar day)
// differs from the stored quota_day, which implements the reset-at-local-
// midnight invariant without a cron. Concurrent callers serialize on the
// row, so sends_today can never pass daily_send_limit.
func (r *AccountRepository) TryIncrementQuota(ctx context.Context, id int64, localDay string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE sending_accounts
        SET sends_today = CASE WHEN quota_day = $1 THEN sends_today + 1 ELSE 1 END,
            quota_day = $1
        WHERE id = $2
          AND (quota_day <> $1 OR sends_today < daily_send_limit)
    `, localDay, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DecrementQuota returns a reservation that was never used. It only
// applies while the counter still belongs to the same local day.
func (r *AccountRepository) DecrementQuota(ctx context.Context, id int64, localDay string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE sending_accounts
        SET sends_today = sends_today - 1
        WHERE id = $1 AND quota_day = $2 AND sends_today > 0
    `, id, localDay)
	return err
}

func (r *AccountRepository) QuotaUsage(ctx context.Context, workspaceID int64) ([]AccountQuota, error) {
	query := `
        SELECT id, display_name, sends_today, daily_send_limit, quota_day
        FROM sending_accounts`
	args := []interface{}{}
	if workspaceID != 0 {
		query += ` WHERE workspace_id = $1`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY id`

	usage := []AccountQuota{}
	if err := r.DB.SelectContext(ctx, &usage, query, args...); err != nil {
		return nil, err
	}
	return usage, nil
}

var _ AccountRepositoryInterface = (*AccountRepository)(nil)
