package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PatternRepositoryInterface interface {
	Ensure(ctx context.Context, accountID int64, day string, offsets []int) error
	ConsumeOffset(ctx context.Context, accountID int64, day string) (int, bool, error)
}

// PatternRepository persists the per-day timing pattern and its
// consumption cursor, so the pattern survives restarts and is shared
// across worker instances.
type PatternRepository struct {
	DB *sqlx.DB
}

// Ensure stores the pattern for (account, day) if it is not there yet.
// The pattern is a pure function of its key, so a lost race writes the
// same offsets and can be ignored.
func (r *PatternRepository) Ensure(ctx context.Context, accountID int64, day string, offsets []int) error {
	arr := make(pq.Int64Array, len(offsets))
	for i, o := range offsets {
		arr[i] = int64(o)
	}
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO send_patterns (account_id, pattern_date, offsets_minutes, cursor)
        VALUES ($1, $2, $3, 0)
        ON CONFLICT (account_id, pattern_date) DO NOTHING
    `, accountID, day, arr)
	return err
}

// ConsumeOffset atomically advances the day's cursor and returns the
// consumed offset in minutes. ok is false once the pattern is exhausted.
func (r *PatternRepository) ConsumeOffset(ctx context.Context, accountID int64, day string) (int, bool, error) {
	var offset int
	err := r.DB.GetContext(ctx, &offset, `
        UPDATE send_patterns
        SET cursor = cursor + 1
        WHERE account_id = $1 AND pattern_date = $2
          AND cursor < cardinality(offsets_minutes)
        RETURNING offsets_minutes[cursor]
    `, accountID, day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return offset, true, nil
}

var _ PatternRepositoryInterface = (*PatternRepository)(nil)

// itoa keeps dynamic placeholder numbering readable in query builders.
func itoa(n int) string { return strconv.Itoa(n) }
