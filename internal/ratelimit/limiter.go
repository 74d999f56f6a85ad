// Package ratelimit decides whether a sending account may send right now:
// daily quota, business hours and weekends, all evaluated in the
// account's own timezone.
package ratelimit

import (
	"context"
	"time"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/model"
)

// Refusal reasons returned to the queue processor, which uses them to
// compute the next retry time.
const (
	ReasonDailyLimitReached    = "daily_limit_reached"
	ReasonOutsideBusinessHours = "outside_business_hours"
	ReasonWeekend              = "weekend"
	ReasonAccountDisconnected  = "account_disconnected"
)

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// AccountStore is the slice of the account repository the limiter needs.
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*model.SendingAccount, error)
	TryIncrementQuota(ctx context.Context, id int64, localDay string) (bool, error)
	DecrementQuota(ctx context.Context, id int64, localDay string) error
}

// BusinessHours is the daily send window in minutes from local midnight.
type BusinessHours struct {
	StartMinute int
	EndMinute   int
}

// WindowMinutes is the width of the daily window.
func (h BusinessHours) WindowMinutes() int { return h.EndMinute - h.StartMinute }

// StartOfDay returns the window opening on the given local day.
func (h BusinessHours) StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).
		Add(time.Duration(h.StartMinute) * time.Minute)
}

// Reservation is the outcome of TryReserve. When Authorized is false,
// RetryAt is the earliest moment the refusal reason can have cleared.
type Reservation struct {
	AccountID  int64
	Authorized bool
	Reason     string
	RetryAt    time.Time
	LocalDay   string
}

// Limiter implements the per-account send authorization check.
type Limiter struct {
	Accounts AccountStore
	Hours    BusinessHours
	Clock    Clock
}

func NewLimiter(accounts AccountStore, hours BusinessHours) *Limiter {
	return &Limiter{Accounts: accounts, Hours: hours, Clock: SystemClock()}
}

// TryReserve authorizes one send for the account and, on success,
// consumes one unit of today's quota. The increment is a single
// conditional row update, so concurrent callers for the same account can
// never jointly exceed daily_send_limit.
func (l *Limiter) TryReserve(ctx context.Context, accountID int64) (Reservation, error) {
	account, err := l.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return Reservation{}, err
	}

	loc := account.Location()
	now := l.Clock.Now().In(loc)
	localDay := now.Format("2006-01-02")
	res := Reservation{AccountID: accountID, LocalDay: localDay}

	if account.ConnectionStatus != model.AccountConnected {
		res.Reason = ReasonAccountDisconnected
		res.RetryAt = now.Add(6 * time.Hour)
		return res, nil
	}

	if isWeekend(now) {
		res.Reason = ReasonWeekend
		res.RetryAt = l.nextBusinessDayStart(now)
		return res, nil
	}

	minuteOfDay := now.Hour()*60 + now.Minute()
	if minuteOfDay < l.Hours.StartMinute {
		res.Reason = ReasonOutsideBusinessHours
		res.RetryAt = l.Hours.StartOfDay(now)
		return res, nil
	}
	if minuteOfDay >= l.Hours.EndMinute {
		res.Reason = ReasonOutsideBusinessHours
		res.RetryAt = l.nextBusinessDayStart(now)
		return res, nil
	}

	ok, err := l.Accounts.TryIncrementQuota(ctx, accountID, localDay)
	if err != nil {
		return Reservation{}, err
	}
	if !ok {
		res.Reason = ReasonDailyLimitReached
		res.RetryAt = l.nextBusinessDayStart(now)
		return res, nil
	}

	res.Authorized = true
	return res, nil
}

// Release hands back a reservation whose send was never attempted. Quota
// consumed by an actual provider call is never released: the call may
// have gone through even if we did not see the response.
func (l *Limiter) Release(ctx context.Context, res Reservation) error {
	if !res.Authorized {
		return nil
	}
	return l.Accounts.DecrementQuota(ctx, res.AccountID, res.LocalDay)
}

// NextWindow returns the earliest in-window send moment at or after t for
// the account's location. Used by the queue writer to pick a base date
// before consulting the timing pattern.
func (l *Limiter) NextWindow(t time.Time) time.Time {
	minuteOfDay := t.Hour()*60 + t.Minute()
	switch {
	case isWeekend(t) || minuteOfDay >= l.Hours.EndMinute:
		return l.nextBusinessDayStart(t)
	case minuteOfDay < l.Hours.StartMinute:
		return l.Hours.StartOfDay(t)
	default:
		return t
	}
}

func (l *Limiter) nextBusinessDayStart(t time.Time) time.Time {
	next := l.Hours.StartOfDay(t).AddDate(0, 0, 1)
	for isWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
