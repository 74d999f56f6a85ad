package model

import "time"

type AccountConnectionStatus string

const (
	AccountConnected        AccountConnectionStatus = "connected"
	AccountDisconnected     AccountConnectionStatus = "disconnected"
	AccountNeedsCredentials AccountConnectionStatus = "needs_credentials"
)

// SendingAccount is one provider identity (one human's LinkedIn login)
// bound to exactly one workspace. SendsToday counts against
// DailySendLimit and belongs to QuotaDay, the account-local calendar day
// it was last incremented on; the rate limiter rolls it over lazily when
// the local day changes.
type SendingAccount struct {
	ID               int64                   `db:"id" json:"id"`
	WorkspaceID      int64                   `db:"workspace_id" json:"workspace_id"`
	DisplayName      string                  `db:"display_name" json:"display_name"`
	Timezone         string                  `db:"timezone" json:"timezone"`
	DailySendLimit   int                     `db:"daily_send_limit" json:"daily_send_limit"`
	SendsToday       int                     `db:"sends_today" json:"sends_today"`
	QuotaDay         string                  `db:"quota_day" json:"quota_day"`
	ConnectionStatus AccountConnectionStatus `db:"connection_status" json:"connection_status"`
	CreatedAt        time.Time               `db:"created_at" json:"created_at"`
}

// Location resolves the account's IANA timezone, falling back to UTC on
// records with a bad or empty value.
func (a *SendingAccount) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil || a.Timezone == "" {
		return time.UTC
	}
	return loc
}
