package model

import "time"

// Campaign is a named outreach sequence bound to exactly one sending
// account: a connection request, up to six follow-ups, and a goodbye.
type Campaign struct {
	ID                   int64          `db:"id" json:"id"`
	WorkspaceID          int64          `db:"workspace_id" json:"workspace_id"`
	Name                 string         `db:"name" json:"name"`
	Status               CampaignStatus `db:"status" json:"status"`
	SendingAccountID     int64          `db:"sending_account_id" json:"sending_account_id"`
	ConnectionWaitHours  int            `db:"connection_wait_hours" json:"connection_wait_hours"`
	InterFollowupWaitHrs int            `db:"inter_followup_wait_hours" json:"inter_followup_wait_hours"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// ConnectionWait is how long an unanswered connection request may sit
// before the prospect is written off as connection_not_accepted.
func (c *Campaign) ConnectionWait() time.Duration {
	return time.Duration(c.ConnectionWaitHours) * time.Hour
}

// InterFollowupWait is the minimum spacing between consecutive follow-ups.
func (c *Campaign) InterFollowupWait() time.Duration {
	return time.Duration(c.InterFollowupWaitHrs) * time.Hour
}

// CampaignMessage is one slot in a campaign's ordered sequence.
// Slot 0 is the connection request, the last slot is the goodbye and
// everything between is a follow-up.
type CampaignMessage struct {
	CampaignID int64  `db:"campaign_id" json:"campaign_id"`
	Slot       int    `db:"slot" json:"slot"`
	Body       string `db:"body" json:"body"`
}

const (
	// SlotConnectionRequest is always the first slot of a sequence.
	SlotConnectionRequest = 0

	// MaxFollowUps caps the number of follow-up slots per campaign.
	MaxFollowUps = 6
)
