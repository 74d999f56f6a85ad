package model

import "time"

// Prospect is one target contact inside a campaign. A prospect belongs to
// exactly one campaign at a time and may only be messaged through the
// sending account that owns it. OwningAccountID is NULL on legacy records
// created before ownership tracking existed; those are treated as owned by
// the campaign's configured account.
type Prospect struct {
	ID                   int64          `db:"id" json:"id"`
	CampaignID           int64          `db:"campaign_id" json:"campaign_id"`
	WorkspaceID          int64          `db:"workspace_id" json:"workspace_id"`
	LinkedInIdentifier   string         `db:"linkedin_identifier" json:"linkedin_identifier"`
	FirstName            string         `db:"first_name" json:"first_name"`
	LastName             string         `db:"last_name" json:"last_name"`
	Company              string         `db:"company" json:"company"`
	Status               ProspectStatus `db:"status" json:"status"`
	OwningAccountID      *int64         `db:"owning_account_id" json:"owning_account_id,omitempty"`
	ContactedAt          *time.Time     `db:"contacted_at" json:"contacted_at,omitempty"`
	ConnectionAcceptedAt *time.Time     `db:"connection_accepted_at" json:"connection_accepted_at,omitempty"`
	NextActionDueAt      *time.Time     `db:"next_action_due_at" json:"next_action_due_at,omitempty"`
	StatusNote           string         `db:"status_note" json:"status_note,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether accountID may message this prospect. A NULL
// owning account falls back to the campaign's configured account.
func (p *Prospect) OwnedBy(accountID int64) bool {
	if p.OwningAccountID == nil {
		return true
	}
	return *p.OwningAccountID == accountID
}

// Schedulable reports whether the prospect can enter the outreach queue
// at all: it needs a resolvable identifier and a non-terminal status.
func (p *Prospect) Schedulable() bool {
	return p.LinkedInIdentifier != "" && !p.Status.IsTerminal()
}
