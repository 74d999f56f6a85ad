package model

import "time"

// QueueItem is one scheduled, durable unit of outbound work: one prospect
// at one sequence slot. A partial unique index on (prospect_id,
// message_slot) over non-terminal statuses guarantees at most one live
// item per step; that constraint is the system's only duplicate-send
// defense because the provider API has no idempotency key.
type QueueItem struct {
	ID                int64           `db:"id" json:"id"`
	ProspectID        int64           `db:"prospect_id" json:"prospect_id"`
	CampaignID        int64           `db:"campaign_id" json:"campaign_id"`
	WorkspaceID       int64           `db:"workspace_id" json:"workspace_id"`
	MessageSlot       int             `db:"message_slot" json:"message_slot"`
	ScheduledFor      time.Time       `db:"scheduled_for" json:"scheduled_for"`
	Status            QueueItemStatus `db:"status" json:"status"`
	ProviderMessageID string          `db:"provider_message_id" json:"provider_message_id,omitempty"`
	AttemptCount      int             `db:"attempt_count" json:"attempt_count"`
	LastError         string          `db:"last_error" json:"last_error,omitempty"`
	DispatchedAt      *time.Time      `db:"dispatched_at" json:"dispatched_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// IsFollowUpSlot reports whether dispatching this item requires the
// connection request to have been accepted first.
func (q *QueueItem) IsFollowUpSlot() bool {
	return q.MessageSlot > SlotConnectionRequest
}
