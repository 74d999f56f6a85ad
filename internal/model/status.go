package model

// Status enumerations for campaigns, prospects and queue items, plus the
// transition tables that gate every status write. Repositories reject any
// write that is not listed here.

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:  {CampaignActive},
	CampaignActive: {CampaignPaused, CampaignCompleted},
	CampaignPaused: {CampaignActive, CampaignCompleted},
}

func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ProspectStatus string

const (
	ProspectPending               ProspectStatus = "pending"
	ProspectApproved              ProspectStatus = "approved"
	ProspectConnectionRequested   ProspectStatus = "connection_requested"
	ProspectConnected             ProspectStatus = "connected"
	ProspectConnectionNotAccepted ProspectStatus = "connection_not_accepted"
	ProspectFollowUpDue           ProspectStatus = "follow_up_due"
	ProspectFollowUpSent          ProspectStatus = "follow_up_sent"
	ProspectGoodbyeSent           ProspectStatus = "goodbye_sent"
	ProspectReplied               ProspectStatus = "replied"
	ProspectFailedPermanently     ProspectStatus = "failed_permanently"
)

// prospectTransitions is the single source of truth for legal prospect
// status changes. Transitions are triggered only by confirmed queue item
// outcomes or by the acceptance gate.
var prospectTransitions = map[ProspectStatus][]ProspectStatus{
	ProspectPending:  {ProspectApproved, ProspectFailedPermanently},
	ProspectApproved: {ProspectConnectionRequested, ProspectFailedPermanently},
	ProspectConnectionRequested: {
		ProspectConnected,
		ProspectConnectionNotAccepted,
		ProspectReplied,
		ProspectFailedPermanently,
	},
	ProspectConnected: {
		ProspectFollowUpDue,
		ProspectGoodbyeSent,
		ProspectReplied,
		ProspectFailedPermanently,
	},
	ProspectFollowUpDue: {
		ProspectFollowUpSent,
		ProspectGoodbyeSent,
		ProspectReplied,
		ProspectFailedPermanently,
	},
	ProspectFollowUpSent: {
		ProspectFollowUpDue,
		ProspectGoodbyeSent,
		ProspectReplied,
		ProspectFailedPermanently,
	},
}

func (s ProspectStatus) CanTransitionTo(next ProspectStatus) bool {
	for _, allowed := range prospectTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a prospect is removed from further scheduling.
func (s ProspectStatus) IsTerminal() bool {
	switch s {
	case ProspectGoodbyeSent, ProspectReplied, ProspectFailedPermanently, ProspectConnectionNotAccepted:
		return true
	}
	return false
}

type QueueItemStatus string

const (
	QueueItemPending    QueueItemStatus = "pending"
	QueueItemDispatched QueueItemStatus = "dispatched"
	QueueItemConfirmed  QueueItemStatus = "confirmed"
	QueueItemFailed     QueueItemStatus = "failed"
	QueueItemCancelled  QueueItemStatus = "cancelled"
)

var queueItemTransitions = map[QueueItemStatus][]QueueItemStatus{
	QueueItemPending: {QueueItemDispatched, QueueItemCancelled},
	// dispatched -> pending is the retry / reconciler-reclaim path.
	QueueItemDispatched: {QueueItemConfirmed, QueueItemFailed, QueueItemPending},
	QueueItemFailed:     {QueueItemPending},
}

func (s QueueItemStatus) CanTransitionTo(next QueueItemStatus) bool {
	for _, allowed := range queueItemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a queue item can no longer be dispatched.
// Failed items are terminal for the uniqueness constraint even though a
// manual retry may flip them back to pending.
func (s QueueItemStatus) IsTerminal() bool {
	return s == QueueItemConfirmed || s == QueueItemFailed || s == QueueItemCancelled
}
