package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrProspectNotFound struct {
	ProspectID int64
}

func (e *ErrProspectNotFound) Error() string {
	return fmt.Sprintf("prospect with ID %d not found", e.ProspectID)
}

func NewProspectNotFound(id int64) error {
	return &ErrProspectNotFound{ProspectID: id}
}

type ErrAccountNotFound struct {
	AccountID int64
}

func (e *ErrAccountNotFound) Error() string {
	return fmt.Sprintf("sending account with ID %d not found", e.AccountID)
}

func NewAccountNotFound(id int64) error {
	return &ErrAccountNotFound{AccountID: id}
}

// ErrOwnershipViolation marks a prospect owned by a sending account other
// than its campaign's account. Such prospects are excluded from scheduling
// entirely and flagged for manual review.
type ErrOwnershipViolation struct {
	ProspectID int64
	OwnerID    int64
	CampaignID int64
}

func (e *ErrOwnershipViolation) Error() string {
	return fmt.Sprintf("prospect %d is owned by account %d, not by campaign %d's account",
		e.ProspectID, e.OwnerID, e.CampaignID)
}

func NewOwnershipViolation(prospectID, ownerID, campaignID int64) error {
	return &ErrOwnershipViolation{ProspectID: prospectID, OwnerID: ownerID, CampaignID: campaignID}
}

// ErrIllegalTransition rejects a status write that is not in the entity's
// transition table.
var ErrIllegalTransition = errors.New("illegal status transition")

// ErrStaleStatus means a compare-and-set status update matched no row:
// another caller already moved the entity on.
var ErrStaleStatus = errors.New("status changed by concurrent caller")
