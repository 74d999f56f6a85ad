package provider

import (
	"errors"
	"fmt"
)

// Reason codes reported by the messaging provider on a failed send.
const (
	ReasonInvalidIdentifier   = "invalid_identifier"
	ReasonAlreadyConnected    = "already_connected"
	ReasonInvitationWithdrawn = "invitation_withdrawn"
	ReasonCooldownActive      = "cooldown_active"
	ReasonRateLimited         = "rate_limited"
)

// TransientError covers network failures, 5xx responses and provider-side
// rate limiting. The queue item goes back to pending with backoff.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient provider error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient provider error (%s)", e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError covers failures that retrying cannot fix: invalid target,
// already connected, withdrawn invitation, cooldown. The prospect is
// terminated.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent provider error (%s)", e.Reason)
}

// IsPermanent reports whether err (anywhere in its chain) is a
// PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsTransient reports whether err (anywhere in its chain) is a
// TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// permanentReasons maps provider reason codes that can never succeed on
// retry.
var permanentReasons = map[string]bool{
	ReasonInvalidIdentifier:   true,
	ReasonAlreadyConnected:    true,
	ReasonInvitationWithdrawn: true,
	ReasonCooldownActive:      true,
}

// classify turns an HTTP status plus provider reason code into the
// taxonomy above.
func classify(httpStatus int, reason string) error {
	if permanentReasons[reason] {
		return &PermanentError{Reason: reason}
	}
	if httpStatus == 429 {
		return &TransientError{Reason: ReasonRateLimited}
	}
	if httpStatus >= 500 {
		return &TransientError{Reason: fmt.Sprintf("http_%d", httpStatus)}
	}
	if reason != "" {
		// Unknown 4xx reason: do not retry blindly against an
		// idempotency-unsafe API.
		return &PermanentError{Reason: reason}
	}
	return &TransientError{Reason: fmt.Sprintf("http_%d", httpStatus)}
}
