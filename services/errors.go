package services

import (
	"errors"
	"fmt"
)

// Error taxonomy. Specific errors wrap one of these so callers can branch on
// errors.Is(err, ErrConflict) and friends.
var (
	ErrValidation  = errors.New("validation failed")
	ErrEligibility = errors.New("not eligible")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrStorage     = errors.New("storage unavailable")
)

var (
	ErrInvalidReferralCode = fmt.Errorf("%w: referral code must be exactly %d characters", ErrValidation, ReferralCodeLength)
	ErrUnknownReferralCode = fmt.Errorf("%w: referral code does not belong to any user", ErrNotFound)
	ErrSelfReferral        = fmt.Errorf("%w: you cannot use your own referral code", ErrConflict)
	ErrAlreadyReferred     = fmt.Errorf("%w: a referral code was already applied to this account", ErrConflict)
	ErrClaimTooSoon        = fmt.Errorf("%w: daily reward already claimed", ErrEligibility)
	ErrNoHints             = fmt.Errorf("%w: no hints left", ErrValidation)
	ErrProgressNotFound    = fmt.Errorf("%w: progress record does not exist", ErrNotFound)
	ErrInvalidCompletion   = fmt.Errorf("%w: case id is required and points/time must be within bounds", ErrValidation)
	ErrTotalOverflow       = fmt.Errorf("%w: total would exceed its maximum", ErrValidation)
	ErrMissingUserID       = fmt.Errorf("%w: user id is required", ErrValidation)
)

// ErrorKind classifies a failure for transports.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindEligibility ErrorKind = "eligibility"
	KindConflict    ErrorKind = "conflict"
	KindNotFound    ErrorKind = "not_found"
	KindStorage     ErrorKind = "storage"
)

// KindOf maps err onto the taxonomy. Unclassified errors are storage errors:
// they are the retryable ones.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrEligibility):
		return KindEligibility
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindStorage
	}
}

// Outcome is the structured success/failure carried by every result.
// Business rejections land here; storage failures are returned as errors.
type Outcome struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

func succeeded(message string) Outcome {
	return Outcome{Success: true, Message: message}
}

func rejected(err error) Outcome {
	return Outcome{Success: false, Message: err.Error(), Kind: KindOf(err)}
}

// isRejection reports whether err is a business rejection rather than a
// storage failure.
func isRejection(err error) bool {
	k := KindOf(err)
	return k != "" && k != KindStorage
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
