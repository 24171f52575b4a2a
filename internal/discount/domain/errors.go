package domain

import "errors"

var (
	ErrCodeNotFound     = errors.New("discount_code_not_found")
	ErrCodeInactive     = errors.New("discount_code_inactive")
	ErrCodeOutOfWindow  = errors.New("discount_code_out_of_window")
	ErrBelowMinimum     = errors.New("discount_below_minimum")
	ErrExhaustedTotal   = errors.New("discount_exhausted_total")
	ErrExhaustedPerUser = errors.New("discount_exhausted_per_user")
	ErrNotApplicable    = errors.New("discount_not_applicable")

	ErrInvalidCode      = errors.New("invalid_discount_code")
	ErrInvalidKind      = errors.New("invalid_discount_kind")
	ErrInvalidValue     = errors.New("invalid_discount_value")
	ErrInvalidLimits    = errors.New("invalid_discount_limits")
	ErrInvalidWindow    = errors.New("invalid_discount_window")
	ErrInvalidCartTotal = errors.New("invalid_cart_total")
	ErrCodeExists       = errors.New("discount_code_exists")
)

// Reason is the user-facing name of a validation failure.
type Reason string

const (
	ReasonNotFound         Reason = "NotFound"
	ReasonInactive         Reason = "Inactive"
	ReasonOutOfWindow      Reason = "OutOfWindow"
	ReasonBelowMinimum     Reason = "BelowMinimum"
	ReasonExhaustedTotal   Reason = "ExhaustedTotal"
	ReasonExhaustedPerUser Reason = "ExhaustedPerUser"
	ReasonNotApplicable    Reason = "NotApplicable"
)

var reasons = []struct {
	err    error
	reason Reason
}{
	{ErrCodeNotFound, ReasonNotFound},
	{ErrCodeInactive, ReasonInactive},
	{ErrCodeOutOfWindow, ReasonOutOfWindow},
	{ErrBelowMinimum, ReasonBelowMinimum},
	{ErrExhaustedTotal, ReasonExhaustedTotal},
	{ErrExhaustedPerUser, ReasonExhaustedPerUser},
	{ErrNotApplicable, ReasonNotApplicable},
}

// ReasonOf returns the validation reason carried by err, or "" when err is
// not a discount validation failure.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}

// IsValidationError reports whether err is a user-facing rejection of a code.
func IsValidationError(err error) bool {
	return ReasonOf(err) != ""
}
