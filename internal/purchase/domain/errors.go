package domain

import "errors"

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidOrder     = errors.New("invalid_order")
	ErrNothingToCharge  = errors.New("nothing_to_charge")
	ErrPurchaseNotFound = errors.New("purchase_not_found")
	ErrInvalidState     = errors.New("invalid_purchase_state")
)
