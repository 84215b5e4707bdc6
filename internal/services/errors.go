package services

import "errors"

var (
	ErrListingNotFound    = errors.New("listing not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("not the listing owner")
	ErrListingUnavailable = errors.New("listing not available")
	ErrOwnListing         = errors.New("cannot buy own listing")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrRenewTooEarly      = errors.New("listing not close enough to expiry")
	ErrAdminProtected     = errors.New("cannot target an administrator")
)

// Actor is the explicit acting identity passed into every mutating
// call, rather than read from ambient request state.
type Actor struct {
	ID    string
	Name  string
	Admin bool
}
