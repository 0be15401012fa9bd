package domain

import "errors"

var (
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrAccountNotFound  = errors.New("account_not_found")
	ErrAmbiguousAccount = errors.New("ambiguous_account")
)
