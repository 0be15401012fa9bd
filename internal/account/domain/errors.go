package domain

import "errors"

var (
	ErrNotFound     = errors.New("account_not_found")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrEmailExists  = errors.New("email_exists")
)
