package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrConflict     = errors.New("domain: conflict")
	ErrUnauthorized = errors.New("domain: unauthorized")
	ErrForbidden    = errors.New("domain: forbidden")
	ErrInvalidInput = errors.New("domain: invalid input")

	ErrAlreadyMember  = errors.New("domain: user is already a member")
	ErrAlreadyInvited = errors.New("domain: user has already been invited")
)
