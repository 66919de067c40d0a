package easybroker

import "errors"

var (
	// ErrNotFound is returned when the provider has no such record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidID is returned for empty or malformed record identifiers.
	ErrInvalidID = errors.New("invalid id")

	// ErrInvalidLead is returned when a lead lacks required contact details.
	ErrInvalidLead = errors.New("invalid lead")
)
