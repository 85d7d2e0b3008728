package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Threat-mitigation outcomes
	ErrValidation      = errors.New("input failed validation")
	ErrSecurityBlocked = errors.New("request blocked by security policy")
	ErrLockedOut       = errors.New("too many failed attempts")

	// Collaborator availability
	ErrCounterStoreUnavailable = errors.New("attempt counter store unavailable")
	ErrStorageNotConfigured    = errors.New("object storage not configured")
	ErrEncodeBusy              = errors.New("media encoder is busy")
)
