package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and remote adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: no row or object for the key
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrExpired: a code or token is past its expiry
//   - ErrAlreadyUsed: a verification code was already consumed
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: a remote collaborator did not answer in time
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
