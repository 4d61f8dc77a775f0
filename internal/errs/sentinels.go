// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the referenced payroll, payment or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the caller lacks the employer or verifier capability.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPayrollInactive indicates a mutation against a deactivated payroll run.
	ErrPayrollInactive = errors.New("payroll inactive")

	// ErrInvalidProof indicates the proof verifier rejected a ciphertext/proof pair.
	ErrInvalidProof = errors.New("invalid proof")

	// ErrCounterOverflow indicates a bounded summary counter would exceed its range.
	// It is a data-integrity fault and is never clamped.
	ErrCounterOverflow = errors.New("counter overflow")

	// ErrInvalidInput indicates a request rejected by boundary validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the caller is temporarily blocked after repeated proof failures.
	ErrRateLimited = errors.New("rate limited")
)
