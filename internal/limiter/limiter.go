// Package limiter throttles callers that keep submitting payments with invalid input proofs.
package limiter

import (
	"context"
	"time"
)

// Limiter controls proof submission attempts and temporary lockouts per caller.
type Limiter interface {
	// Allow reports whether caller may submit a proof now and an optional retry-after.
	Allow(ctx context.Context, caller string) (bool, time.Duration, error)
	// Success resets counters after an accepted proof.
	Success(ctx context.Context, caller string) error
	// Failure records a rejected proof; may place a temporary block.
	Failure(ctx context.Context, caller string) (bool, time.Duration, error)
}
