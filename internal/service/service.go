// Package service contains the ledger application services: payroll registry,
// payment processing, encrypted metadata storage and audit exports.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/limiter"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/proof"
)

// Publisher receives ledger events. Publish must not block.
type Publisher interface {
	Publish(e model.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.Event) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func invalid(what string) error {
	return fmt.Errorf("validation: %s: %w", what, errs.ErrInvalidInput)
}

// proofCheck runs the injected verifier with optional per-caller throttling.
type proofCheck struct {
	verifier proof.Verifier
	lim      limiter.Limiter
	log      *zap.Logger
}

// verify returns errs.ErrInvalidProof when the verifier rejects the pair and
// errs.ErrRateLimited when caller is blocked after repeated rejections.
func (c proofCheck) verify(ctx context.Context, caller model.Identity, ciphertext, pf, pctx []byte) error {
	if c.lim != nil {
		ok, retry, err := c.lim.Allow(ctx, string(caller))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("retry in %s: %w", retry.Round(time.Second), errs.ErrRateLimited)
		}
	}
	if !c.verifier.Verify(ciphertext, pf, pctx) {
		if c.lim != nil {
			if blocked, _, err := c.lim.Failure(ctx, string(caller)); err != nil {
				c.log.Warn("limiter failure record", zap.Error(err))
			} else if blocked {
				c.log.Info("caller blocked after invalid proofs", zap.String("caller", string(caller)))
			}
		}
		return errs.ErrInvalidProof
	}
	if c.lim != nil {
		_ = c.lim.Success(ctx, string(caller))
	}
	return nil
}
