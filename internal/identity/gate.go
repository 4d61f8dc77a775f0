// Package identity implements the authorization predicates evaluated at the
// top of every mutating ledger operation.
package identity

import (
	"context"

	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/model"
)

// PayrollReader resolves payrolls for employer checks.
type PayrollReader interface {
	GetPayroll(ctx context.Context, id uint64) (*model.Payroll, error)
}

// Gate holds the single verifier identity, fixed at construction.
type Gate struct {
	verifier model.Identity
	payrolls PayrollReader
}

// NewGate constructs a Gate. The verifier identity cannot be changed later.
func NewGate(verifier model.Identity, payrolls PayrollReader) *Gate {
	return &Gate{verifier: verifier, payrolls: payrolls}
}

// Verifier returns the distinguished verifier identity.
func (g *Gate) Verifier() model.Identity { return g.verifier }

// Payroll resolves a payroll through the registry.
func (g *Gate) Payroll(ctx context.Context, payrollID uint64) (*model.Payroll, error) {
	return g.payrolls.GetPayroll(ctx, payrollID)
}

// IsVerifier reports whether id holds the verifier capability.
func (g *Gate) IsVerifier(id model.Identity) bool {
	return id != "" && id == g.verifier
}

// IsEmployerOf reports whether id created the payroll. Lookup errors,
// including errs.ErrNotFound, are returned as is.
func (g *Gate) IsEmployerOf(ctx context.Context, id model.Identity, payrollID uint64) (bool, error) {
	p, err := g.payrolls.GetPayroll(ctx, payrollID)
	if err != nil {
		return false, err
	}
	return id != "" && p.Employer == id, nil
}

// RequireVerifier returns errs.ErrUnauthorized unless id is the verifier.
func (g *Gate) RequireVerifier(id model.Identity) error {
	if !g.IsVerifier(id) {
		return errs.ErrUnauthorized
	}
	return nil
}

// RequireEmployer resolves the payroll and returns it if id is its employer.
func (g *Gate) RequireEmployer(ctx context.Context, id model.Identity, payrollID uint64) (*model.Payroll, error) {
	p, err := g.payrolls.GetPayroll(ctx, payrollID)
	if err != nil {
		return nil, err
	}
	if id == "" || p.Employer != id {
		return nil, errs.ErrUnauthorized
	}
	return p, nil
}

// RequireEmployerOrVerifier is used for audit exports.
func (g *Gate) RequireEmployerOrVerifier(ctx context.Context, id model.Identity, payrollID uint64) (*model.Payroll, error) {
	p, err := g.payrolls.GetPayroll(ctx, payrollID)
	if err != nil {
		return nil, err
	}
	if g.IsVerifier(id) || (id != "" && p.Employer == id) {
		return p, nil
	}
	return nil, errs.ErrUnauthorized
}
