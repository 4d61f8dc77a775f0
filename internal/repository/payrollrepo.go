// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/payroll-vault/internal/model"
)

// PayrollRepository owns payroll records and their id counter.
type PayrollRepository interface {
	// CreatePayroll allocates the next payroll id and stores an active, unverified payroll.
	CreatePayroll(ctx context.Context, employer model.Identity, name, description string) (*model.Payroll, error)
	// GetPayroll loads a payroll by id (errs.ErrNotFound if absent).
	GetPayroll(ctx context.Context, id uint64) (*model.Payroll, error)
	// ListPayrolls returns payrolls of an employer ordered by id; empty employer lists all.
	ListPayrolls(ctx context.Context, employer model.Identity) ([]model.Payroll, error)
	// SetVerified flips is_verified to true; changed is false when it already was.
	SetVerified(ctx context.Context, id uint64) (changed bool, err error)
	// Deactivate clears is_active if caller is the employer; changed is false when already inactive.
	Deactivate(ctx context.Context, id uint64, caller model.Identity) (changed bool, err error)
}
