package repository

import (
	"context"

	"github.com/and161185/payroll-vault/internal/model"
)

// PaymentRepository owns payment records and the process-wide payment id counter.
type PaymentRepository interface {
	// RecordPayment atomically re-checks the payroll (exists, active, caller is employer),
	// bumps its bounded counters, allocates a payment id and stores the payment.
	RecordPayment(ctx context.Context, caller model.Identity, in model.NewPayment) (*model.Payment, error)
	// GetPayment loads a payment by id.
	GetPayment(ctx context.Context, id uint64) (*model.Payment, error)
	// ListPayments returns the payments of a payroll ordered by id.
	ListPayments(ctx context.Context, payrollID uint64) ([]model.Payment, error)
}
