package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/and161185/payroll-vault/internal/audit"
	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/limiter"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/proof"
	"github.com/and161185/payroll-vault/internal/repository"
)

// PaymentService defines the payment processor operations.
type PaymentService interface {
	// ProcessPayment admits, verifies and records one encrypted disbursement.
	ProcessPayment(ctx context.Context, caller model.Identity, payrollID uint64, employee model.Identity,
		encryptedAmount model.EncryptedBlob, inputProof []byte) (uint64, error)
	// ListPayments returns the payments of an existing payroll.
	ListPayments(ctx context.Context, payrollID uint64) ([]model.Payment, error)
}

type PaymentServiceImpl struct {
	payrolls repository.PayrollRepository
	payments repository.PaymentRepository
	check    proofCheck
	pub      Publisher
	log      *zap.Logger
}

// NewPaymentService constructs PaymentService. lim may be nil to disable throttling.
func NewPaymentService(
	payrolls repository.PayrollRepository,
	payments repository.PaymentRepository,
	verifier proof.Verifier,
	lim limiter.Limiter,
	pub Publisher,
	log *zap.Logger,
) *PaymentServiceImpl {
	log = loggerOrNop(log)
	return &PaymentServiceImpl{
		payrolls: payrolls,
		payments: payments,
		check:    proofCheck{verifier: verifier, lim: lim, log: log},
		pub:      publisherOrNop(pub),
		log:      log,
	}
}

// ProcessPayment resolves the payroll (NotFound, PayrollInactive), checks the
// employer (Unauthorized) and the proof (InvalidProof) before anything is
// allocated. The repository repeats the admission checks under its lock, so a
// concurrent deactivation still wins.
func (s *PaymentServiceImpl) ProcessPayment(
	ctx context.Context, caller model.Identity, payrollID uint64, employee model.Identity,
	encryptedAmount model.EncryptedBlob, inputProof []byte,
) (uint64, error) {
	if employee == "" {
		return 0, invalid("empty employee")
	}
	p, err := s.payrolls.GetPayroll(ctx, payrollID)
	if err != nil {
		return 0, err
	}
	if err := p.AdmitPayment(caller); err != nil {
		return 0, err
	}
	if err := s.check.verify(ctx, caller, encryptedAmount, inputProof, proof.PaymentContext(payrollID, employee)); err != nil {
		return 0, err
	}

	pm, err := s.payments.RecordPayment(ctx, caller, model.NewPayment{
		PayrollID:       payrollID,
		Employee:        employee,
		EncryptedAmount: encryptedAmount,
		InputProof:      inputProof,
	})
	if err != nil {
		if errors.Is(err, errs.ErrCounterOverflow) {
			s.log.Error("payroll counter overflow",
				zap.Uint64("payroll_id", payrollID),
				zap.Uint8("employee_count", p.EmployeeCount),
				zap.Uint8("total_amount", p.TotalAmount),
			)
		}
		return 0, err
	}

	sum := audit.Summarize(pm.EncryptedAmount)
	s.pub.Publish(model.Event{
		Kind:      model.EventPaymentProcessed,
		PayrollID: payrollID,
		PaymentID: pm.ID,
		Employee:  employee,
		Summary:   &sum,
	})
	return pm.ID, nil
}

// ListPayments returns NotFound for unknown payrolls.
func (s *PaymentServiceImpl) ListPayments(ctx context.Context, payrollID uint64) ([]model.Payment, error) {
	if _, err := s.payrolls.GetPayroll(ctx, payrollID); err != nil {
		return nil, err
	}
	return s.payments.ListPayments(ctx, payrollID)
}
