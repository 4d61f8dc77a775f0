package service

import (
	"context"
	"strings"

	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/identity"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/repository"
)

// PayrollService defines the payroll registry operations.
type PayrollService interface {
	// CreatePayroll registers a new active, unverified run owned by caller.
	CreatePayroll(ctx context.Context, caller model.Identity, name, description string) (uint64, error)
	// GetPayrollInfo returns a payroll snapshot.
	GetPayrollInfo(ctx context.Context, payrollID uint64) (*model.Payroll, error)
	// SetVerified marks a payroll verified; verifier only, idempotent.
	SetVerified(ctx context.Context, caller model.Identity, payrollID uint64) error
	// Deactivate stops a payroll from accepting payments; employer only.
	Deactivate(ctx context.Context, caller model.Identity, payrollID uint64) error
	// ListPayrolls lists payrolls of an employer (all when employer is empty).
	ListPayrolls(ctx context.Context, employer model.Identity) ([]model.Payroll, error)
}

type PayrollServiceImpl struct {
	repo repository.PayrollRepository
	gate *identity.Gate
	pub  Publisher
}

// NewPayrollService constructs PayrollService.
func NewPayrollService(repo repository.PayrollRepository, gate *identity.Gate, pub Publisher) *PayrollServiceImpl {
	return &PayrollServiceImpl{repo: repo, gate: gate, pub: publisherOrNop(pub)}
}

// CreatePayroll validates the boundary fields and stores the run.
func (s *PayrollServiceImpl) CreatePayroll(ctx context.Context, caller model.Identity, name, description string) (uint64, error) {
	if caller == "" {
		return 0, errs.ErrUnauthorized
	}
	if strings.TrimSpace(name) == "" {
		return 0, invalid("empty name")
	}
	if strings.TrimSpace(description) == "" {
		return 0, invalid("empty description")
	}
	p, err := s.repo.CreatePayroll(ctx, caller, name, description)
	if err != nil {
		return 0, err
	}
	s.pub.Publish(model.Event{
		Kind:      model.EventPayrollCreated,
		PayrollID: p.ID,
		Employer:  p.Employer,
		Name:      p.Name,
	})
	return p.ID, nil
}

// GetPayrollInfo is a plain read.
func (s *PayrollServiceImpl) GetPayrollInfo(ctx context.Context, payrollID uint64) (*model.Payroll, error) {
	return s.repo.GetPayroll(ctx, payrollID)
}

// SetVerified checks the verifier capability before touching the payroll.
func (s *PayrollServiceImpl) SetVerified(ctx context.Context, caller model.Identity, payrollID uint64) error {
	if err := s.gate.RequireVerifier(caller); err != nil {
		return err
	}
	changed, err := s.repo.SetVerified(ctx, payrollID)
	if err != nil {
		return err
	}
	if changed {
		s.pub.Publish(model.Event{Kind: model.EventPayrollVerified, PayrollID: payrollID})
	}
	return nil
}

// Deactivate checks ownership, then lets the repository re-check it atomically.
func (s *PayrollServiceImpl) Deactivate(ctx context.Context, caller model.Identity, payrollID uint64) error {
	p, err := s.gate.RequireEmployer(ctx, caller, payrollID)
	if err != nil {
		return err
	}
	changed, err := s.repo.Deactivate(ctx, payrollID, caller)
	if err != nil {
		return err
	}
	if changed {
		s.pub.Publish(model.Event{Kind: model.EventPayrollDeactivated, PayrollID: payrollID, Employer: p.Employer})
	}
	return nil
}

// ListPayrolls is a plain read.
func (s *PayrollServiceImpl) ListPayrolls(ctx context.Context, employer model.Identity) ([]model.Payroll, error) {
	return s.repo.ListPayrolls(ctx, employer)
}
