package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/payroll-vault/internal/audit"
	"github.com/and161185/payroll-vault/internal/identity"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/repository"
)

// ErrNoReportSink is returned by PublishReport when no sink is configured.
var ErrNoReportSink = errors.New("report sink not configured")

// Discloser opens an encrypted payment amount; it is the authorized disclosure channel.
type Discloser interface {
	Disclose(p model.Payment) (string, error)
}

// ReportWriter persists an audit report and returns where it was written.
type ReportWriter interface {
	WriteReport(ctx context.Context, rep audit.Report) (string, error)
}

// AuditService defines audit export and verification operations.
type AuditService interface {
	// Export derives pending audit records for a payroll, filtered by term.
	Export(ctx context.Context, caller model.Identity, payrollID uint64, term string) ([]model.AuditRecord, error)
	// Verify re-derives the verdict of every record.
	Verify(records []model.AuditRecord) []model.AuditRecord
	// Report builds a checked report with a Merkle root.
	Report(ctx context.Context, caller model.Identity, payrollID uint64) (audit.Report, error)
	// PublishReport builds a report and hands it to the configured writer.
	PublishReport(ctx context.Context, caller model.Identity, payrollID uint64) (string, error)
}

type AuditServiceImpl struct {
	payments repository.PaymentRepository
	gate     *identity.Gate
	disc     Discloser
	writer   ReportWriter
	now      func() time.Time
	log      *zap.Logger
}

// NewAuditService constructs AuditService. disc and writer may be nil.
func NewAuditService(
	payments repository.PaymentRepository,
	gate *identity.Gate,
	disc Discloser,
	writer ReportWriter,
	log *zap.Logger,
) *AuditServiceImpl {
	return &AuditServiceImpl{
		payments: payments,
		gate:     gate,
		disc:     disc,
		writer:   writer,
		now:      time.Now,
		log:      loggerOrNop(log),
	}
}

// Export requires the employer or the verifier. Amounts are disclosed only to
// the verifier, and only when a discloser is configured.
func (s *AuditServiceImpl) Export(ctx context.Context, caller model.Identity, payrollID uint64, term string) ([]model.AuditRecord, error) {
	if _, err := s.gate.RequireEmployerOrVerifier(ctx, caller, payrollID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListPayments(ctx, payrollID)
	if err != nil {
		return nil, err
	}
	disclose := s.disc != nil && s.gate.IsVerifier(caller)

	out := make([]model.AuditRecord, 0, len(payments))
	for _, p := range payments {
		rec := audit.FromPayment(p)
		if disclose {
			amount, err := s.disc.Disclose(p)
			if err != nil {
				s.log.Warn("amount not disclosed",
					zap.Uint64("payroll_id", p.PayrollID),
					zap.Uint64("payment_id", p.ID),
					zap.Error(err),
				)
			} else {
				rec.Amount = amount
			}
		}
		out = append(out, rec)
	}
	return audit.Search(out, term), nil
}

// Verify never trusts a previous verdict.
func (s *AuditServiceImpl) Verify(records []model.AuditRecord) []model.AuditRecord {
	return audit.CheckAll(records)
}

// Report exports all records of the payroll and commits to them.
func (s *AuditServiceImpl) Report(ctx context.Context, caller model.Identity, payrollID uint64) (audit.Report, error) {
	recs, err := s.Export(ctx, caller, payrollID, "")
	if err != nil {
		return audit.Report{}, err
	}
	return audit.NewReport(payrollID, recs, s.now()), nil
}

// PublishReport writes the report through the configured writer.
func (s *AuditServiceImpl) PublishReport(ctx context.Context, caller model.Identity, payrollID uint64) (string, error) {
	if s.writer == nil {
		return "", ErrNoReportSink
	}
	rep, err := s.Report(ctx, caller, payrollID)
	if err != nil {
		return "", err
	}
	return s.writer.WriteReport(ctx, rep)
}
