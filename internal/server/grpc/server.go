// Package grpcserver exposes the payroll ledger over gRPC.
package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/payroll-vault/internal/api"
	"github.com/and161185/payroll-vault/internal/convert"
	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/service"
)

// Subscriber is the event source behind the Subscribe stream.
type Subscriber interface {
	Subscribe(buf int) (<-chan model.Event, func())
}

// Services bundles the handlers' dependencies. Events may be nil.
type Services struct {
	Payrolls    service.PayrollService
	Payments    service.PaymentService
	Data        service.DataService
	Audit       service.AuditService
	Events      Subscriber
	EventBuffer int
}

// Server wires services into gRPC handlers.
type Server struct {
	svc Services
	log *zap.Logger
}

var _ api.PayrollVaultServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(svc Services, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

// toStatus maps domain sentinels to gRPC codes.
func toStatus(op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, errs.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, errs.ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, errs.ErrPayrollInactive):
		code = codes.FailedPrecondition
	case errors.Is(err, errs.ErrInvalidProof), errors.Is(err, errs.ErrInvalidInput):
		code = codes.InvalidArgument
	case errors.Is(err, errs.ErrRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, errs.ErrCounterOverflow):
		code = codes.DataLoss
	case errors.Is(err, service.ErrNoReportSink):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Errorf(code, "%s: %v", op, err)
}

func callerOf(ctx context.Context) (model.Identity, error) {
	id, ok := CallerFromCtx(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "no auth")
	}
	return id, nil
}

// --- Payrolls ---

// CreatePayroll registers a run owned by the caller.
func (s *Server) CreatePayroll(ctx context.Context, req *api.CreatePayrollRequest) (*api.CreatePayrollResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	id, err := s.svc.Payrolls.CreatePayroll(ctx, caller, req.Name, req.Description)
	if err != nil {
		return nil, toStatus("create payroll", err)
	}
	return &api.CreatePayrollResponse{PayrollID: id}, nil
}

// GetPayrollInfo returns a payroll snapshot.
func (s *Server) GetPayrollInfo(ctx context.Context, req *api.PayrollRef) (*api.Payroll, error) {
	p, err := s.svc.Payrolls.GetPayrollInfo(ctx, req.PayrollID)
	if err != nil {
		return nil, toStatus("get payroll", err)
	}
	return convert.ToAPIPayroll(*p), nil
}

// SetVerified marks a payroll verified.
func (s *Server) SetVerified(ctx context.Context, req *api.PayrollRef) (*api.Empty, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Payrolls.SetVerified(ctx, caller, req.PayrollID); err != nil {
		return nil, toStatus("set verified", err)
	}
	return &api.Empty{}, nil
}

// Deactivate closes a payroll to new payments.
func (s *Server) Deactivate(ctx context.Context, req *api.PayrollRef) (*api.Empty, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Payrolls.Deactivate(ctx, caller, req.PayrollID); err != nil {
		return nil, toStatus("deactivate", err)
	}
	return &api.Empty{}, nil
}

func (s *Server) ListPayrolls(ctx context.Context, req *api.ListPayrollsRequest) (*api.ListPayrollsResponse, error) {
	ps, err := s.svc.Payrolls.ListPayrolls(ctx, model.NewIdentity(req.Employer))
	if err != nil {
		return nil, toStatus("list payrolls", err)
	}
	return &api.ListPayrollsResponse{Payrolls: convert.ToAPIPayrolls(ps)}, nil
}

// --- Payments ---

// ProcessPayment records one encrypted disbursement.
func (s *Server) ProcessPayment(ctx context.Context, req *api.ProcessPaymentRequest) (*api.ProcessPaymentResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	id, err := s.svc.Payments.ProcessPayment(ctx, caller, req.PayrollID, model.NewIdentity(req.Employee),
		model.EncryptedBlob(req.EncryptedAmount), req.InputProof)
	if err != nil {
		return nil, toStatus("process payment", err)
	}
	return &api.ProcessPaymentResponse{PaymentID: id}, nil
}

func (s *Server) ListPayments(ctx context.Context, req *api.PayrollRef) (*api.ListPaymentsResponse, error) {
	ps, err := s.svc.Payments.ListPayments(ctx, req.PayrollID)
	if err != nil {
		return nil, toStatus("list payments", err)
	}
	return &api.ListPaymentsResponse{Payments: convert.ToAPIPayments(ps)}, nil
}

// --- Encrypted data ---

func (s *Server) EncryptAndStoreData(ctx context.Context, req *api.StoreDataRequest) (*api.StoreDataResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := s.svc.Data.EncryptAndStoreData(ctx, caller, req.PayrollID,
		model.EncryptedBlob(req.EncryptedData), req.InputProof, req.DataType)
	if err != nil {
		return nil, toStatus("store data", err)
	}
	return &api.StoreDataResponse{Stored: ok}, nil
}

func (s *Server) GetEncryptedData(ctx context.Context, req *api.GetDataRequest) (*api.GetDataResponse, error) {
	b, err := s.svc.Data.GetEncryptedData(ctx, req.PayrollID, req.DataType)
	if err != nil {
		return nil, toStatus("get data", err)
	}
	return &api.GetDataResponse{EncryptedData: b}, nil
}

func (s *Server) ListDataTypes(ctx context.Context, req *api.PayrollRef) (*api.ListDataTypesResponse, error) {
	ts, err := s.svc.Data.ListDataTypes(ctx, req.PayrollID)
	if err != nil {
		return nil, toStatus("list data types", err)
	}
	if ts == nil {
		ts = []string{}
	}
	return &api.ListDataTypesResponse{DataTypes: ts}, nil
}

// --- Audit ---

// ExportAudit derives audit records for the employer or the verifier.
func (s *Server) ExportAudit(ctx context.Context, req *api.ExportAuditRequest) (*api.AuditRecords, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.svc.Audit.Export(ctx, caller, req.PayrollID, req.Term)
	if err != nil {
		return nil, toStatus("export audit", err)
	}
	return &api.AuditRecords{Records: convert.ToAPIAuditRecords(recs)}, nil
}

// VerifyAudit recomputes commitments of caller-supplied records.
func (s *Server) VerifyAudit(_ context.Context, req *api.VerifyAuditRequest) (*api.AuditRecords, error) {
	recs, err := convert.FromAPIAuditRecords(req.Records)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad records: %v", err)
	}
	return &api.AuditRecords{Records: convert.ToAPIAuditRecords(s.svc.Audit.Verify(recs))}, nil
}

// ExportAuditReport returns the report inline or, with Publish, its sink location.
func (s *Server) ExportAuditReport(ctx context.Context, req *api.ExportAuditReportRequest) (*api.ExportAuditReportResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if req.Publish {
		loc, err := s.svc.Audit.PublishReport(ctx, caller, req.PayrollID)
		if err != nil {
			return nil, toStatus("publish report", err)
		}
		return &api.ExportAuditReportResponse{Location: loc}, nil
	}
	rep, err := s.svc.Audit.Report(ctx, caller, req.PayrollID)
	if err != nil {
		return nil, toStatus("build report", err)
	}
	return &api.ExportAuditReportResponse{Report: &rep}, nil
}

// --- Events ---

// Subscribe streams ledger events until the client goes away. Events missed
// while the subscriber's buffer is full are not replayed.
func (s *Server) Subscribe(req *api.SubscribeRequest, stream api.EventStream) error {
	if s.svc.Events == nil {
		return status.Error(codes.Unimplemented, "events disabled")
	}
	kinds := make(map[model.EventKind]bool, len(req.Kinds))
	for _, k := range req.Kinds {
		kinds[model.EventKind(k)] = true
	}

	ch, cancel := s.svc.Events.Subscribe(s.svc.EventBuffer)
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if req.PayrollID != 0 && e.PayrollID != req.PayrollID {
				continue
			}
			if len(kinds) > 0 && !kinds[e.Kind] {
				continue
			}
			if err := stream.Send(convert.ToAPIEvent(e)); err != nil {
				s.log.Debug("subscriber gone", zap.Error(err))
				return err
			}
		}
	}
}
