package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "payrollvault.v1.PayrollVault"

// Method returns the full method path of an RPC.
func Method(name string) string { return "/" + ServiceName + "/" + name }

// PayrollVaultServer is implemented by the transport adapter.
type PayrollVaultServer interface {
	CreatePayroll(context.Context, *CreatePayrollRequest) (*CreatePayrollResponse, error)
	GetPayrollInfo(context.Context, *PayrollRef) (*Payroll, error)
	SetVerified(context.Context, *PayrollRef) (*Empty, error)
	Deactivate(context.Context, *PayrollRef) (*Empty, error)
	ListPayrolls(context.Context, *ListPayrollsRequest) (*ListPayrollsResponse, error)
	ProcessPayment(context.Context, *ProcessPaymentRequest) (*ProcessPaymentResponse, error)
	ListPayments(context.Context, *PayrollRef) (*ListPaymentsResponse, error)
	EncryptAndStoreData(context.Context, *StoreDataRequest) (*StoreDataResponse, error)
	GetEncryptedData(context.Context, *GetDataRequest) (*GetDataResponse, error)
	ListDataTypes(context.Context, *PayrollRef) (*ListDataTypesResponse, error)
	ExportAudit(context.Context, *ExportAuditRequest) (*AuditRecords, error)
	VerifyAudit(context.Context, *VerifyAuditRequest) (*AuditRecords, error)
	ExportAuditReport(context.Context, *ExportAuditReportRequest) (*ExportAuditReportResponse, error)
	Subscribe(*SubscribeRequest, EventStream) error
}

// EventStream is the server side of Subscribe.
type EventStream interface {
	Send(*Event) error
	grpc.ServerStream
}

type eventStream struct{ grpc.ServerStream }

func (s *eventStream) Send(e *Event) error { return s.ServerStream.SendMsg(e) }

// RegisterPayrollVaultServer registers srv on s.
func RegisterPayrollVaultServer(s grpc.ServiceRegistrar, srv PayrollVaultServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(PayrollVaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := Method(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PayrollVaultServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: full}, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PayrollVaultServer).Subscribe(in, &eventStream{stream})
}

// ServiceDesc describes the PayrollVault service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PayrollVaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreatePayroll", PayrollVaultServer.CreatePayroll),
		unary("GetPayrollInfo", PayrollVaultServer.GetPayrollInfo),
		unary("SetVerified", PayrollVaultServer.SetVerified),
		unary("Deactivate", PayrollVaultServer.Deactivate),
		unary("ListPayrolls", PayrollVaultServer.ListPayrolls),
		unary("ProcessPayment", PayrollVaultServer.ProcessPayment),
		unary("ListPayments", PayrollVaultServer.ListPayments),
		unary("EncryptAndStoreData", PayrollVaultServer.EncryptAndStoreData),
		unary("GetEncryptedData", PayrollVaultServer.GetEncryptedData),
		unary("ListDataTypes", PayrollVaultServer.ListDataTypes),
		unary("ExportAudit", PayrollVaultServer.ExportAudit),
		unary("VerifyAudit", PayrollVaultServer.VerifyAudit),
		unary("ExportAuditReport", PayrollVaultServer.ExportAuditReport),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "payrollvault/v1/payrollvault.json",
}
