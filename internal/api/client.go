package api

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a typed PayrollVault client. Every call requests the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func invoke[Resp any](ctx context.Context, c *Client, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	if err := c.cc.Invoke(ctx, Method(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePayroll(ctx context.Context, in *CreatePayrollRequest, opts ...grpc.CallOption) (*CreatePayrollResponse, error) {
	return invoke[CreatePayrollResponse](ctx, c, "CreatePayroll", in, opts)
}

func (c *Client) GetPayrollInfo(ctx context.Context, in *PayrollRef, opts ...grpc.CallOption) (*Payroll, error) {
	return invoke[Payroll](ctx, c, "GetPayrollInfo", in, opts)
}

func (c *Client) SetVerified(ctx context.Context, in *PayrollRef, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "SetVerified", in, opts)
}

func (c *Client) Deactivate(ctx context.Context, in *PayrollRef, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "Deactivate", in, opts)
}

func (c *Client) ListPayrolls(ctx context.Context, in *ListPayrollsRequest, opts ...grpc.CallOption) (*ListPayrollsResponse, error) {
	return invoke[ListPayrollsResponse](ctx, c, "ListPayrolls", in, opts)
}

func (c *Client) ProcessPayment(ctx context.Context, in *ProcessPaymentRequest, opts ...grpc.CallOption) (*ProcessPaymentResponse, error) {
	return invoke[ProcessPaymentResponse](ctx, c, "ProcessPayment", in, opts)
}

func (c *Client) ListPayments(ctx context.Context, in *PayrollRef, opts ...grpc.CallOption) (*ListPaymentsResponse, error) {
	return invoke[ListPaymentsResponse](ctx, c, "ListPayments", in, opts)
}

func (c *Client) EncryptAndStoreData(ctx context.Context, in *StoreDataRequest, opts ...grpc.CallOption) (*StoreDataResponse, error) {
	return invoke[StoreDataResponse](ctx, c, "EncryptAndStoreData", in, opts)
}

func (c *Client) GetEncryptedData(ctx context.Context, in *GetDataRequest, opts ...grpc.CallOption) (*GetDataResponse, error) {
	return invoke[GetDataResponse](ctx, c, "GetEncryptedData", in, opts)
}

func (c *Client) ListDataTypes(ctx context.Context, in *PayrollRef, opts ...grpc.CallOption) (*ListDataTypesResponse, error) {
	return invoke[ListDataTypesResponse](ctx, c, "ListDataTypes", in, opts)
}

func (c *Client) ExportAudit(ctx context.Context, in *ExportAuditRequest, opts ...grpc.CallOption) (*AuditRecords, error) {
	return invoke[AuditRecords](ctx, c, "ExportAudit", in, opts)
}

func (c *Client) VerifyAudit(ctx context.Context, in *VerifyAuditRequest, opts ...grpc.CallOption) (*AuditRecords, error) {
	return invoke[AuditRecords](ctx, c, "VerifyAudit", in, opts)
}

func (c *Client) ExportAuditReport(ctx context.Context, in *ExportAuditReportRequest, opts ...grpc.CallOption) (*ExportAuditReportResponse, error) {
	return invoke[ExportAuditReportResponse](ctx, c, "ExportAuditReport", in, opts)
}

// EventReceiver is the client side of Subscribe.
type EventReceiver interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type eventReceiver struct{ grpc.ClientStream }

func (r *eventReceiver) Recv() (*Event, error) {
	e := new(Event)
	if err := r.ClientStream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Subscribe opens the event stream.
func (c *Client) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (EventReceiver, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], Method("Subscribe"), opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &eventReceiver{stream}, nil
}
