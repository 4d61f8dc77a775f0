package api

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodecRegistered(t *testing.T) {
	t.Parallel()

	c := encoding.GetCodec(Codec)
	require.NotNil(t, c)

	in := &ProcessPaymentRequest{PayrollID: 7, Employee: "0xbob", EncryptedAmount: []byte{0, 1, 2}, InputProof: []byte("p")}
	b, err := c.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(b), `"payrollId":7`)

	var out ProcessPaymentRequest
	require.NoError(t, c.Unmarshal(b, &out))
	require.Equal(t, *in, out)
}

func TestServiceDesc(t *testing.T) {
	t.Parallel()

	want := []string{
		"CreatePayroll", "GetPayrollInfo", "SetVerified", "Deactivate", "ListPayrolls",
		"ProcessPayment", "ListPayments", "EncryptAndStoreData", "GetEncryptedData",
		"ListDataTypes", "ExportAudit", "VerifyAudit", "ExportAuditReport",
	}
	var got []string
	for _, m := range ServiceDesc.Methods {
		got = append(got, m.MethodName)
	}
	require.Equal(t, want, got)
	require.Len(t, ServiceDesc.Streams, 1)
	require.True(t, ServiceDesc.Streams[0].ServerStreams)
	require.Equal(t, "/payrollvault.v1.PayrollVault/Subscribe", Method("Subscribe"))
}
