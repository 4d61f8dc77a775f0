// Package proof provides the capability that checks opaque (ciphertext, proof)
// pairs against the context they are claimed for. The ledger core only sees
// the boolean outcome and never inspects ciphertext contents.
package proof

import (
	"encoding/binary"

	"github.com/and161185/payroll-vault/internal/model"
)

// Verifier validates an opaque ciphertext/proof pair for a context.
// Implementations must be pure and safe for concurrent use.
type Verifier interface {
	Verify(ciphertext, proof, context []byte) bool
}

// VerifierFunc adapts a plain function to Verifier.
type VerifierFunc func(ciphertext, proof, context []byte) bool

// Verify calls f.
func (f VerifierFunc) Verify(ciphertext, proof, context []byte) bool { return f(ciphertext, proof, context) }

const (
	tagPayment byte = 'P'
	tagData    byte = 'D'
)

// PaymentContext binds an encrypted amount to payrollID‖employee.
func PaymentContext(payrollID uint64, employee model.Identity) []byte {
	return encodeContext(tagPayment, payrollID, []byte(employee))
}

// DataContext binds an encrypted metadata blob to payrollID‖dataType.
func DataContext(payrollID uint64, dataType string) []byte {
	return encodeContext(tagData, payrollID, []byte(dataType))
}

// encodeContext is tag || be64(payrollID) || be32(len(tail)) || tail.
// The tag keeps a payment proof from being replayed as a data proof.
func encodeContext(tag byte, payrollID uint64, tail []byte) []byte {
	out := make([]byte, 0, 1+8+4+len(tail))
	out = append(out, tag)
	out = binary.BigEndian.AppendUint64(out, payrollID)
	out = binary.BigEndian.AppendUint32(out, uint32(len(tail)))
	return append(out, tail...)
}
