// Package audit derives payment commitments and answers verification queries.
// It owns no state: every AuditRecord is computed on demand from a payment.
package audit

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/and161185/payroll-vault/internal/model"
)

const commitDomain = "payroll-vault/audit-commit/v1"

// Commit returns the 0x-prefixed Keccak-256 commitment over
// (payrollID, paymentID, employee, encryptedAmount).
func Commit(p model.Payment) string {
	return commit(p.PayrollID, p.ID, p.Employee, p.EncryptedAmount)
}

func commit(payrollID, paymentID uint64, employee model.Identity, ciphertext []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(commitDomain))
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], payrollID)
	h.Write(n[:])
	binary.BigEndian.PutUint64(n[:], paymentID)
	h.Write(n[:])
	writeField(h, []byte(employee))
	writeField(h, ciphertext)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes variable fields so that adjacent fields cannot shift into each other.
func writeField(h hash.Hash, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	h.Write(n[:])
	h.Write(b)
}

// FromPayment builds a pending audit record carrying a fresh commitment.
func FromPayment(p model.Payment) model.AuditRecord {
	return model.AuditRecord{
		PayrollID:       p.PayrollID,
		PaymentID:       p.ID,
		EmployeeID:      p.Employee,
		EncryptedAmount: append(model.EncryptedBlob(nil), p.EncryptedAmount...),
		Hash:            Commit(p),
		Timestamp:       p.CreatedAt,
		Status:          model.AuditPending,
	}
}

// Verify recomputes the commitment over the record's fields and compares it to
// the record's hash. Commitments are lowercase hex; any other spelling is a
// mismatch. A record without a hash never verifies.
func Verify(r model.AuditRecord) bool {
	if r.Hash == "" {
		return false
	}
	return r.Hash == commit(r.PayrollID, r.PaymentID, r.EmployeeID, r.EncryptedAmount)
}

// Check re-derives the verdict for r from scratch, ignoring any previous Status.
func Check(r model.AuditRecord) model.AuditRecord {
	switch {
	case r.Hash == "":
		r.Status, r.Verified = model.AuditPending, false
	case Verify(r):
		r.Status, r.Verified = model.AuditVerified, true
	default:
		r.Status, r.Verified = model.AuditMismatched, false
	}
	return r
}

// CheckAll applies Check to every record.
func CheckAll(records []model.AuditRecord) []model.AuditRecord {
	out := make([]model.AuditRecord, len(records))
	for i, r := range records {
		out[i] = Check(r)
	}
	return out
}

// Summarize describes a ciphertext by size and a short Keccak digest.
func Summarize(ciphertext []byte) model.AmountSummary {
	h := sha3.NewLegacyKeccak256()
	h.Write(ciphertext)
	return model.AmountSummary{
		Size:   len(ciphertext),
		Digest: hex.EncodeToString(h.Sum(nil)[:8]),
	}
}
