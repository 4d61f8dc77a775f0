// Package model defines domain entities used by services and repositories.
package model

import (
	"math"
	"strings"
	"time"

	"github.com/and161185/payroll-vault/internal/errs"
)

// MaxCounter is the upper bound of the per-payroll summary counters.
const MaxCounter = math.MaxUint8

// Identity is an opaque caller identity (typically a wallet address).
type Identity string

// NewIdentity trims the raw value and lowercases 0x-prefixed hex addresses so
// that checksummed and plain spellings compare equal.
func NewIdentity(raw string) Identity {
	s := strings.TrimSpace(raw)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = strings.ToLower(s)
	}
	return Identity(s)
}

// EncryptedBlob is an opaque ciphertext produced on the client side.
type EncryptedBlob []byte

// Payroll is an employer-owned batch context under which payments are issued.
type Payroll struct {
	ID            uint64
	Employer      Identity
	Name          string
	Description   string
	EmployeeCount uint8 // distinct employees paid in this run
	TotalAmount   uint8 // disbursements recorded in this run
	IsActive      bool
	IsVerified    bool // false -> true once, verifier only
	CreatedAt     time.Time
}

// AdmitPayment reports whether caller may add a payment to this payroll.
// Inactivity is checked first so a deactivated run always reports ErrPayrollInactive.
func (p *Payroll) AdmitPayment(caller Identity) error {
	if !p.IsActive {
		return errs.ErrPayrollInactive
	}
	if p.Employer != caller {
		return errs.ErrUnauthorized
	}
	return nil
}

// BumpCounters returns the summary counters after one more disbursement.
// newEmployee is true when the payee has not been paid in this run before.
func (p *Payroll) BumpCounters(newEmployee bool) (employees, total uint8, err error) {
	e, t := int(p.EmployeeCount), int(p.TotalAmount)+1
	if newEmployee {
		e++
	}
	if e > MaxCounter || t > MaxCounter {
		return p.EmployeeCount, p.TotalAmount, errs.ErrCounterOverflow
	}
	return uint8(e), uint8(t), nil
}

// NewPayment is a payment intent already admitted by the proof verifier.
type NewPayment struct {
	PayrollID       uint64
	Employee        Identity
	EncryptedAmount EncryptedBlob
	InputProof      []byte
}

// Payment is a single encrypted disbursement tied to one employee within a payroll.
type Payment struct {
	ID              uint64 // process-wide unique
	PayrollID       uint64 // non-owning reference
	Employee        Identity
	EncryptedAmount EncryptedBlob
	InputProof      []byte
	CreatedAt       time.Time
}

// EncryptedRecord is an opaque metadata blob keyed by (PayrollID, DataType).
type EncryptedRecord struct {
	PayrollID  uint64
	DataType   string
	Ciphertext EncryptedBlob
	StoredAt   time.Time
}

// AuditStatus is the verification state of an AuditRecord.
type AuditStatus string

const (
	AuditPending    AuditStatus = "pending"
	AuditVerified   AuditStatus = "verified"
	AuditMismatched AuditStatus = "mismatched"
)

// AuditRecord is a derived, non-authoritative view of a payment used by auditors.
type AuditRecord struct {
	PayrollID       uint64
	PaymentID       uint64
	EmployeeID      Identity
	EncryptedAmount EncryptedBlob
	Amount          string // disclosed plaintext; empty unless disclosed through an authorized channel
	Hash            string
	Timestamp       time.Time
	Status          AuditStatus
	Verified        bool
}
