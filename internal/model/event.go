package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// EventKind names a ledger notification.
type EventKind string

const (
	EventPayrollCreated      EventKind = "PayrollCreated"
	EventPaymentProcessed    EventKind = "PaymentProcessed"
	EventEncryptedDataStored EventKind = "EncryptedDataStored"
	EventPayrollVerified     EventKind = "PayrollVerified"
	EventPayrollDeactivated  EventKind = "PayrollDeactivated"
)

// AmountSummary describes a ciphertext without revealing the amount.
type AmountSummary struct {
	Size   int    // ciphertext length in bytes
	Digest string // short hex digest of the ciphertext
}

// Event is a structured, fire-and-forget ledger notification.
// Fields irrelevant to Kind are left zero.
type Event struct {
	ID        uuid.UUID
	Kind      EventKind
	PayrollID uint64
	PaymentID uint64
	Employer  Identity
	Employee  Identity
	Name      string
	DataType  string
	Summary   *AmountSummary
	At        time.Time
}
