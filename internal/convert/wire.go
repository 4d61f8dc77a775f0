// Package convert maps domain entities to and from api wire messages.
package convert

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/payroll-vault/internal/api"
	"github.com/and161185/payroll-vault/internal/model"
)

// --- helpers ---

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// blob returns nil for empty ciphertexts so that absent and empty compare equal.
func blob(b []byte) model.EncryptedBlob {
	if len(b) == 0 {
		return nil
	}
	return model.EncryptedBlob(b)
}

// --- Payroll ---

// ToAPIPayroll converts a domain payroll to its wire form.
func ToAPIPayroll(p model.Payroll) *api.Payroll {
	return &api.Payroll{
		ID:            p.ID,
		Employer:      string(p.Employer),
		Name:          p.Name,
		Description:   p.Description,
		EmployeeCount: p.EmployeeCount,
		TotalAmount:   p.TotalAmount,
		IsActive:      p.IsActive,
		IsVerified:    p.IsVerified,
		CreatedAt:     utc(p.CreatedAt),
	}
}

// ToAPIPayrolls converts a list, never returning nil.
func ToAPIPayrolls(ps []model.Payroll) []api.Payroll {
	out := make([]api.Payroll, 0, len(ps))
	for _, p := range ps {
		out = append(out, *ToAPIPayroll(p))
	}
	return out
}

// --- Payment ---

func ToAPIPayment(p model.Payment) api.Payment {
	return api.Payment{
		ID:              p.ID,
		PayrollID:       p.PayrollID,
		Employee:        string(p.Employee),
		EncryptedAmount: []byte(p.EncryptedAmount),
		InputProof:      p.InputProof,
		CreatedAt:       utc(p.CreatedAt),
	}
}

func ToAPIPayments(ps []model.Payment) []api.Payment {
	out := make([]api.Payment, 0, len(ps))
	for _, p := range ps {
		out = append(out, ToAPIPayment(p))
	}
	return out
}

// FromAPIPayment is used by clients that decode ListPayments results.
func FromAPIPayment(p api.Payment) model.Payment {
	return model.Payment{
		ID:              p.ID,
		PayrollID:       p.PayrollID,
		Employee:        model.NewIdentity(p.Employee),
		EncryptedAmount: blob(p.EncryptedAmount),
		InputProof:      p.InputProof,
		CreatedAt:       p.CreatedAt,
	}
}

// --- Audit ---

func ToAPIAuditRecords(rs []model.AuditRecord) []api.AuditRecord {
	out := make([]api.AuditRecord, 0, len(rs))
	for _, r := range rs {
		out = append(out, api.AuditRecord{
			PayrollID:       r.PayrollID,
			PaymentID:       r.PaymentID,
			EmployeeID:      string(r.EmployeeID),
			EncryptedAmount: []byte(r.EncryptedAmount),
			Amount:          r.Amount,
			Hash:            r.Hash,
			Timestamp:       utc(r.Timestamp),
			Status:          string(r.Status),
			Verified:        r.Verified,
		})
	}
	return out
}

// FromAPIAuditRecords converts caller-supplied records. Unknown statuses are
// rejected; an empty status is read as pending.
func FromAPIAuditRecords(rs []api.AuditRecord) ([]model.AuditRecord, error) {
	out := make([]model.AuditRecord, 0, len(rs))
	for i, r := range rs {
		st := model.AuditStatus(r.Status)
		switch st {
		case "":
			st = model.AuditPending
		case model.AuditPending, model.AuditVerified, model.AuditMismatched:
		default:
			return nil, fmt.Errorf("record[%d]: unknown status %q", i, r.Status)
		}
		out = append(out, model.AuditRecord{
			PayrollID:       r.PayrollID,
			PaymentID:       r.PaymentID,
			EmployeeID:      model.Identity(r.EmployeeID),
			EncryptedAmount: blob(r.EncryptedAmount),
			Amount:          r.Amount,
			Hash:            r.Hash,
			Timestamp:       r.Timestamp,
			Status:          st,
			Verified:        r.Verified,
		})
	}
	return out, nil
}

// --- Events ---

func ToAPIEvent(e model.Event) *api.Event {
	out := &api.Event{
		Kind:      string(e.Kind),
		PayrollID: e.PayrollID,
		PaymentID: e.PaymentID,
		Employer:  string(e.Employer),
		Employee:  string(e.Employee),
		Name:      e.Name,
		DataType:  e.DataType,
		At:        utc(e.At),
	}
	if e.ID != uuid.Nil {
		out.ID = e.ID.String()
	}
	if e.Summary != nil {
		out.Summary = &api.AmountSummary{Size: e.Summary.Size, Digest: e.Summary.Digest}
	}
	return out
}

// FromAPIEvent is the inverse of ToAPIEvent; a malformed id is an error.
func FromAPIEvent(e *api.Event) (model.Event, error) {
	if e == nil {
		return model.Event{}, fmt.Errorf("nil event")
	}
	out := model.Event{
		Kind:      model.EventKind(e.Kind),
		PayrollID: e.PayrollID,
		PaymentID: e.PaymentID,
		Employer:  model.Identity(e.Employer),
		Employee:  model.Identity(e.Employee),
		Name:      e.Name,
		DataType:  e.DataType,
		At:        e.At,
	}
	if e.ID != "" {
		id, err := uuid.FromString(e.ID)
		if err != nil {
			return model.Event{}, fmt.Errorf("invalid event id: %w", err)
		}
		out.ID = id
	}
	if e.Summary != nil {
		out.Summary = &model.AmountSummary{Size: e.Summary.Size, Digest: e.Summary.Digest}
	}
	return out, nil
}
