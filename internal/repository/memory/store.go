// Package memory contains an in-process implementation of the repository
// interfaces. The whole ledger is guarded by one RWMutex: mutations are
// totally ordered and reads observe consistent snapshots.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/repository"
)

type recordKey struct {
	payrollID uint64
	dataType  string
}

// Store implements PayrollRepository, PaymentRepository and RecordRepository.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	lastPayrollID uint64
	lastPaymentID uint64

	payrolls  map[uint64]*model.Payroll
	payments  map[uint64]*model.Payment
	byPayroll map[uint64][]uint64
	paid      map[uint64]map[model.Identity]struct{}
	records   map[recordKey]*model.EncryptedRecord
}

var (
	_ repository.PayrollRepository = (*Store)(nil)
	_ repository.PaymentRepository = (*Store)(nil)
	_ repository.RecordRepository  = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:       func() time.Time { return time.Now().UTC() },
		payrolls:  make(map[uint64]*model.Payroll),
		payments:  make(map[uint64]*model.Payment),
		byPayroll: make(map[uint64][]uint64),
		paid:      make(map[uint64]map[model.Identity]struct{}),
		records:   make(map[recordKey]*model.EncryptedRecord),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// allocPayrollID and allocPaymentID are the only writers of the id counters; callers hold mu.
func (s *Store) allocPayrollID() uint64 {
	s.lastPayrollID++
	return s.lastPayrollID
}

func (s *Store) allocPaymentID() uint64 {
	s.lastPaymentID++
	return s.lastPaymentID
}

// CreatePayroll stores a new active, unverified payroll.
func (s *Store) CreatePayroll(_ context.Context, employer model.Identity, name, description string) (*model.Payroll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &model.Payroll{
		ID:          s.allocPayrollID(),
		Employer:    employer,
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   s.now(),
	}
	s.payrolls[p.ID] = p
	out := *p
	return &out, nil
}

// GetPayroll returns a copy of the payroll.
func (s *Store) GetPayroll(_ context.Context, id uint64) (*model.Payroll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payrolls[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := *p
	return &out, nil
}

// ListPayrolls returns payrolls ordered by id.
func (s *Store) ListPayrolls(_ context.Context, employer model.Identity) ([]model.Payroll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Payroll, 0, len(s.payrolls))
	for _, p := range s.payrolls {
		if employer == "" || p.Employer == employer {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetVerified marks the payroll verified.
func (s *Store) SetVerified(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payrolls[id]
	if !ok {
		return false, errs.ErrNotFound
	}
	if p.IsVerified {
		return false, nil
	}
	p.IsVerified = true
	return true, nil
}

// Deactivate clears the active flag.
func (s *Store) Deactivate(_ context.Context, id uint64, caller model.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payrolls[id]
	if !ok {
		return false, errs.ErrNotFound
	}
	if p.Employer != caller {
		return false, errs.ErrUnauthorized
	}
	if !p.IsActive {
		return false, nil
	}
	p.IsActive = false
	return true, nil
}

// RecordPayment applies a payment and its counter side effects atomically.
func (s *Store) RecordPayment(_ context.Context, caller model.Identity, in model.NewPayment) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payrolls[in.PayrollID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if err := p.AdmitPayment(caller); err != nil {
		return nil, err
	}
	_, seen := s.paid[p.ID][in.Employee]
	employees, total, err := p.BumpCounters(!seen)
	if err != nil {
		return nil, err
	}

	pm := &model.Payment{
		ID:              s.allocPaymentID(),
		PayrollID:       p.ID,
		Employee:        in.Employee,
		EncryptedAmount: append(model.EncryptedBlob(nil), in.EncryptedAmount...),
		InputProof:      append([]byte(nil), in.InputProof...),
		CreatedAt:       s.now(),
	}
	s.payments[pm.ID] = pm
	s.byPayroll[p.ID] = append(s.byPayroll[p.ID], pm.ID)
	if !seen {
		if s.paid[p.ID] == nil {
			s.paid[p.ID] = make(map[model.Identity]struct{})
		}
		s.paid[p.ID][in.Employee] = struct{}{}
	}
	p.EmployeeCount, p.TotalAmount = employees, total

	out := clonePayment(pm)
	return &out, nil
}

// GetPayment returns a copy of the payment.
func (s *Store) GetPayment(_ context.Context, id uint64) (*model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pm, ok := s.payments[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := clonePayment(pm)
	return &out, nil
}

// ListPayments walks the per-payroll index.
func (s *Store) ListPayments(_ context.Context, payrollID uint64) ([]model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPayroll[payrollID]
	out := make([]model.Payment, 0, len(ids))
	for _, id := range ids {
		out = append(out, clonePayment(s.payments[id]))
	}
	return out, nil
}

// PutRecord upserts an encrypted blob.
func (s *Store) PutRecord(_ context.Context, caller model.Identity, payrollID uint64, dataType string, blob model.EncryptedBlob) (*model.EncryptedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payrolls[payrollID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if p.Employer != caller {
		return nil, errs.ErrUnauthorized
	}
	rec := &model.EncryptedRecord{
		PayrollID:  payrollID,
		DataType:   dataType,
		Ciphertext: append(model.EncryptedBlob(nil), blob...),
		StoredAt:   s.now(),
	}
	s.records[recordKey{payrollID, dataType}] = rec
	out := cloneRecord(rec)
	return &out, nil
}

// GetRecord returns a copy of the blob.
func (s *Store) GetRecord(_ context.Context, payrollID uint64, dataType string) (*model.EncryptedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey{payrollID, dataType}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

// ListDataTypes returns stored tags in lexical order.
func (s *Store) ListDataTypes(_ context.Context, payrollID uint64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for k := range s.records {
		if k.payrollID == payrollID {
			out = append(out, k.dataType)
		}
	}
	sort.Strings(out)
	return out, nil
}

func clonePayment(p *model.Payment) model.Payment {
	out := *p
	out.EncryptedAmount = append(model.EncryptedBlob(nil), p.EncryptedAmount...)
	out.InputProof = append([]byte(nil), p.InputProof...)
	return out
}

func cloneRecord(r *model.EncryptedRecord) model.EncryptedRecord {
	out := *r
	out.Ciphertext = append(model.EncryptedBlob(nil), r.Ciphertext...)
	return out
}
