package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/proof"
)

func TestProcessPayment_EndToEnd_Q1Eng(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	id, err := f.payrolls.CreatePayroll(ctx, employer, "Q1-Eng", "Engineering Q1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paymentID, err := f.payments.ProcessPayment(ctx, employer, id, "emp-001", model.EncryptedBlob("ctA"), goodProof)
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if paymentID != 1 {
		t.Fatalf("want paymentId 1, got %d", paymentID)
	}
	p, _ := f.payrolls.GetPayrollInfo(ctx, id)
	if p.EmployeeCount != 1 {
		t.Fatalf("want employeeCount 1, got %d", p.EmployeeCount)
	}

	_, err = f.payments.ProcessPayment(ctx, employer, id, "emp-002", model.EncryptedBlob("ctB"), badProof)
	if !errors.Is(err, errs.ErrInvalidProof) {
		t.Fatalf("want ErrInvalidProof, got %v", err)
	}
	p, _ = f.payrolls.GetPayrollInfo(ctx, id)
	if p.EmployeeCount != 1 {
		t.Fatalf("employeeCount must stay 1, got %d", p.EmployeeCount)
	}

	if err := f.payrolls.SetVerified(ctx, verifier, id); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	p, _ = f.payrolls.GetPayrollInfo(ctx, id)
	if !p.IsVerified {
		t.Fatalf("want isVerified")
	}

	want := []model.EventKind{model.EventPayrollCreated, model.EventPaymentProcessed, model.EventPayrollVerified}
	got := f.events.kinds()
	if len(got) != len(want) {
		t.Fatalf("events: want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events: want %v, got %v", want, got)
		}
	}
}

func TestProcessPayment_InvalidProofHasNoSideEffects(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")

	for i := 0; i < 3; i++ {
		if _, err := f.payments.ProcessPayment(ctx, employer, id, "emp-001", model.EncryptedBlob("ct"), badProof); !errors.Is(err, errs.ErrInvalidProof) {
			t.Fatalf("want ErrInvalidProof, got %v", err)
		}
	}
	p, _ := f.payrolls.GetPayrollInfo(ctx, id)
	if p.EmployeeCount != 0 || p.TotalAmount != 0 {
		t.Fatalf("counters mutated: %+v", p)
	}
	if list, _ := f.payments.ListPayments(ctx, id); len(list) != 0 {
		t.Fatalf("payments stored on invalid proof")
	}
	if got := f.mustPay(t, id, "emp-001", "ct"); got != 1 {
		t.Fatalf("invalid proofs must not consume ids, got %d", got)
	}
}

func TestProcessPayment_InactiveRegardlessOfProof(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")
	if err := f.payrolls.Deactivate(ctx, employer, id); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	for _, pf := range [][]byte{goodProof, badProof, nil} {
		for _, caller := range []model.Identity{employer, stranger} {
			_, err := f.payments.ProcessPayment(ctx, caller, id, "emp-001", model.EncryptedBlob("ct"), pf)
			if !errors.Is(err, errs.ErrPayrollInactive) {
				t.Fatalf("caller %s proof %q: want ErrPayrollInactive, got %v", caller, pf, err)
			}
		}
	}
	if f.verifier.count() != 0 {
		t.Fatalf("verifier must not run for inactive payrolls")
	}
}

func TestProcessPayment_CheckOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")

	if _, err := f.payments.ProcessPayment(ctx, employer, 404, "emp", model.EncryptedBlob("ct"), goodProof); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := f.payments.ProcessPayment(ctx, stranger, id, "emp", model.EncryptedBlob("ct"), goodProof); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := f.payments.ProcessPayment(ctx, employer, id, "", model.EncryptedBlob("ct"), goodProof); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	if f.verifier.count() != 0 {
		t.Fatalf("verifier must run after the authorization checks")
	}
}

func TestProcessPayment_ProofContextBindsPayrollAndEmployee(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	id := f.mustPayroll(t, "Q1")
	f.mustPay(t, id, "emp-007", "ct")

	if !bytes.Equal(f.verifier.lastCtx, proof.PaymentContext(id, "emp-007")) {
		t.Fatalf("unexpected proof context %x", f.verifier.lastCtx)
	}
}

func TestProcessPayment_CountersAndEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")

	f.mustPay(t, id, "emp-001", "a")
	f.mustPay(t, id, "emp-002", "b")
	third := f.mustPay(t, id, "emp-001", "c")

	p, _ := f.payrolls.GetPayrollInfo(ctx, id)
	if p.EmployeeCount != 2 || p.TotalAmount != 3 {
		t.Fatalf("want 2 employees / 3 disbursements, got %+v", p)
	}

	e := f.events.last()
	if e.Kind != model.EventPaymentProcessed || e.PaymentID != third || e.PayrollID != id || e.Employee != "emp-001" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.Summary == nil || e.Summary.Size != 1 || e.Summary.Digest == "" {
		t.Fatalf("want ciphertext summary, got %+v", e.Summary)
	}

	list, err := f.payments.ListPayments(ctx, id)
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	if _, err := f.payments.ListPayments(ctx, 404); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestProcessPayment_OverflowIsLoggedAndSurfaced(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.ErrorLevel)
	f := newFixture(t, fixtureOpts{log: zap.New(core)})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")

	for i := 0; i < model.MaxCounter; i++ {
		f.mustPay(t, id, "emp-001", "x")
	}
	_, err := f.payments.ProcessPayment(ctx, employer, id, "emp-001", model.EncryptedBlob("x"), goodProof)
	if !errors.Is(err, errs.ErrCounterOverflow) {
		t.Fatalf("want ErrCounterOverflow, got %v", err)
	}
	p, _ := f.payrolls.GetPayrollInfo(ctx, id)
	if p.TotalAmount != model.MaxCounter {
		t.Fatalf("counter must not wrap or clamp past max, got %d", p.TotalAmount)
	}
	if logs.FilterMessage("payroll counter overflow").Len() != 1 {
		t.Fatalf("overflow must be logged at error level")
	}
}

func TestProcessPayment_RateLimited(t *testing.T) {
	t.Parallel()
	lim := &fakeLimiter{allow: false, retry: 90 * time.Second}
	f := newFixture(t, fixtureOpts{lim: lim})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")

	_, err := f.payments.ProcessPayment(ctx, employer, id, "emp", model.EncryptedBlob("ct"), goodProof)
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if f.verifier.count() != 0 {
		t.Fatalf("blocked callers must not reach the verifier")
	}

	lim.allow = true
	if _, err := f.payments.ProcessPayment(ctx, employer, id, "emp", model.EncryptedBlob("ct"), badProof); !errors.Is(err, errs.ErrInvalidProof) {
		t.Fatalf("want ErrInvalidProof, got %v", err)
	}
	if lim.failures != 1 {
		t.Fatalf("want failure recorded, got %d", lim.failures)
	}
	f.mustPay(t, id, "emp", "ct")
	if lim.successes != 1 {
		t.Fatalf("want success recorded, got %d", lim.successes)
	}
}

func TestProcessPayment_ConcurrentUniqueIDs(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	a := f.mustPayroll(t, "A")
	b := f.mustPayroll(t, "B")

	const n = 50
	ids := make(chan uint64, 2*n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, pid := range []uint64{a, b} {
			wg.Add(1)
			go func(pid uint64) {
				defer wg.Done()
				id, err := f.payments.ProcessPayment(ctx, employer, pid, "emp", model.EncryptedBlob("ct"), goodProof)
				if err != nil {
					t.Errorf("pay: %v", err)
					return
				}
				ids <- id
			}(pid)
		}
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate payment id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != 2*n {
		t.Fatalf("want %d ids, got %d", 2*n, len(seen))
	}
	pa, _ := f.payrolls.GetPayrollInfo(ctx, a)
	pb, _ := f.payrolls.GetPayrollInfo(ctx, b)
	if pa.TotalAmount != n || pb.TotalAmount != n {
		t.Fatalf("counters: %d %d", pa.TotalAmount, pb.TotalAmount)
	}
}
