package model

import (
	"errors"
	"testing"

	"github.com/and161185/payroll-vault/internal/errs"
)

func TestNewIdentity_Normalizes(t *testing.T) {
	t.Parallel()

	if got := NewIdentity("  0xAbCd  "); got != "0xabcd" {
		t.Fatalf("hex address: got %q", got)
	}
	if got := NewIdentity(" emp-001 "); got != "emp-001" {
		t.Fatalf("plain id: got %q", got)
	}
	if got := NewIdentity("EMP"); got != "EMP" {
		t.Fatalf("non-hex ids keep case: got %q", got)
	}
}

func TestPayroll_AdmitPayment(t *testing.T) {
	t.Parallel()

	p := &Payroll{Employer: "boss", IsActive: true}
	if err := p.AdmitPayment("boss"); err != nil {
		t.Fatalf("employer must be admitted: %v", err)
	}
	if err := p.AdmitPayment("mallory"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
	p.IsActive = false
	if err := p.AdmitPayment("mallory"); !errors.Is(err, errs.ErrPayrollInactive) {
		t.Fatalf("inactive must win over unauthorized, got %v", err)
	}
}

func TestPayroll_BumpCounters(t *testing.T) {
	t.Parallel()

	p := &Payroll{EmployeeCount: 1, TotalAmount: 1}
	e, tot, err := p.BumpCounters(false)
	if err != nil || e != 1 || tot != 2 {
		t.Fatalf("repeat payee: e=%d t=%d err=%v", e, tot, err)
	}
	e, tot, err = p.BumpCounters(true)
	if err != nil || e != 2 || tot != 2 {
		t.Fatalf("new payee: e=%d t=%d err=%v", e, tot, err)
	}

	full := &Payroll{EmployeeCount: 10, TotalAmount: MaxCounter}
	if _, _, err := full.BumpCounters(false); !errors.Is(err, errs.ErrCounterOverflow) {
		t.Fatalf("want overflow, got %v", err)
	}
	emp := &Payroll{EmployeeCount: MaxCounter, TotalAmount: 3}
	if _, _, err := emp.BumpCounters(true); !errors.Is(err, errs.ErrCounterOverflow) {
		t.Fatalf("want employee overflow, got %v", err)
	}
}
