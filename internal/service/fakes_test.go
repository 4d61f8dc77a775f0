package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/payroll-vault/internal/audit"
	"github.com/and161185/payroll-vault/internal/identity"
	"github.com/and161185/payroll-vault/internal/limiter"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/proof"
	"github.com/and161185/payroll-vault/internal/repository/memory"
)

const (
	employer = model.Identity("0xe4910e4")
	verifier = model.Identity("0x7e41f1e4")
	stranger = model.Identity("0x5742a")
)

var (
	goodProof = []byte("good")
	badProof  = []byte("bad")
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(e model.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []model.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) last() model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// fakeVerifier accepts goodProof and remembers what it was asked.
type fakeVerifier struct {
	mu      sync.Mutex
	calls   int
	lastCtx []byte
}

func (v *fakeVerifier) Verify(ciphertext, pf, pctx []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.lastCtx = append([]byte(nil), pctx...)
	return string(pf) == string(goodProof)
}

func (v *fakeVerifier) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

var _ proof.Verifier = (*fakeVerifier)(nil)

type fakeLimiter struct {
	allow     bool
	retry     time.Duration
	failures  int
	successes int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return l.allow, l.retry, nil
}
func (l *fakeLimiter) Success(context.Context, string) error { l.successes++; return nil }
func (l *fakeLimiter) Failure(context.Context, string) (bool, time.Duration, error) {
	l.failures++
	return false, 0, nil
}

type fakeWriter struct {
	got audit.Report
	loc string
	err error
}

func (w *fakeWriter) WriteReport(_ context.Context, rep audit.Report) (string, error) {
	w.got = rep
	return w.loc, w.err
}

type fixture struct {
	store    *memory.Store
	gate     *identity.Gate
	events   *recorder
	verifier *fakeVerifier

	payrolls *PayrollServiceImpl
	payments *PaymentServiceImpl
	data     *DataServiceImpl
	audit    *AuditServiceImpl
}

type fixtureOpts struct {
	lim    limiter.Limiter
	disc   Discloser
	writer ReportWriter
	log    *zap.Logger
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	if o.log == nil {
		o.log = zaptest.NewLogger(t)
	}
	f := &fixture{
		store:    memory.New(),
		events:   &recorder{},
		verifier: &fakeVerifier{},
	}
	f.gate = identity.NewGate(verifier, f.store)
	f.payrolls = NewPayrollService(f.store, f.gate, f.events)
	f.payments = NewPaymentService(f.store, f.store, f.verifier, o.lim, f.events, o.log)
	f.data = NewDataService(f.store, f.gate, f.verifier, o.lim, f.events, o.log)
	f.audit = NewAuditService(f.store, f.gate, o.disc, o.writer, o.log)
	return f
}

func (f *fixture) mustPayroll(t *testing.T, name string) uint64 {
	t.Helper()
	id, err := f.payrolls.CreatePayroll(context.Background(), employer, name, "engineering run")
	if err != nil {
		t.Fatalf("create payroll: %v", err)
	}
	return id
}

func (f *fixture) mustPay(t *testing.T, payrollID uint64, employee model.Identity, ct string) uint64 {
	t.Helper()
	id, err := f.payments.ProcessPayment(context.Background(), employer, payrollID, employee, model.EncryptedBlob(ct), goodProof)
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	return id
}
