package service

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/payroll-vault/internal/audit"
	"github.com/and161185/payroll-vault/internal/crypto/sealer"
	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/model"
)

func sealedPayment(t *testing.T, f *fixture, master []byte, payrollID uint64, employee model.Identity, amount string) uint64 {
	t.Helper()
	ct, err := sealer.SealAmount(master, payrollID, employee, amount)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	id, err := f.payments.ProcessPayment(context.Background(), employer, payrollID, employee, ct, goodProof)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	return id
}

func TestAuditExport_Authorization(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")
	f.mustPay(t, id, "emp-001", "a")

	if _, err := f.audit.Export(ctx, stranger, id, ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := f.audit.Export(ctx, employer, 404, ""); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	for _, who := range []model.Identity{employer, verifier} {
		recs, err := f.audit.Export(ctx, who, id, "")
		if err != nil || len(recs) != 1 {
			t.Fatalf("%s: %v %d", who, err, len(recs))
		}
		if recs[0].Status != model.AuditPending || recs[0].Hash == "" || recs[0].Amount != "" {
			t.Fatalf("%s: unexpected record %+v", who, recs[0])
		}
	}
}

func TestAuditExport_DisclosesToVerifierOnly(t *testing.T) {
	t.Parallel()
	master, err := sealer.NewMasterKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	f := newFixture(t, fixtureOpts{disc: sealer.NewDiscloser(master)})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")
	sealedPayment(t, f, master, id, "emp-001", "4200")
	f.mustPay(t, id, "emp-002", "not-sealed")

	recs, err := f.audit.Export(ctx, verifier, id, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if recs[0].Amount != "4200" {
		t.Fatalf("verifier must see the amount, got %q", recs[0].Amount)
	}
	if recs[1].Amount != "" {
		t.Fatalf("undecryptable amount must stay hidden, got %q", recs[1].Amount)
	}

	recs, err = f.audit.Export(ctx, employer, id, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if recs[0].Amount != "" {
		t.Fatalf("employer export must not disclose, got %q", recs[0].Amount)
	}
}

func TestAuditExport_SearchAndVerify(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")
	f.mustPay(t, id, "emp-001", "a")
	f.mustPay(t, id, "emp-002", "b")

	recs, err := f.audit.Export(ctx, employer, id, "EMP-002")
	if err != nil || len(recs) != 1 || recs[0].EmployeeID != "emp-002" {
		t.Fatalf("search: %v %+v", err, recs)
	}

	all, _ := f.audit.Export(ctx, employer, id, "")
	checked := f.audit.Verify(all)
	for _, r := range checked {
		if r.Status != model.AuditVerified || !r.Verified {
			t.Fatalf("want verified: %+v", r)
		}
	}

	checked[0].EncryptedAmount = model.EncryptedBlob("forged")
	again := f.audit.Verify(checked)
	if again[0].Status != model.AuditMismatched || again[0].Verified {
		t.Fatalf("tampered record must mismatch: %+v", again[0])
	}
	if again[1].Status != model.AuditVerified {
		t.Fatalf("untouched record must stay verified")
	}
}

func TestAuditReport(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{loc: "file:///tmp/report.json"}
	f := newFixture(t, fixtureOpts{writer: w})
	ctx := context.Background()
	id := f.mustPayroll(t, "Q1")
	f.mustPay(t, id, "emp-001", "a")
	f.mustPay(t, id, "emp-002", "b")

	rep, err := f.audit.Report(ctx, employer, id)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.PayrollID != id || len(rep.Entries) != 2 || rep.Root == "" {
		t.Fatalf("bad report: %+v", rep)
	}
	want := audit.MerkleRoot([]string{
		audit.Leaf(rep.Entries[0].Hash, rep.Entries[0].Amount, rep.Entries[0].Timestamp),
		audit.Leaf(rep.Entries[1].Hash, rep.Entries[1].Amount, rep.Entries[1].Timestamp),
	})
	if rep.Root != want {
		t.Fatalf("root mismatch")
	}

	loc, err := f.audit.PublishReport(ctx, employer, id)
	if err != nil || loc != w.loc {
		t.Fatalf("publish: %q %v", loc, err)
	}
	if w.got.Root != rep.Root {
		t.Fatalf("writer got a different report")
	}

	if _, err := f.audit.PublishReport(ctx, stranger, id); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestAuditPublishReport_NoSink(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixtureOpts{})
	id := f.mustPayroll(t, "Q1")
	if _, err := f.audit.PublishReport(context.Background(), employer, id); !errors.Is(err, ErrNoReportSink) {
		t.Fatalf("want ErrNoReportSink, got %v", err)
	}
}
