package grpcserver

import (
	"context"
	"testing"

	"github.com/and161185/payroll-vault/internal/model"
)

func TestWithCaller_And_CallerFromCtx(t *testing.T) {
	t.Parallel()

	if id, ok := CallerFromCtx(context.Background()); ok || id != "" {
		t.Fatalf("expected no caller in empty ctx")
	}

	ctx := WithCaller(context.Background(), model.Identity("0xalice"))
	got, ok := CallerFromCtx(ctx)
	if !ok || got != "0xalice" {
		t.Fatalf("mismatch: got %q ok=%v", got, ok)
	}

	if _, ok := CallerFromCtx(WithCaller(context.Background(), "")); ok {
		t.Fatalf("empty identity must not count as a caller")
	}

	bad := context.WithValue(context.Background(), callerKey, "plain-string")
	if _, ok := CallerFromCtx(bad); ok {
		t.Fatalf("expected miss on wrong typed value")
	}
}
