package grpcserver

import (
	"context"

	"github.com/and161185/payroll-vault/internal/model"
)

type ctxKey string

const callerKey ctxKey = "pv.caller"

// WithCaller stores the authenticated caller identity in context.
func WithCaller(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, callerKey, id)
}

// CallerFromCtx fetches the caller identity from context.
func CallerFromCtx(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(callerKey).(model.Identity)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
