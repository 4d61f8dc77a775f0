package grpcserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/payroll-vault/internal/api"
	"github.com/and161185/payroll-vault/internal/model"
)

var errNoToken = errors.New("no bearer token")

// publicMethods may be called without a token. A token, when sent, must still be valid.
var publicMethods = map[string]bool{
	api.Method("GetPayrollInfo"):   true,
	api.Method("ListPayrolls"):     true,
	api.Method("ListPayments"):     true,
	api.Method("GetEncryptedData"): true,
	api.Method("ListDataTypes"):    true,
	api.Method("VerifyAudit"):      true,
	api.Method("Subscribe"):        true,
}

// Auth verifies HS256 bearer tokens and puts the `sub` claim into the
// context as the caller identity.
type Auth struct {
	signKey []byte
}

// NewAuth constructs an authenticator for the given signing key.
func NewAuth(signKey []byte) *Auth { return &Auth{signKey: signKey} }

// Unary returns the unary auth interceptor.
func (a *Auth) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		ctx, err := a.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// Stream returns the stream auth interceptor.
func (a *Auth) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		ctx, err := a.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return next(srv, &ctxStream{ServerStream: ss, ctx: ctx})
	}
}

type ctxStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *ctxStream) Context() context.Context { return s.ctx }

func (a *Auth) authenticate(ctx context.Context, method string) (context.Context, error) {
	// health, reflection and other foreign services are not ours to gate
	if !strings.HasPrefix(method, "/"+api.ServiceName+"/") {
		return ctx, nil
	}
	id, err := a.callerFromMD(ctx)
	switch {
	case err == nil:
		return WithCaller(ctx, id), nil
	case errors.Is(err, errNoToken) && publicMethods[method]:
		return ctx, nil
	default:
		return ctx, status.Error(codes.Unauthenticated, "no auth")
	}
}

// callerFromMD: extract "authorization: Bearer <JWT>", verify HS256, return sub.
func (a *Auth) callerFromMD(ctx context.Context) (model.Identity, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return "", err
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return a.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid token")
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return "", errors.New("token expired or not valid yet")
	}

	id := model.NewIdentity(claims.Subject)
	if id == "" {
		return "", errors.New("empty subject")
	}
	return id, nil
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errNoToken
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return "", errNoToken
	}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("malformed authorization header")
}
