// Command payroll-vault starts the confidential payroll ledger gRPC server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/payroll-vault/internal/api"
	"github.com/and161185/payroll-vault/internal/config"
	"github.com/and161185/payroll-vault/internal/events"
	"github.com/and161185/payroll-vault/internal/identity"
	"github.com/and161185/payroll-vault/internal/model"
	grpcserver "github.com/and161185/payroll-vault/internal/server/grpc"
	"github.com/and161185/payroll-vault/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	verifier, err := newVerifier(cfg.Attesters)
	if err != nil {
		return err
	}
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	disc, err := newDiscloser(cfg.DisclosureKey)
	if err != nil {
		return err
	}
	writer, err := newReportWriter(ctx, cfg.Report)
	if err != nil {
		return err
	}

	bus := events.NewBus(logger.Named("events"))
	gate := identity.NewGate(model.NewIdentity(cfg.Verifier), st.payrolls)

	// Services
	app := grpcserver.New(grpcserver.Services{
		Payrolls:    service.NewPayrollService(st.payrolls, gate, bus),
		Payments:    service.NewPaymentService(st.payrolls, st.payments, verifier, st.lim, bus, logger.Named("payments")),
		Data:        service.NewDataService(st.records, gate, verifier, st.lim, bus, logger.Named("data")),
		Audit:       service.NewAuditService(st.payments, gate, disc, writer, logger.Named("audit")),
		Events:      bus,
		EventBuffer: cfg.EventBuffer,
	}, logger)

	creds, err := transportCreds(cfg)
	if err != nil {
		return err
	}
	if creds == nil {
		logger.Warn("serving without TLS; use only for local development")
	}

	// gRPC server with interceptors
	auth := grpcserver.NewAuth([]byte(cfg.JWTKey))
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			auth.Unary(),
			grpcserver.LoggingUnary(logger),
		),
		grpc.ChainStreamInterceptor(
			grpcserver.RecoverStream(logger),
			auth.Stream(),
			grpcserver.LoggingStream(logger),
		),
	}
	if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	api.RegisterPayrollVaultServer(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", creds != nil))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		// Subscribe streams only end when their channel closes.
		bus.Close()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
		return nil
	case err := <-errCh:
		return err
	}
}
