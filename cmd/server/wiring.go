package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/credentials"

	"github.com/and161185/payroll-vault/internal/config"
	"github.com/and161185/payroll-vault/internal/crypto/sealer"
	"github.com/and161185/payroll-vault/internal/export"
	"github.com/and161185/payroll-vault/internal/limiter"
	"github.com/and161185/payroll-vault/internal/migrate"
	"github.com/and161185/payroll-vault/internal/proof"
	"github.com/and161185/payroll-vault/internal/repository"
	"github.com/and161185/payroll-vault/internal/repository/memory"
	"github.com/and161185/payroll-vault/internal/repository/postgres"
	"github.com/and161185/payroll-vault/internal/service"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// newVerifier trusts the configured attester keys. At least one is required.
func newVerifier(hexKeys []string) (proof.Verifier, error) {
	if len(hexKeys) == 0 {
		return nil, errors.New("no proof attesters configured (attesters / -attesters)")
	}
	keys, err := proof.ParsePublicKeys(hexKeys)
	if err != nil {
		return nil, fmt.Errorf("attesters: %w", err)
	}
	return proof.NewAttestation(keys...), nil
}

// newDiscloser returns nil when no disclosure key is configured.
func newDiscloser(hexKey string) (service.Discloser, error) {
	if hexKey == "" {
		return nil, nil
	}
	key, err := sealer.ParseKey(hexKey)
	if err != nil {
		return nil, fmt.Errorf("disclosure key: %w", err)
	}
	return sealer.NewDiscloser(key), nil
}

// newReportWriter returns nil when reports are disabled.
func newReportWriter(ctx context.Context, rc config.Report) (service.ReportWriter, error) {
	var sink export.Sink
	switch rc.Sink {
	case "":
		return nil, nil
	case config.SinkFile:
		sink = export.NewFileSink(rc.Dir)
	case config.SinkS3:
		s3sink, err := export.NewS3Sink(ctx, export.S3Config{
			Bucket:    rc.S3Bucket,
			Prefix:    rc.S3Prefix,
			Region:    rc.S3Region,
			Endpoint:  rc.S3Endpoint,
			AccessKey: rc.S3AccessKey,
			SecretKey: rc.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		sink = s3sink
	default:
		return nil, fmt.Errorf("unknown report sink %q", rc.Sink)
	}
	recipients, err := export.ParseRecipients(rc.AgeRecipients)
	if err != nil {
		return nil, fmt.Errorf("age recipients: %w", err)
	}
	return export.NewReportWriter(sink, recipients...), nil
}

func transportCreds(cfg *config.Config) (credentials.TransportCredentials, error) {
	if cfg.Plaintext {
		return nil, nil
	}
	creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load TLS cert/key: %w", err)
	}
	return creds, nil
}

type storage struct {
	payrolls repository.PayrollRepository
	payments repository.PaymentRepository
	records  repository.RecordRepository
	lim      limiter.Limiter
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	lc := cfg.Limiter
	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.New()
		st := &storage{payrolls: store, payments: store, records: store, close: func() {}}
		if cfg.LimiterEnabled() {
			st.lim = limiter.NewMemory(lc.Window.Duration, lc.MaxFails, lc.BlockFor.Duration)
		}
		log.Warn("in-memory storage: state is lost on restart")
		return st, nil

	case config.StoragePostgres:
		if err := migrate.Up(ctx, cfg.DSN, log.Named("migrate")); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		st := &storage{
			payrolls: postgres.NewPayrollRepo(db),
			payments: postgres.NewPaymentRepo(db),
			records:  postgres.NewRecordRepo(db),
			close:    db.Close,
		}
		if cfg.LimiterEnabled() {
			st.lim = limiter.NewPGWithQuerier(db.Pool, lc.Window.Duration, lc.MaxFails, lc.BlockFor.Duration)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}
