// Package migrate brings the ledger schema (payrolls, payments, encrypted
// records, proof limiter) up to date before the server accepts calls.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/payroll-vault/migrations"
)

// Up applies every pending ledger migration and logs each applied version.
func Up(ctx context.Context, dsn string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := newProvider(db)
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("ledger schema: %w", err)
	}
	for _, r := range results {
		log.Info("ledger migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
	version, err := p.GetDBVersion(ctx)
	if err != nil {
		return err
	}
	log.Info("ledger schema ready", zap.Int64("version", version), zap.Int("applied", len(results)))
	return nil
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	return goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
}
