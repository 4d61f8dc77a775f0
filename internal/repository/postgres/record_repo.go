package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/payroll-vault/internal/errs"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/repository"
	"github.com/jackc/pgx/v5"
)

// RecordRepo implements RecordRepository using PostgreSQL.
type RecordRepo struct{ db *DB }

var _ repository.RecordRepository = (*RecordRepo)(nil)

// NewRecordRepo constructs an encrypted record repository.
func NewRecordRepo(db *DB) *RecordRepo { return &RecordRepo{db: db} }

// PutRecord checks ownership under a share lock and upserts the blob.
func (r *RecordRepo) PutRecord(
	ctx context.Context, caller model.Identity, payrollID uint64, dataType string, blob model.EncryptedBlob,
) (rec *model.EncryptedRecord, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		const sel = `SELECT employer FROM payrolls WHERE id=$1 FOR SHARE`
		const ups = `
INSERT INTO encrypted_records (payroll_id, data_type, ciphertext)
VALUES ($1, $2, $3)
ON CONFLICT (payroll_id, data_type)
DO UPDATE SET ciphertext=EXCLUDED.ciphertext, stored_at=now()
RETURNING stored_at`

		var employer string
		if err := tx.QueryRow(ctx, sel, int64(payrollID)).Scan(&employer); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if model.Identity(employer) != caller {
			return errs.ErrUnauthorized
		}
		var ts time.Time
		if err := tx.QueryRow(ctx, ups, int64(payrollID), dataType, []byte(blob)).Scan(&ts); err != nil {
			return err
		}
		rec = &model.EncryptedRecord{PayrollID: payrollID, DataType: dataType, Ciphertext: blob, StoredAt: ts}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRecord returns a blob by key.
func (r *RecordRepo) GetRecord(ctx context.Context, payrollID uint64, dataType string) (*model.EncryptedRecord, error) {
	const q = `SELECT ciphertext, stored_at FROM encrypted_records WHERE payroll_id=$1 AND data_type=$2`
	var (
		ct []byte
		ts time.Time
	)
	if err := r.db.Pool.QueryRow(ctx, q, int64(payrollID), dataType).Scan(&ct, &ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &model.EncryptedRecord{PayrollID: payrollID, DataType: dataType, Ciphertext: model.EncryptedBlob(ct), StoredAt: ts}, nil
}

// ListDataTypes returns stored tags in lexical order.
func (r *RecordRepo) ListDataTypes(ctx context.Context, payrollID uint64) ([]string, error) {
	const q = `SELECT data_type FROM encrypted_records WHERE payroll_id=$1 ORDER BY data_type`
	rows, err := r.db.Pool.Query(ctx, q, int64(payrollID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var dt string
		if err := rows.Scan(&dt); err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}
