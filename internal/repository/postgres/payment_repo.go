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

const paymentCols = `id, payroll_id, employee, encrypted_amount, input_proof, created_at`

// PaymentRepo implements PaymentRepository using PostgreSQL.
type PaymentRepo struct{ db *DB }

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

// NewPaymentRepo constructs a payment repository.
func NewPaymentRepo(db *DB) *PaymentRepo { return &PaymentRepo{db: db} }

// RecordPayment locks the payroll row, re-checks admission, bumps counters and inserts the payment.
func (r *PaymentRepo) RecordPayment(ctx context.Context, caller model.Identity, in model.NewPayment) (pm *model.Payment, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		const lock = `SELECT ` + payrollCols + ` FROM payrolls WHERE id=$1 FOR UPDATE`
		const seen = `SELECT EXISTS (SELECT 1 FROM payments WHERE payroll_id=$1 AND employee=$2)`
		const ins = `
INSERT INTO payments (payroll_id, employee, encrypted_amount, input_proof)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`
		const upd = `UPDATE payrolls SET employee_count=$2, total_amount=$3 WHERE id=$1`

		pid := int64(in.PayrollID)
		p, err := scanPayroll(tx.QueryRow(ctx, lock, pid))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if err := p.AdmitPayment(caller); err != nil {
			return err
		}

		var paid bool
		if err := tx.QueryRow(ctx, seen, pid, string(in.Employee)).Scan(&paid); err != nil {
			return err
		}
		employees, total, err := p.BumpCounters(!paid)
		if err != nil {
			return err
		}

		var (
			id int64
			ts time.Time
		)
		if err := tx.QueryRow(ctx, ins, pid, string(in.Employee), []byte(in.EncryptedAmount), in.InputProof).Scan(&id, &ts); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upd, pid, int16(employees), int16(total)); err != nil {
			return err
		}

		pm = &model.Payment{
			ID:              uint64(id),
			PayrollID:       in.PayrollID,
			Employee:        in.Employee,
			EncryptedAmount: in.EncryptedAmount,
			InputProof:      in.InputProof,
			CreatedAt:       ts,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pm, nil
}

// GetPayment returns a payment by id.
func (r *PaymentRepo) GetPayment(ctx context.Context, id uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE id=$1`
	pm, err := scanPayment(r.db.Pool.QueryRow(ctx, q, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return pm, err
}

// ListPayments returns the payments of a payroll in id order.
func (r *PaymentRepo) ListPayments(ctx context.Context, payrollID uint64) ([]model.Payment, error) {
	const q = `SELECT ` + paymentCols + ` FROM payments WHERE payroll_id=$1 ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q, int64(payrollID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		pm, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pm)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		id, payrollID int64
		employee      string
		amount, proof []byte
		ts            time.Time
	)
	if err := row.Scan(&id, &payrollID, &employee, &amount, &proof, &ts); err != nil {
		return nil, err
	}
	return &model.Payment{
		ID:              uint64(id),
		PayrollID:       uint64(payrollID),
		Employee:        model.Identity(employee),
		EncryptedAmount: model.EncryptedBlob(amount),
		InputProof:      proof,
		CreatedAt:       ts,
	}, nil
}
