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

const payrollCols = `id, employer, name, description, employee_count, total_amount, is_active, is_verified, created_at`

// PayrollRepo implements PayrollRepository using PostgreSQL.
type PayrollRepo struct{ db *DB }

var _ repository.PayrollRepository = (*PayrollRepo)(nil)

// NewPayrollRepo constructs a payroll repository.
func NewPayrollRepo(db *DB) *PayrollRepo { return &PayrollRepo{db: db} }

// CreatePayroll inserts a payroll; the id comes from the payrolls sequence.
func (r *PayrollRepo) CreatePayroll(ctx context.Context, employer model.Identity, name, description string) (*model.Payroll, error) {
	const q = `
INSERT INTO payrolls (employer, name, description)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	var (
		id int64
		ts time.Time
	)
	if err := r.db.Pool.QueryRow(ctx, q, string(employer), name, description).Scan(&id, &ts); err != nil {
		return nil, err
	}
	return &model.Payroll{
		ID:          uint64(id),
		Employer:    employer,
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   ts,
	}, nil
}

// GetPayroll returns a payroll by id.
func (r *PayrollRepo) GetPayroll(ctx context.Context, id uint64) (*model.Payroll, error) {
	const q = `SELECT ` + payrollCols + ` FROM payrolls WHERE id=$1`
	p, err := scanPayroll(r.db.Pool.QueryRow(ctx, q, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return p, err
}

// ListPayrolls returns payrolls ordered by id, optionally filtered by employer.
func (r *PayrollRepo) ListPayrolls(ctx context.Context, employer model.Identity) ([]model.Payroll, error) {
	const all = `SELECT ` + payrollCols + ` FROM payrolls ORDER BY id`
	const byEmployer = `SELECT ` + payrollCols + ` FROM payrolls WHERE employer=$1 ORDER BY id`

	var (
		rows pgx.Rows
		err  error
	)
	if employer == "" {
		rows, err = r.db.Pool.Query(ctx, all)
	} else {
		rows, err = r.db.Pool.Query(ctx, byEmployer, string(employer))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payroll
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SetVerified flips is_verified under a row lock.
func (r *PayrollRepo) SetVerified(ctx context.Context, id uint64) (changed bool, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		const sel = `SELECT is_verified FROM payrolls WHERE id=$1 FOR UPDATE`
		const upd = `UPDATE payrolls SET is_verified=true WHERE id=$1`

		var verified bool
		if err := tx.QueryRow(ctx, sel, int64(id)).Scan(&verified); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if verified {
			return nil
		}
		if _, err := tx.Exec(ctx, upd, int64(id)); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

// Deactivate clears is_active under a row lock.
func (r *PayrollRepo) Deactivate(ctx context.Context, id uint64, caller model.Identity) (changed bool, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		const sel = `SELECT employer, is_active FROM payrolls WHERE id=$1 FOR UPDATE`
		const upd = `UPDATE payrolls SET is_active=false WHERE id=$1`

		var (
			employer string
			active   bool
		)
		if err := tx.QueryRow(ctx, sel, int64(id)).Scan(&employer, &active); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if model.Identity(employer) != caller {
			return errs.ErrUnauthorized
		}
		if !active {
			return nil
		}
		if _, err := tx.Exec(ctx, upd, int64(id)); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func scanPayroll(row pgx.Row) (*model.Payroll, error) {
	var (
		id               int64
		employer         string
		name, desc       string
		employees, total int16
		active, verified bool
		ts               time.Time
	)
	if err := row.Scan(&id, &employer, &name, &desc, &employees, &total, &active, &verified, &ts); err != nil {
		return nil, err
	}
	return &model.Payroll{
		ID:            uint64(id),
		Employer:      model.Identity(employer),
		Name:          name,
		Description:   desc,
		EmployeeCount: uint8(employees),
		TotalAmount:   uint8(total),
		IsActive:      active,
		IsVerified:    verified,
		CreatedAt:     ts,
	}, nil
}
