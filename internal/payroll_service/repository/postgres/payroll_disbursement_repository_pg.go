package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/platform/database"
)

const (
	disbursementColumns = `id, payroll_id, employee_id, allocation_amount, transaction_id, credit_amount, created_at, updated_at`

	disbursementEmployeeConstraint = "payroll_disbursements_payroll_id_employee_id_key"
)

type PgPayrollDisbursementRepository struct {
	db     database.Pool
	logger *slog.Logger
}

var _ domain.PayrollDisbursementRepository = (*PgPayrollDisbursementRepository)(nil)

func NewPgPayrollDisbursementRepository(db database.Pool, logger *slog.Logger) *PgPayrollDisbursementRepository {
	return &PgPayrollDisbursementRepository{db: db, logger: logger.With("component", "payroll_disbursement_repository_pg")}
}

func scanDisbursement(row pgx.Row) (*domain.PayrollDisbursement, error) {
	var d domain.PayrollDisbursement
	var credit decimal.NullDecimal
	if err := row.Scan(&d.ID, &d.PayrollID, &d.EmployeeID, &d.AllocationAmount, &d.TransactionID, &credit, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.CreditAmount = database.DecimalPtr(credit)
	return &d, nil
}

func (r *PgPayrollDisbursementRepository) Create(ctx context.Context, d *domain.PayrollDisbursement) error {
	query := `INSERT INTO payroll_disbursements (` + disbursementColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		d.ID, d.PayrollID, d.EmployeeID, d.AllocationAmount, d.TransactionID, database.NullDecimal(d.CreditAmount), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, disbursementEmployeeConstraint) {
			return apperrors.NewAlreadyExistsError("employee %s already has a disbursement in payroll %s", d.EmployeeID, d.PayrollID)
		}
		r.logger.ErrorContext(ctx, "Error creating disbursement", "payroll_id", d.PayrollID, "employee_id", d.EmployeeID, "error", err)
		return fmt.Errorf("inserting disbursement %s: %w", d.ID, err)
	}
	return nil
}

func (r *PgPayrollDisbursementRepository) getOne(ctx context.Context, where string, arg any) (*domain.PayrollDisbursement, error) {
	query := `SELECT ` + disbursementColumns + ` FROM payroll_disbursements WHERE ` + where + ` = $1`
	d, err := scanDisbursement(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error scanning disbursement", "lookup", where, "value", arg, "error", err)
		return nil, fmt.Errorf("scanning disbursement by %s: %w", where, err)
	}
	return d, nil
}

func (r *PgPayrollDisbursementRepository) GetByID(ctx context.Context, id string) (*domain.PayrollDisbursement, error) {
	return r.getOne(ctx, "id", id)
}

func (r *PgPayrollDisbursementRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PayrollDisbursement, error) {
	return r.getOne(ctx, "transaction_id", transactionID)
}

func (r *PgPayrollDisbursementRepository) ListByPayroll(ctx context.Context, payrollID string) ([]*domain.PayrollDisbursement, error) {
	query := `SELECT ` + disbursementColumns + ` FROM payroll_disbursements WHERE payroll_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, payrollID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing disbursements", "payroll_id", payrollID, "error", err)
		return nil, fmt.Errorf("listing disbursements of payroll %s: %w", payrollID, err)
	}
	defer rows.Close()

	var out []*domain.PayrollDisbursement
	for rows.Next() {
		d, err := scanDisbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning disbursement row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating disbursement rows: %w", err)
	}
	return out, nil
}

// SetTransactionIfUnlinked is a single conditional UPDATE, so concurrent links of the same
// transaction both succeed and a different transaction never overwrites an existing link.
func (r *PgPayrollDisbursementRepository) SetTransactionIfUnlinked(ctx context.Context, id, transactionID string) (bool, error) {
	query := `UPDATE payroll_disbursements SET transaction_id = $2, updated_at = NOW()
	          WHERE id = $1 AND (transaction_id IS NULL OR transaction_id = $2)`
	tag, err := r.db.Exec(ctx, query, id, transactionID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error linking disbursement", "disbursement_id", id, "transaction_id", transactionID, "error", err)
		return false, fmt.Errorf("linking disbursement %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgPayrollDisbursementRepository) MarkSettled(ctx context.Context, id string, creditAmount decimal.Decimal) error {
	query := `UPDATE payroll_disbursements SET credit_amount = $2, updated_at = NOW()
	          WHERE id = $1 AND credit_amount IS NULL`
	tag, err := r.db.Exec(ctx, query, id, creditAmount)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error settling disbursement", "disbursement_id", id, "error", err)
		return fmt.Errorf("settling disbursement %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.DebugContext(ctx, "Disbursement already settled", "disbursement_id", id)
	}
	return nil
}

func (r *PgPayrollDisbursementRepository) SumAllocationByPayroll(ctx context.Context, payrollID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(allocation_amount), 0) FROM payroll_disbursements WHERE payroll_id = $1`, payrollID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing allocations of payroll %s: %w", payrollID, err)
	}
	return total, nil
}

func (r *PgPayrollDisbursementRepository) CountUnsettledByPayroll(ctx context.Context, payrollID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payroll_disbursements WHERE payroll_id = $1 AND credit_amount IS NULL`, payrollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unsettled disbursements of payroll %s: %w", payrollID, err)
	}
	return n, nil
}
