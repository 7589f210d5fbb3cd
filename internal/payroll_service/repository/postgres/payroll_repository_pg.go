package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/platform/database"
)

var payrollColumnList = []string{
	"id", "employer_id", "reference_number", "payroll_date", "status",
	"total_debit_amount", "total_credit_amount", "exchange_rate", "debit_currency", "credit_currency",
	"completed_timestamp", "payment_transaction_id", "created_at", "updated_at",
}

var (
	payrollColumns          = strings.Join(payrollColumnList, ", ")
	qualifiedPayrollColumns = "p." + strings.Join(payrollColumnList, ", p.")
)

const payrollReferenceConstraint = "payrolls_employer_id_reference_number_key"

type PgPayrollRepository struct {
	db     database.Pool
	logger *slog.Logger
}

var _ domain.PayrollRepository = (*PgPayrollRepository)(nil)

func NewPgPayrollRepository(db database.Pool, logger *slog.Logger) *PgPayrollRepository {
	return &PgPayrollRepository{db: db, logger: logger.With("component", "payroll_repository_pg")}
}

func scanPayroll(row pgx.Row) (*domain.Payroll, error) {
	var p domain.Payroll
	var debit, credit, rate decimal.NullDecimal
	err := row.Scan(
		&p.ID,
		&p.EmployerID,
		&p.ReferenceNumber,
		&p.PayrollDate,
		&p.Status,
		&debit,
		&credit,
		&rate,
		&p.DebitCurrency,
		&p.CreditCurrency,
		&p.CompletedTimestamp,
		&p.PaymentTransactionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.TotalDebitAmount = database.DecimalPtr(debit)
	p.TotalCreditAmount = database.DecimalPtr(credit)
	p.ExchangeRate = database.DecimalPtr(rate)
	return &p, nil
}

func (r *PgPayrollRepository) Create(ctx context.Context, p *domain.Payroll) error {
	query := `INSERT INTO payrolls (` + payrollColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.EmployerID, p.ReferenceNumber, p.PayrollDate, p.Status,
		database.NullDecimal(p.TotalDebitAmount), database.NullDecimal(p.TotalCreditAmount), database.NullDecimal(p.ExchangeRate),
		p.DebitCurrency, p.CreditCurrency, p.CompletedTimestamp, p.PaymentTransactionID,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, payrollReferenceConstraint) {
			return apperrors.NewAlreadyExistsError("payroll %s already exists for employer %s", p.ReferenceNumber, p.EmployerID)
		}
		r.logger.ErrorContext(ctx, "Error creating payroll", "payroll_id", p.ID, "error", err)
		return fmt.Errorf("inserting payroll %s: %w", p.ID, err)
	}
	return nil
}

func (r *PgPayrollRepository) GetByID(ctx context.Context, id string) (*domain.Payroll, error) {
	query := `SELECT ` + payrollColumns + ` FROM payrolls WHERE id = $1`
	p, err := scanPayroll(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error scanning payroll", "payroll_id", id, "error", err)
		return nil, fmt.Errorf("scanning payroll %s: %w", id, err)
	}
	return p, nil
}

// Transition is a compare-and-set on status: the row changes only while it is still in `from`.
func (r *PgPayrollRepository) Transition(ctx context.Context, id string, from, to domain.PayrollStatus, update domain.PayrollUpdate) (*domain.Payroll, error) {
	args := []any{id, from, to}
	sets := []string{"status = $3"}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if v, ok := update.TotalDebitAmount.Get(); ok {
		add("total_debit_amount", v)
	}
	if v, ok := update.TotalCreditAmount.Get(); ok {
		add("total_credit_amount", v)
	}
	if v, ok := update.ExchangeRate.Get(); ok {
		add("exchange_rate", v)
	}
	if v, ok := update.CompletedTimestamp.Get(); ok {
		add("completed_timestamp", v)
	}
	if v, ok := update.PaymentTransactionID.Get(); ok {
		add("payment_transaction_id", v)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE payrolls SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND status = $2 RETURNING ` + payrollColumns
	p, err := scanPayroll(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Payroll transition found no row in expected status", "payroll_id", id, "from", from, "to", to)
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error transitioning payroll", "payroll_id", id, "from", from, "to", to, "error", err)
		return nil, fmt.Errorf("transitioning payroll %s: %w", id, err)
	}
	return p, nil
}

func (r *PgPayrollRepository) FindInvoicedByTotalAndDocumentNumber(ctx context.Context, amount decimal.Decimal, documentNumber string) ([]*domain.Payroll, error) {
	return r.findInvoicedByTotal(ctx, "e.document_number", amount, documentNumber)
}

func (r *PgPayrollRepository) FindInvoicedByTotalAndMatchingName(ctx context.Context, amount decimal.Decimal, matchingName string) ([]*domain.Payroll, error) {
	return r.findInvoicedByTotal(ctx, "e.deposit_matching_name", amount, matchingName)
}

// findInvoicedByTotal matches INVOICED payrolls of the employer identified by employerColumn
// whose allocations sum to amount.
func (r *PgPayrollRepository) findInvoicedByTotal(ctx context.Context, employerColumn string, amount decimal.Decimal, key string) ([]*domain.Payroll, error) {
	query := `SELECT ` + qualifiedPayrollColumns + `
	          FROM payrolls p
	          JOIN employers e ON e.id = p.employer_id
	          JOIN payroll_disbursements d ON d.payroll_id = p.id
	          WHERE p.status = $1 AND ` + employerColumn + ` = $2
	          GROUP BY p.id
	          HAVING SUM(d.allocation_amount) = $3
	          ORDER BY p.created_at ASC`
	rows, err := r.db.Query(ctx, query, domain.PayrollStatusInvoiced, key, amount)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error matching invoiced payrolls", "match_on", employerColumn, "error", err)
		return nil, fmt.Errorf("matching invoiced payrolls on %s: %w", employerColumn, err)
	}
	defer rows.Close()

	var payrolls []*domain.Payroll
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payroll row: %w", err)
		}
		payrolls = append(payrolls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payroll rows: %w", err)
	}
	return payrolls, nil
}

func (r *PgPayrollRepository) ListStalledInProgress(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	query := `SELECT p.id
	          FROM payrolls p
	          WHERE p.status = $1 AND p.updated_at < $2
	            AND EXISTS (SELECT 1 FROM payroll_disbursements d WHERE d.payroll_id = p.id AND d.transaction_id IS NULL)
	          ORDER BY p.created_at ASC
	          LIMIT $3`
	rows, err := r.db.Query(ctx, query, domain.PayrollStatusInProgress, olderThan, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing stalled payrolls", "error", err)
		return nil, fmt.Errorf("listing stalled payrolls: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning stalled payroll ids: %w", err)
	}
	return ids, nil
}
