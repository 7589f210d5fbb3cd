package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
)

var disbursementColumnNames = []string{"id", "payroll_id", "employee_id", "allocation_amount", "transaction_id", "credit_amount", "created_at", "updated_at"}

const disbursementID = "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a"

func setupDisbursementTest(t *testing.T) (*PgPayrollDisbursementRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPgPayrollDisbursementRepository(mockPool, logger), mockPool
}

func TestPgPayrollDisbursementRepository_Create(t *testing.T) {
	repo, mockPool := setupDisbursementTest(t)
	defer mockPool.Close()
	d := &domain.PayrollDisbursement{ID: disbursementID, PayrollID: payrollID, EmployeeID: "employee-1", AllocationAmount: decimal.NewFromInt(100)}

	t.Run("Inserted", func(t *testing.T) {
		mockPool.ExpectExec(`INSERT INTO payroll_disbursements`).
			WithArgs(disbursementID, payrollID, "employee-1", d.AllocationAmount, (*string)(nil), decimal.NullDecimal{}, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, repo.Create(context.Background(), d))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Same employee twice", func(t *testing.T) {
		mockPool.ExpectExec(`INSERT INTO payroll_disbursements`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: disbursementEmployeeConstraint})
		err := repo.Create(context.Background(), d)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgPayrollDisbursementRepository_Lookups(t *testing.T) {
	repo, mockPool := setupDisbursementTest(t)
	defer mockPool.Close()
	now := time.Now()

	mockPool.ExpectQuery(`SELECT (.+) FROM payroll_disbursements WHERE id = \$1`).
		WithArgs(disbursementID).
		WillReturnRows(mockPool.NewRows(disbursementColumnNames).
			AddRow(disbursementID, payrollID, "employee-1", decimal.NewFromInt(100), strPtr("txn-1"),
				decimal.NullDecimal{Decimal: decimal.RequireFromString("91.35"), Valid: true}, now, now))
	mockPool.ExpectQuery(`SELECT (.+) FROM payroll_disbursements WHERE transaction_id = \$1`).
		WithArgs("txn-404").
		WillReturnError(pgx.ErrNoRows)

	d, err := repo.GetByID(context.Background(), disbursementID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "txn-1", *d.TransactionID)
	assert.True(t, d.Settled())
	assert.True(t, d.CreditAmount.Equal(decimal.RequireFromString("91.35")))

	missing, err := repo.GetByTransactionID(context.Background(), "txn-404")
	assert.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgPayrollDisbursementRepository_SetTransactionIfUnlinked(t *testing.T) {
	repo, mockPool := setupDisbursementTest(t)
	defer mockPool.Close()
	query := `UPDATE payroll_disbursements SET transaction_id = \$2, updated_at = NOW\(\) WHERE id = \$1 AND \(transaction_id IS NULL OR transaction_id = \$2\)`

	mockPool.ExpectExec(query).WithArgs(disbursementID, "txn-1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(query).WithArgs(disbursementID, "txn-2").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	linked, err := repo.SetTransactionIfUnlinked(context.Background(), disbursementID, "txn-1")
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = repo.SetTransactionIfUnlinked(context.Background(), disbursementID, "txn-2")
	require.NoError(t, err)
	assert.False(t, linked)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgPayrollDisbursementRepository_Settlement(t *testing.T) {
	repo, mockPool := setupDisbursementTest(t)
	defer mockPool.Close()
	credit := decimal.RequireFromString("91.35")

	mockPool.ExpectExec(`UPDATE payroll_disbursements SET credit_amount = \$2, updated_at = NOW\(\) WHERE id = \$1 AND credit_amount IS NULL`).
		WithArgs(disbursementID, credit).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(`SELECT COUNT\(\*\) FROM payroll_disbursements WHERE payroll_id = \$1 AND credit_amount IS NULL`).
		WithArgs(payrollID).
		WillReturnRows(mockPool.NewRows([]string{"count"}).AddRow(2))
	mockPool.ExpectQuery(`SELECT COALESCE\(SUM\(allocation_amount\), 0\) FROM payroll_disbursements WHERE payroll_id = \$1`).
		WithArgs(payrollID).
		WillReturnRows(mockPool.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("400.00")))

	require.NoError(t, repo.MarkSettled(context.Background(), disbursementID, credit))

	n, err := repo.CountUnsettledByPayroll(context.Background(), payrollID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err := repo.SumAllocationByPayroll(context.Background(), payrollID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(400)))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
