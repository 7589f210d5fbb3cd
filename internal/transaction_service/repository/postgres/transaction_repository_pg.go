package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	limitdomain "github.com/aradpay/golang_services/internal/limit_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/platform/database"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

const transactionColumns = `id, transaction_ref, workflow_name, debit_consumer_id, credit_consumer_id, debit_currency, credit_currency,
	debit_amount, credit_amount, exchange_rate, memo, session_key, status, request_payload, created_at, updated_at`

const feeColumns = `id, transaction_id, amount, currency, fee_type`

// transactionRefConstraint is the unique constraint on transactions.transaction_ref.
const transactionRefConstraint = "transactions_transaction_ref_key"

// PgTransactionRepository stores canonical transactions and their fees, and answers spend
// aggregation queries for the limit engine.
type PgTransactionRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgTransactionRepository(db database.Pool, logger *slog.Logger) *PgTransactionRepository {
	return &PgTransactionRepository{db: db, logger: logger.With("component", "transaction_repository_pg")}
}

var (
	_ domain.TransactionStore = (*PgTransactionRepository)(nil)
	_ limitdomain.SpendStore  = (*PgTransactionRepository)(nil)
)

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID,
		&t.TransactionRef,
		&t.WorkflowName,
		&t.DebitConsumerID,
		&t.CreditConsumerID,
		&t.DebitCurrency,
		&t.CreditCurrency,
		&t.DebitAmount,
		&t.CreditAmount,
		&t.ExchangeRate,
		&t.Memo,
		&t.SessionKey,
		&t.Status,
		&t.RequestPayload,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts the transaction and its fees in one database transaction.
func (r *PgTransactionRepository) Create(ctx context.Context, in *domain.InputTransaction) (*domain.Transaction, error) {
	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:               uuid.NewString(),
		TransactionRef:   in.TransactionRef,
		WorkflowName:     in.WorkflowName,
		DebitConsumerID:  in.DebitConsumerID,
		CreditConsumerID: in.CreditConsumerID,
		DebitCurrency:    in.DebitCurrency,
		CreditCurrency:   in.CreditCurrency,
		DebitAmount:      in.DebitAmount,
		CreditAmount:     in.CreditAmount,
		ExchangeRate:     in.ExchangeRate,
		Memo:             in.Memo,
		SessionKey:       in.SessionKey,
		Status:           domain.TransactionStatusInitiated,
		RequestPayload:   in.RequestPayload,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	txErr := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `INSERT INTO transactions (` + transactionColumns + `)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
		_, err := tx.Exec(ctx, query,
			txn.ID, txn.TransactionRef, txn.WorkflowName, txn.DebitConsumerID, txn.CreditConsumerID,
			txn.DebitCurrency, txn.CreditCurrency, txn.DebitAmount, txn.CreditAmount, txn.ExchangeRate,
			txn.Memo, txn.SessionKey, txn.Status, []byte(txn.RequestPayload), txn.CreatedAt, txn.UpdatedAt,
		)
		if err != nil {
			return err
		}
		for _, f := range in.Fees {
			fee := f
			fee.ID = uuid.NewString()
			fee.TransactionID = txn.ID
			if _, err := tx.Exec(ctx, `INSERT INTO transaction_fees (`+feeColumns+`) VALUES ($1, $2, $3, $4, $5)`,
				fee.ID, fee.TransactionID, fee.Amount, fee.Currency, fee.Type); err != nil {
				return fmt.Errorf("inserting fee: %w", err)
			}
			txn.Fees = append(txn.Fees, fee)
		}
		return nil
	})
	if txErr != nil {
		if database.IsUniqueViolation(txErr, transactionRefConstraint) {
			r.logger.InfoContext(ctx, "Transaction ref already exists", "transaction_ref", in.TransactionRef)
			return nil, apperrors.NewAlreadyExistsError("transaction %s already exists", in.TransactionRef)
		}
		r.logger.ErrorContext(ctx, "Error creating transaction", "transaction_ref", in.TransactionRef, "error", txErr)
		return nil, fmt.Errorf("inserting transaction %s: %w", in.TransactionRef, txErr)
	}
	return txn, nil
}

func (r *PgTransactionRepository) FindByRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_ref = $1`, ref)
}

func (r *PgTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *PgTransactionRepository) getOne(ctx context.Context, query string, key string) (*domain.Transaction, error) {
	txn, err := scanTransaction(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error scanning transaction", "key", key, "error", err)
		return nil, fmt.Errorf("scanning transaction %s: %w", key, err)
	}
	if txn.Fees, err = r.listFees(ctx, txn.ID); err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *PgTransactionRepository) listFees(ctx context.Context, transactionID string) ([]domain.TransactionFee, error) {
	rows, err := r.db.Query(ctx, `SELECT `+feeColumns+` FROM transaction_fees WHERE transaction_id = $1 ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing fees of transaction %s: %w", transactionID, err)
	}
	defer rows.Close()

	var fees []domain.TransactionFee
	for rows.Next() {
		var f domain.TransactionFee
		if err := rows.Scan(&f.ID, &f.TransactionID, &f.Amount, &f.Currency, &f.Type); err != nil {
			return nil, fmt.Errorf("scanning fee row: %w", err)
		}
		fees = append(fees, f)
	}
	return fees, rows.Err()
}

func (r *PgTransactionRepository) UpdateStatus(ctx context.Context, id string, from, to domain.TransactionStatus) (*domain.Transaction, error) {
	query := `UPDATE transactions SET status = $3, updated_at = NOW()
	          WHERE id = $1 AND status = $2
	          RETURNING ` + transactionColumns
	txn, err := scanTransaction(r.db.QueryRow(ctx, query, id, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "Transaction not in expected status", "transaction_id", id, "expected_status", from)
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error updating transaction status", "transaction_id", id, "error", err)
		return nil, fmt.Errorf("updating status of transaction %s: %w", id, err)
	}
	if txn.Fees, err = r.listFees(ctx, txn.ID); err != nil {
		return nil, err
	}
	return txn, nil
}

// SumByConsumerAndWindow sums the consumer's side of every counted transaction of txnType created
// in [from, to). Deposits are summed on the credit side, withdrawals and transfers on the debit
// side; an empty txnType sums all of them.
func (r *PgTransactionRepository) SumByConsumerAndWindow(ctx context.Context, consumerID string, txnType limitdomain.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	credit, debit := domain.WorkflowsForLimitType(txnType)
	statuses := make([]string, 0, len(domain.CountedStatuses))
	for _, s := range domain.CountedStatuses {
		statuses = append(statuses, string(s))
	}

	query := `SELECT
	            COALESCE(SUM(CASE WHEN credit_consumer_id = $1 AND workflow_name = ANY($2) THEN credit_amount ELSE 0 END), 0)
	          + COALESCE(SUM(CASE WHEN debit_consumer_id = $1 AND workflow_name = ANY($3) THEN debit_amount ELSE 0 END), 0)
	          FROM transactions
	          WHERE (credit_consumer_id = $1 OR debit_consumer_id = $1)
	            AND status = ANY($4)
	            AND created_at >= $5 AND created_at < $6`

	var total decimal.Decimal
	err := r.db.QueryRow(ctx, query, consumerID, workflowStrings(credit), workflowStrings(debit), statuses, from, to).Scan(&total)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error summing consumer spend", "consumer_id", consumerID, "transaction_type", txnType, "error", err)
		return decimal.Zero, fmt.Errorf("summing spend of consumer %s: %w", consumerID, err)
	}
	return total, nil
}

func (r *PgTransactionRepository) SumReversals(ctx context.Context, originalRef, excludingRef string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(credit_amount), 0)
	          FROM transactions
	          WHERE workflow_name = $1
	            AND request_payload->>'original_transaction_ref' = $2
	            AND transaction_ref <> $3
	            AND status <> ALL($4)`

	dead := []string{string(domain.TransactionStatusFailed), string(domain.TransactionStatusExpired)}
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, query, string(domain.WorkflowCardReversal), originalRef, excludingRef, dead).Scan(&total)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error summing reversals", "original_transaction_ref", originalRef, "error", err)
		return decimal.Zero, fmt.Errorf("summing reversals of %s: %w", originalRef, err)
	}
	return total, nil
}

func workflowStrings(names []domain.WorkflowName) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, string(n))
	}
	return out
}
