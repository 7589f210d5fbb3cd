package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// TransactionStore persists canonical transactions. Lookups return nil, nil when absent.
type TransactionStore interface {
	// Create inserts the transaction and its fees atomically. A transaction_ref collision
	// fails with an AlreadyExists error.
	Create(ctx context.Context, in *InputTransaction) (*Transaction, error)
	FindByRef(ctx context.Context, ref string) (*Transaction, error)
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// UpdateStatus moves id from `from` to `to` and returns the updated row, or nil, nil when
	// the row is no longer in `from`.
	UpdateStatus(ctx context.Context, id string, from, to TransactionStatus) (*Transaction, error)

	// SumReversals totals the card reversals of originalRef that have not failed or expired,
	// leaving out the reversal with ref excludingRef.
	SumReversals(ctx context.Context, originalRef, excludingRef string) (decimal.Decimal, error)
}

// TransactionEventStore appends audit entries; entries are never updated or deleted.
type TransactionEventStore interface {
	Append(ctx context.Context, event *TransactionEvent) error
	ListByTransaction(ctx context.Context, transactionID string) ([]*TransactionEvent, error)
}

// WorkflowExecutor triggers the asynchronous orchestration of a committed transaction.
// Every call is idempotent per transaction.
type WorkflowExecutor interface {
	ExecuteWalletDepositWorkflow(ctx context.Context, transactionRef string) error
	ExecuteWalletWithdrawalWorkflow(ctx context.Context, transactionRef string) error
	ExecuteWalletTransferWorkflow(ctx context.Context, transactionRef string) error
	ExecuteCardWorkflow(ctx context.Context, workflow WorkflowName, transactionRef string) error
	ExecuteAdjustmentWorkflow(ctx context.Context, workflow WorkflowName, transactionRef string) error
	ExecutePayrollDepositWorkflow(ctx context.Context, transactionRef, disbursementID string) error
}

// StatusListener is notified after a transaction status change has been committed.
type StatusListener interface {
	OnTransactionStatusChanged(ctx context.Context, txn *Transaction, previous TransactionStatus) error
}
