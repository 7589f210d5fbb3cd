package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/platform/optional"
)

// PayrollUpdate is a field mask applied together with a status transition.
type PayrollUpdate struct {
	TotalDebitAmount     optional.Value[decimal.Decimal]
	TotalCreditAmount    optional.Value[decimal.Decimal]
	ExchangeRate         optional.Value[decimal.Decimal]
	CompletedTimestamp   optional.Value[time.Time]
	PaymentTransactionID optional.Value[string]
}

// PayrollRepository persists payroll batches. Lookups return nil, nil when absent.
type PayrollRepository interface {
	Create(ctx context.Context, payroll *Payroll) error
	GetByID(ctx context.Context, id string) (*Payroll, error)

	// Transition sets status to `to` and applies update, only if the row is still in `from`.
	// It returns nil, nil when the row is missing or has moved on.
	Transition(ctx context.Context, id string, from, to PayrollStatus, update PayrollUpdate) (*Payroll, error)

	// FindInvoicedByTotalAndDocumentNumber returns INVOICED payrolls whose disbursements sum to
	// amount and whose employer has the given document number.
	FindInvoicedByTotalAndDocumentNumber(ctx context.Context, amount decimal.Decimal, documentNumber string) ([]*Payroll, error)

	// FindInvoicedByTotalAndMatchingName is the same match keyed on the employer's deposit name.
	FindInvoicedByTotalAndMatchingName(ctx context.Context, amount decimal.Decimal, matchingName string) ([]*Payroll, error)

	// ListStalledInProgress returns up to limit IN_PROGRESS payroll ids, oldest first, that still
	// have a disbursement without a linked transaction and were last updated before olderThan.
	ListStalledInProgress(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// PayrollDisbursementRepository persists disbursements. Lookups return nil, nil when absent.
type PayrollDisbursementRepository interface {
	// Create fails with an AlreadyExists error when the (payroll, employee) pair exists.
	Create(ctx context.Context, d *PayrollDisbursement) error
	GetByID(ctx context.Context, id string) (*PayrollDisbursement, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*PayrollDisbursement, error)
	ListByPayroll(ctx context.Context, payrollID string) ([]*PayrollDisbursement, error)

	// SetTransactionIfUnlinked links transactionID unless a different transaction is already
	// linked. It reports whether the row now carries transactionID.
	SetTransactionIfUnlinked(ctx context.Context, id, transactionID string) (bool, error)

	// MarkSettled records the settled credit amount. Re-marking is a no-op.
	MarkSettled(ctx context.Context, id string, creditAmount decimal.Decimal) error

	SumAllocationByPayroll(ctx context.Context, payrollID string) (decimal.Decimal, error)
	CountUnsettledByPayroll(ctx context.Context, payrollID string) (int, error)
}
