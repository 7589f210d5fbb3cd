package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
)

// DisbursementLedger owns the rows that tie each employee's allocation to the transaction paying it.
type DisbursementLedger struct {
	payrolls      domain.PayrollRepository
	disbursements domain.PayrollDisbursementRepository
	alerts        core_domain.AlertService
	logger        *slog.Logger
}

func NewDisbursementLedger(payrolls domain.PayrollRepository, disbursements domain.PayrollDisbursementRepository, alerts core_domain.AlertService, logger *slog.Logger) *DisbursementLedger {
	return &DisbursementLedger{
		payrolls:      payrolls,
		disbursements: disbursements,
		alerts:        alerts,
		logger:        logger.With("component", "disbursement_ledger"),
	}
}

// CreateDisbursement allocates amount of a payroll to an employee. Allocations can only be made
// while the payroll is CREATED. A second allocation for the same employee fails with AlreadyExists.
func (l *DisbursementLedger) CreateDisbursement(ctx context.Context, payrollID, employeeID string, amount decimal.Decimal) (*domain.PayrollDisbursement, error) {
	if !amount.IsPositive() {
		return nil, apperrors.NewSemanticValidationError("allocation amount must be positive, got %s", amount.String())
	}
	payroll, err := l.payrolls.GetByID(ctx, payrollID)
	if err != nil {
		return nil, fmt.Errorf("loading payroll %s: %w", payrollID, err)
	}
	if payroll == nil {
		return nil, apperrors.NewDoesNotExistError("payroll %s does not exist", payrollID)
	}
	if payroll.Status != domain.PayrollStatusCreated {
		return nil, apperrors.NewSemanticValidationError("payroll %s is %s, allocations require %s", payrollID, payroll.Status, domain.PayrollStatusCreated)
	}

	now := time.Now().UTC()
	d := &domain.PayrollDisbursement{
		ID:               uuid.NewString(),
		PayrollID:        payrollID,
		EmployeeID:       employeeID,
		AllocationAmount: amount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := l.disbursements.Create(ctx, d); err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "Disbursement created", "payroll_id", payrollID, "disbursement_id", d.ID, "employee_id", employeeID)
	return d, nil
}

// LinkTransaction records that transactionID pays the disbursement. Linking the same transaction
// again is a no-op; linking a different one means two transactions claim the same allocation,
// which is raised as a critical alert and an UnknownError.
func (l *DisbursementLedger) LinkTransaction(ctx context.Context, disbursementID, transactionID string) error {
	linked, err := l.disbursements.SetTransactionIfUnlinked(ctx, disbursementID, transactionID)
	if err != nil {
		return fmt.Errorf("linking disbursement %s: %w", disbursementID, err)
	}
	if linked {
		return nil
	}

	d, err := l.disbursements.GetByID(ctx, disbursementID)
	if err != nil {
		return fmt.Errorf("loading disbursement %s: %w", disbursementID, err)
	}
	details := map[string]string{"disbursement_id": disbursementID, "transaction_id": transactionID}
	switch {
	case d == nil:
		return l.corrupted(ctx, core_domain.AlertDisbursementMissingForLink, details,
			"disbursement %s paid by transaction %s does not exist", disbursementID, transactionID)
	case d.TransactionID != nil && *d.TransactionID == transactionID:
		return nil
	default:
		if d.TransactionID != nil {
			details["linked_transaction_id"] = *d.TransactionID
		}
		return l.corrupted(ctx, core_domain.AlertDisbursementRelinked, details,
			"disbursement %s is already paid by another transaction, refusing %s", disbursementID, transactionID)
	}
}

// ReportDeadDeposit raises a critical alert for a disbursement whose deposit failed or expired.
// The disbursement keeps its link to the dead transaction, so its payroll stays IN_PROGRESS until
// an operator pays the employee and opens an investigation.
func (l *DisbursementLedger) ReportDeadDeposit(ctx context.Context, disbursementID, transactionID, status string) {
	msg := fmt.Sprintf("deposit %s of disbursement %s ended %s", transactionID, disbursementID, status)
	l.logger.ErrorContext(ctx, "Payroll deposit did not complete", "disbursement_id", disbursementID, "transaction_id", transactionID, "status", status)
	l.alerts.RaiseCriticalAlert(ctx, core_domain.CriticalAlert{
		Key:     core_domain.AlertPayrollDepositNotCompleted,
		Message: msg,
		Details: map[string]string{"disbursement_id": disbursementID, "transaction_id": transactionID, "status": status},
	})
}

// TotalAllocation sums the allocations of a payroll.
func (l *DisbursementLedger) TotalAllocation(ctx context.Context, payrollID string) (decimal.Decimal, error) {
	total, err := l.disbursements.SumAllocationByPayroll(ctx, payrollID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing allocations of payroll %s: %w", payrollID, err)
	}
	return total, nil
}

// MatchInvoicedPayrolls finds INVOICED payrolls whose total allocation equals amount, keyed first
// on the employer's document number and then on its deposit matching name.
func (l *DisbursementLedger) MatchInvoicedPayrolls(ctx context.Context, amount decimal.Decimal, documentNumber, matchingName string) ([]*domain.Payroll, error) {
	if documentNumber != "" {
		matches, err := l.payrolls.FindInvoicedByTotalAndDocumentNumber(ctx, amount, documentNumber)
		if err != nil {
			return nil, fmt.Errorf("matching by document number: %w", err)
		}
		if len(matches) > 0 {
			return matches, nil
		}
	}
	if matchingName == "" {
		return nil, nil
	}
	matches, err := l.payrolls.FindInvoicedByTotalAndMatchingName(ctx, amount, matchingName)
	if err != nil {
		return nil, fmt.Errorf("matching by deposit name: %w", err)
	}
	return matches, nil
}

// Settle records the credited amount of a completed disbursement.
func (l *DisbursementLedger) Settle(ctx context.Context, disbursementID string, creditAmount decimal.Decimal) error {
	if err := l.disbursements.MarkSettled(ctx, disbursementID, creditAmount); err != nil {
		return fmt.Errorf("settling disbursement %s: %w", disbursementID, err)
	}
	return nil
}

func (l *DisbursementLedger) corrupted(ctx context.Context, key string, details map[string]string, format string, args ...any) error {
	err := apperrors.NewUnknownError(format, args...)
	l.logger.ErrorContext(ctx, "Disbursement ledger inconsistency", "alert_key", key, "error", err)
	l.alerts.RaiseCriticalAlert(ctx, core_domain.CriticalAlert{Key: key, Message: err.Message, Details: details})
	return err
}
