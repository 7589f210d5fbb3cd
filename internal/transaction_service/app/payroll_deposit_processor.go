package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/aradpay/golang_services/internal/core_domain"
	payrolldomain "github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// DisbursementLinker records which transaction paid a disbursement.
type DisbursementLinker interface {
	LinkTransaction(ctx context.Context, disbursementID, transactionID string) error
}

// PayrollDepositProcessor credits an employee's wallet with their share of a funded payroll.
type PayrollDepositProcessor struct {
	validate      *validator.Validate
	payrolls      payrolldomain.PayrollRepository
	disbursements payrolldomain.PayrollDisbursementRepository
	employers     core_domain.EmployerService
	employees     core_domain.EmployeeService
	linker        DisbursementLinker
	workflows     domain.WorkflowExecutor
	alerts        core_domain.AlertService
	logger        *slog.Logger
}

func NewPayrollDepositProcessor(
	v *validator.Validate,
	payrolls payrolldomain.PayrollRepository,
	disbursements payrolldomain.PayrollDisbursementRepository,
	employers core_domain.EmployerService,
	employees core_domain.EmployeeService,
	linker DisbursementLinker,
	workflows domain.WorkflowExecutor,
	alerts core_domain.AlertService,
	logger *slog.Logger,
) *PayrollDepositProcessor {
	return &PayrollDepositProcessor{
		validate:      v,
		payrolls:      payrolls,
		disbursements: disbursements,
		employers:     employers,
		employees:     employees,
		linker:        linker,
		workflows:     workflows,
		alerts:        alerts,
		logger:        logger.With("component", "payroll_deposit_processor"),
	}
}

func (p *PayrollDepositProcessor) disbursement(ctx context.Context, id string) (*payrolldomain.PayrollDisbursement, error) {
	d, err := p.disbursements.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading disbursement %s: %w", id, err)
	}
	if d == nil {
		return nil, apperrors.NewDoesNotExistError("disbursement %s does not exist", id)
	}
	return d, nil
}

// corrupted raises a critical alert and returns the matching UnknownError.
func (p *PayrollDepositProcessor) corrupted(ctx context.Context, key string, details map[string]string, format string, args ...any) error {
	err := apperrors.NewUnknownError(format, args...)
	p.logger.ErrorContext(ctx, "Payroll data inconsistency", "alert_key", key, "error", err)
	p.alerts.RaiseCriticalAlert(ctx, core_domain.CriticalAlert{Key: key, Message: err.Message, Details: details})
	return err
}

func (p *PayrollDepositProcessor) Validate(ctx context.Context, req domain.IntakeRequest) error {
	r, err := decodePayload[domain.PayrollDepositRequest](p.validate, req)
	if err != nil {
		return err
	}
	_, err = p.disbursement(ctx, r.DisbursementID)
	return err
}

// ConvertToRepoInputTransaction debits the employer's allocation and credits the employee the
// allocation converted at the payroll's exchange rate, rounded to cents. The payroll, its employer
// and the employee must exist once a disbursement references them; a missing one is corruption.
func (p *PayrollDepositProcessor) ConvertToRepoInputTransaction(ctx context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error) {
	r, err := decodePayload[domain.PayrollDepositRequest](p.validate, req)
	if err != nil {
		return nil, err
	}
	d, err := p.disbursement(ctx, r.DisbursementID)
	if err != nil {
		return nil, err
	}

	payroll, err := p.payrolls.GetByID(ctx, d.PayrollID)
	if err != nil {
		return nil, fmt.Errorf("loading payroll %s: %w", d.PayrollID, err)
	}
	if payroll == nil {
		return nil, p.corrupted(ctx, core_domain.AlertPayrollMissingForDisbursement,
			map[string]string{"payroll_id": d.PayrollID, "disbursement_id": d.ID},
			"payroll %s referenced by disbursement %s does not exist", d.PayrollID, d.ID)
	}
	if payroll.Status != payrolldomain.PayrollStatusInProgress {
		return nil, apperrors.NewSemanticValidationError("payroll %s is %s, deposits require %s", payroll.ID, payroll.Status, payrolldomain.PayrollStatusInProgress)
	}
	if payroll.ExchangeRate == nil || payroll.DebitCurrency == nil || payroll.CreditCurrency == nil {
		return nil, apperrors.NewSemanticValidationError("payroll %s has not been invoiced", payroll.ID)
	}

	employer, err := p.employers.GetByID(ctx, payroll.EmployerID)
	if err != nil {
		return nil, fmt.Errorf("loading employer %s: %w", payroll.EmployerID, err)
	}
	if employer == nil {
		return nil, p.corrupted(ctx, core_domain.AlertEmployerMissingForPayroll,
			map[string]string{"employer_id": payroll.EmployerID, "payroll_id": payroll.ID},
			"employer %s referenced by payroll %s does not exist", payroll.EmployerID, payroll.ID)
	}

	employee, err := p.employees.GetByID(ctx, d.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("loading employee %s: %w", d.EmployeeID, err)
	}
	if employee == nil {
		return nil, p.corrupted(ctx, core_domain.AlertEmployeeMissingForDisbursement,
			map[string]string{"employee_id": d.EmployeeID, "disbursement_id": d.ID},
			"employee %s referenced by disbursement %s does not exist", d.EmployeeID, d.ID)
	}

	in := newInput(req, d.AllocationAmount, *payroll.DebitCurrency)
	in.CreditConsumerID = strPtr(employee.ConsumerID)
	in.CreditCurrency = *payroll.CreditCurrency
	in.ExchangeRate = *payroll.ExchangeRate
	in.CreditAmount = payrolldomain.CreditAmountFor(d.AllocationAmount, *payroll.ExchangeRate)
	in.Memo = memo(fmt.Sprintf("Payroll %s from %s", payroll.ReferenceNumber, employer.Name))
	return in, nil
}

// PerformPostProcessing links the transaction to its disbursement, then starts the deposit workflow.
// Both steps are idempotent.
func (p *PayrollDepositProcessor) PerformPostProcessing(ctx context.Context, req domain.IntakeRequest, txn *domain.Transaction) error {
	r, err := decodePayload[domain.PayrollDepositRequest](p.validate, req)
	if err != nil {
		return err
	}
	if err := p.linker.LinkTransaction(ctx, r.DisbursementID, txn.ID); err != nil {
		return fmt.Errorf("linking disbursement %s: %w", r.DisbursementID, err)
	}
	return p.workflows.ExecutePayrollDepositWorkflow(ctx, txn.TransactionRef, r.DisbursementID)
}
