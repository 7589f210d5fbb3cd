package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/platform/optional"
	txdomain "github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// TransactionIntake is the part of the transaction service the payroll fan-out uses.
type TransactionIntake interface {
	CreateTransaction(ctx context.Context, req txdomain.IntakeRequest) (*txdomain.Transaction, error)
	RetryPostProcessing(ctx context.Context, transactionRef string) (*txdomain.Transaction, error)
}

type CreatePayrollRequest struct {
	EmployerID      string    `json:"employer_id" validate:"required,uuid"`
	ReferenceNumber string    `json:"reference_number" validate:"required,max=64"`
	PayrollDate     time.Time `json:"payroll_date" validate:"required"`
	DebitCurrency   string    `json:"debit_currency" validate:"required,len=3,uppercase"`
	CreditCurrency  string    `json:"credit_currency" validate:"required,len=3,uppercase"`
}

// Allocation is one employee's share of a payroll.
type Allocation struct {
	EmployeeID string          `json:"employee_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// FundingDeposit is an incoming bank deposit that may pay for an invoiced payroll.
type FundingDeposit struct {
	PaymentTransactionID string          `json:"payment_transaction_id" validate:"required"`
	Amount               decimal.Decimal `json:"amount"`
	DocumentNumber       string          `json:"document_number"`
	MatchingName         string          `json:"matching_name"`
}

// PayrollService drives payroll batches through their lifecycle. TransitionStatus is the only
// path that changes a payroll's status.
type PayrollService struct {
	payrolls      domain.PayrollRepository
	disbursements domain.PayrollDisbursementRepository
	ledger        *DisbursementLedger
	employers     core_domain.EmployerService
	employees     core_domain.EmployeeService
	intake        TransactionIntake
	validate      *validator.Validate
	concurrency   int
	fanoutTimeout time.Duration
	logger        *slog.Logger
}

var _ txdomain.StatusListener = (*PayrollService)(nil)

func NewPayrollService(
	payrolls domain.PayrollRepository,
	disbursements domain.PayrollDisbursementRepository,
	ledger *DisbursementLedger,
	employers core_domain.EmployerService,
	employees core_domain.EmployeeService,
	intake TransactionIntake,
	concurrency int,
	fanoutTimeout time.Duration,
	logger *slog.Logger,
) *PayrollService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PayrollService{
		payrolls:      payrolls,
		disbursements: disbursements,
		ledger:        ledger,
		employers:     employers,
		employees:     employees,
		intake:        intake,
		validate:      validator.New(),
		concurrency:   concurrency,
		fanoutTimeout: fanoutTimeout,
		logger:        logger.With("component", "payroll_service"),
	}
}

// Get returns the payroll or a DoesNotExist error.
func (s *PayrollService) Get(ctx context.Context, payrollID string) (*domain.Payroll, error) {
	p, err := s.payrolls.GetByID(ctx, payrollID)
	if err != nil {
		return nil, fmt.Errorf("loading payroll %s: %w", payrollID, err)
	}
	if p == nil {
		return nil, apperrors.NewDoesNotExistError("payroll %s does not exist", payrollID)
	}
	return p, nil
}

// CreatePayroll opens a new batch. Batches always start CREATED.
func (s *PayrollService) CreatePayroll(ctx context.Context, req CreatePayrollRequest) (*domain.Payroll, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	employer, err := s.employers.GetByID(ctx, req.EmployerID)
	if err != nil {
		return nil, fmt.Errorf("loading employer %s: %w", req.EmployerID, err)
	}
	if employer == nil {
		return nil, apperrors.NewDoesNotExistError("employer %s does not exist", req.EmployerID)
	}

	now := time.Now().UTC()
	p := &domain.Payroll{
		ID:              uuid.NewString(),
		EmployerID:      req.EmployerID,
		ReferenceNumber: req.ReferenceNumber,
		PayrollDate:     req.PayrollDate,
		Status:          domain.PayrollStatusCreated,
		DebitCurrency:   &req.DebitCurrency,
		CreditCurrency:  &req.CreditCurrency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.payrolls.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Payroll created", "payroll_id", p.ID, "employer_id", p.EmployerID, "reference_number", p.ReferenceNumber)
	return p, nil
}

// PrepareDisbursements allocates the payroll across employees in parallel, then moves it to
// PREPARED with its debit total once every allocation has been written. Re-running after a
// partial failure is safe: an allocation that already exists with the same amount is kept, a
// different amount fails with AlreadyExists.
func (s *PayrollService) PrepareDisbursements(ctx context.Context, payrollID string, allocations []Allocation) (*domain.Payroll, error) {
	if len(allocations) == 0 {
		return nil, apperrors.NewSemanticValidationError("payroll %s needs at least one allocation", payrollID)
	}
	seen := make(map[string]struct{}, len(allocations))
	for _, a := range allocations {
		if _, dup := seen[a.EmployeeID]; dup {
			return nil, apperrors.NewSemanticValidationError("employee %s is allocated more than once in payroll %s", a.EmployeeID, payrollID)
		}
		seen[a.EmployeeID] = struct{}{}
	}
	payroll, err := s.Get(ctx, payrollID)
	if err != nil {
		return nil, err
	}
	if payroll.Status != domain.PayrollStatusCreated {
		return nil, apperrors.NewSemanticValidationError("payroll %s is %s, disbursements can only be prepared while %s", payrollID, payroll.Status, domain.PayrollStatusCreated)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, a := range allocations {
		a := a
		g.Go(func() error {
			employee, err := s.employees.GetByID(gctx, a.EmployeeID)
			if err != nil {
				return fmt.Errorf("loading employee %s: %w", a.EmployeeID, err)
			}
			if employee == nil {
				return apperrors.NewDoesNotExistError("employee %s does not exist", a.EmployeeID)
			}
			if employee.EmployerID != payroll.EmployerID {
				return apperrors.NewSemanticValidationError("employee %s does not work for employer %s", a.EmployeeID, payroll.EmployerID)
			}
			_, err = s.ledger.CreateDisbursement(gctx, payrollID, a.EmployeeID, a.Amount)
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				return s.keepExistingAllocation(gctx, payrollID, a, err)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Preparing disbursements failed", "payroll_id", payrollID, "error", err)
		return nil, err
	}

	total, err := s.ledger.TotalAllocation(ctx, payrollID)
	if err != nil {
		return nil, err
	}
	return s.TransitionStatus(ctx, payrollID, domain.PayrollStatusPrepared, domain.PayrollUpdate{
		TotalDebitAmount: optional.Some(total),
	})
}

// keepExistingAllocation accepts an allocation written by an earlier run only when it carries the
// same amount; otherwise it returns the AlreadyExists error it was given.
func (s *PayrollService) keepExistingAllocation(ctx context.Context, payrollID string, a Allocation, exists error) error {
	disbursements, err := s.disbursements.ListByPayroll(ctx, payrollID)
	if err != nil {
		return fmt.Errorf("listing disbursements of payroll %s: %w", payrollID, err)
	}
	for _, d := range disbursements {
		if d.EmployeeID != a.EmployeeID {
			continue
		}
		if d.AllocationAmount.Equal(a.Amount) {
			return nil
		}
		s.logger.WarnContext(ctx, "Allocation conflicts with an existing disbursement",
			"payroll_id", payrollID, "employee_id", a.EmployeeID,
			"existing_amount", d.AllocationAmount.String(), "requested_amount", a.Amount.String())
		return exists
	}
	return exists
}

// InvoicePayroll fixes the exchange rate and the credit total, moving the payroll to INVOICED.
// The credit total is the sum of each disbursement's converted, rounded amount.
func (s *PayrollService) InvoicePayroll(ctx context.Context, payrollID string, exchangeRate decimal.Decimal) (*domain.Payroll, error) {
	if !exchangeRate.IsPositive() {
		return nil, apperrors.NewSemanticValidationError("exchange rate must be positive, got %s", exchangeRate.String())
	}
	disbursements, err := s.disbursements.ListByPayroll(ctx, payrollID)
	if err != nil {
		return nil, fmt.Errorf("listing disbursements of payroll %s: %w", payrollID, err)
	}
	credit := decimal.Zero
	for _, d := range disbursements {
		credit = credit.Add(domain.CreditAmountFor(d.AllocationAmount, exchangeRate))
	}
	return s.TransitionStatus(ctx, payrollID, domain.PayrollStatusInvoiced, domain.PayrollUpdate{
		ExchangeRate:      optional.Some(exchangeRate),
		TotalCreditAmount: optional.Some(credit),
	})
}

// HandleFundingDeposit reconciles an incoming deposit against invoiced payrolls and marks the
// single match FUNDED. No match is DoesNotExist; more than one match is left for an operator.
func (s *PayrollService) HandleFundingDeposit(ctx context.Context, deposit FundingDeposit) (*domain.Payroll, error) {
	if err := s.validate.Struct(deposit); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	if !deposit.Amount.IsPositive() {
		return nil, apperrors.NewSemanticValidationError("deposit amount must be positive, got %s", deposit.Amount.String())
	}
	matches, err := s.ledger.MatchInvoicedPayrolls(ctx, deposit.Amount, deposit.DocumentNumber, deposit.MatchingName)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		fundingMatchesCounter.WithLabelValues("unmatched").Inc()
		s.logger.WarnContext(ctx, "Funding deposit matches no invoiced payroll", "payment_transaction_id", deposit.PaymentTransactionID, "amount", deposit.Amount.String())
		return nil, apperrors.NewDoesNotExistError("no invoiced payroll matches deposit %s of %s", deposit.PaymentTransactionID, deposit.Amount.String())
	case 1:
		fundingMatchesCounter.WithLabelValues("matched").Inc()
		return s.MarkFunded(ctx, matches[0].ID, deposit.PaymentTransactionID)
	default:
		fundingMatchesCounter.WithLabelValues("ambiguous").Inc()
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		s.logger.WarnContext(ctx, "Funding deposit matches several payrolls", "payment_transaction_id", deposit.PaymentTransactionID, "payroll_ids", ids)
		return nil, apperrors.NewSemanticValidationError("deposit %s matches %d invoiced payrolls", deposit.PaymentTransactionID, len(matches))
	}
}

// MarkFunded records the funding deposit of a payroll. Funding is observed externally, so the
// payroll may be in any state funding is not blocked from.
func (s *PayrollService) MarkFunded(ctx context.Context, payrollID, paymentTransactionID string) (*domain.Payroll, error) {
	return s.TransitionStatus(ctx, payrollID, domain.PayrollStatusFunded, domain.PayrollUpdate{
		PaymentTransactionID: optional.Some(paymentTransactionID),
	})
}

// StartDisbursement moves a FUNDED payroll to IN_PROGRESS and submits one PAYROLL_DEPOSIT per
// disbursement. Calling it again on an IN_PROGRESS payroll resumes the disbursements that have
// no linked transaction yet. The returned error joins every disbursement that failed.
func (s *PayrollService) StartDisbursement(ctx context.Context, payrollID string) (*domain.Payroll, error) {
	payroll, err := s.Get(ctx, payrollID)
	if err != nil {
		return nil, err
	}
	switch payroll.Status {
	case domain.PayrollStatusFunded:
		payroll, err = s.TransitionStatus(ctx, payrollID, domain.PayrollStatusInProgress, domain.PayrollUpdate{})
		if err != nil {
			return nil, err
		}
	case domain.PayrollStatusInProgress:
		s.logger.InfoContext(ctx, "Resuming disbursement", "payroll_id", payrollID)
	default:
		return nil, apperrors.NewSemanticValidationError("payroll %s is %s, disbursement requires %s", payrollID, payroll.Status, domain.PayrollStatusFunded)
	}

	disbursements, err := s.disbursements.ListByPayroll(ctx, payrollID)
	if err != nil {
		return payroll, fmt.Errorf("listing disbursements of payroll %s: %w", payrollID, err)
	}

	if s.fanoutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fanoutTimeout)
		defer cancel()
	}
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, d := range disbursements {
		if d.TransactionID != nil {
			continue
		}
		d := d
		g.Go(func() error {
			if err := s.disburse(ctx, d); err != nil {
				disbursementFanoutCounter.WithLabelValues("failed").Inc()
				s.logger.ErrorContext(ctx, "Disbursement deposit failed", "payroll_id", payrollID, "disbursement_id", d.ID, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("disbursement %s: %w", d.ID, err))
				mu.Unlock()
				return nil
			}
			disbursementFanoutCounter.WithLabelValues("submitted").Inc()
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return payroll, errors.Join(errs...)
	}
	s.logger.InfoContext(ctx, "Disbursement deposits submitted", "payroll_id", payrollID, "disbursements", len(disbursements))
	return payroll, nil
}

// disburse submits the deposit of one disbursement. When the transaction already existed, or
// its post-processing failed, the link may be missing; post-processing is retried until it holds.
func (s *PayrollService) disburse(ctx context.Context, d *domain.PayrollDisbursement) error {
	ref := domain.DisbursementTransactionRef(d.ID)
	payload, err := json.Marshal(txdomain.PayrollDepositRequest{DisbursementID: d.ID})
	if err != nil {
		return err
	}
	_, err = s.intake.CreateTransaction(ctx, txdomain.IntakeRequest{
		WorkflowName:   txdomain.WorkflowPayrollDeposit,
		TransactionRef: ref,
		Payload:        payload,
	})
	var ppErr *txdomain.PostProcessingError
	if err != nil && !errors.As(err, &ppErr) {
		return err
	}

	current, err := s.disbursements.GetByID(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("reloading disbursement: %w", err)
	}
	if current != nil && current.TransactionID != nil {
		return nil
	}
	if _, err := s.intake.RetryPostProcessing(ctx, ref); err != nil {
		return err
	}
	return nil
}

// OnTransactionStatusChanged settles a disbursement when its deposit completes and moves the
// payroll to RECEIPT once every disbursement is settled.
func (s *PayrollService) OnTransactionStatusChanged(ctx context.Context, txn *txdomain.Transaction, previous txdomain.TransactionStatus) error {
	if txn.WorkflowName != txdomain.WorkflowPayrollDeposit {
		return nil
	}
	switch txn.Status {
	case txdomain.TransactionStatusCompleted, txdomain.TransactionStatusFailed, txdomain.TransactionStatusExpired:
	default:
		return nil
	}

	var req txdomain.PayrollDepositRequest
	if err := json.Unmarshal(txn.RequestPayload, &req); err != nil || req.DisbursementID == "" {
		return apperrors.NewUnknownError("payroll deposit %s carries no disbursement id", txn.TransactionRef)
	}
	if txn.Status != txdomain.TransactionStatusCompleted {
		s.ledger.ReportDeadDeposit(ctx, req.DisbursementID, txn.ID, string(txn.Status))
		return nil
	}
	// The link may not have been written if post-processing failed before the workflow ran.
	if err := s.ledger.LinkTransaction(ctx, req.DisbursementID, txn.ID); err != nil {
		return err
	}
	if err := s.ledger.Settle(ctx, req.DisbursementID, txn.CreditAmount); err != nil {
		return err
	}

	d, err := s.disbursements.GetByID(ctx, req.DisbursementID)
	if err != nil {
		return fmt.Errorf("loading disbursement %s: %w", req.DisbursementID, err)
	}
	if d == nil {
		return apperrors.NewDoesNotExistError("disbursement %s does not exist", req.DisbursementID)
	}
	s.logger.InfoContext(ctx, "Disbursement settled", "payroll_id", d.PayrollID, "disbursement_id", d.ID, "credit_amount", txn.CreditAmount.String(), "previous", previous)
	return s.advanceToReceipt(ctx, d.PayrollID)
}

func (s *PayrollService) advanceToReceipt(ctx context.Context, payrollID string) error {
	unsettled, err := s.disbursements.CountUnsettledByPayroll(ctx, payrollID)
	if err != nil {
		return fmt.Errorf("counting unsettled disbursements of payroll %s: %w", payrollID, err)
	}
	if unsettled > 0 {
		return nil
	}
	_, err = s.TransitionStatus(ctx, payrollID, domain.PayrollStatusReceipt, domain.PayrollUpdate{})
	if err == nil {
		return nil
	}
	// Another settlement may have advanced the payroll first.
	current, getErr := s.Get(ctx, payrollID)
	if getErr == nil && current.Status == domain.PayrollStatusReceipt {
		return nil
	}
	return err
}

// CompletePayroll closes a payroll whose receipt has been issued.
func (s *PayrollService) CompletePayroll(ctx context.Context, payrollID string) (*domain.Payroll, error) {
	return s.TransitionStatus(ctx, payrollID, domain.PayrollStatusCompleted, domain.PayrollUpdate{
		CompletedTimestamp: optional.Some(time.Now().UTC()),
	})
}

func (s *PayrollService) ExpirePayroll(ctx context.Context, payrollID string) (*domain.Payroll, error) {
	return s.TransitionStatus(ctx, payrollID, domain.PayrollStatusExpired, domain.PayrollUpdate{})
}

func (s *PayrollService) OpenInvestigation(ctx context.Context, payrollID string) (*domain.Payroll, error) {
	return s.TransitionStatus(ctx, payrollID, domain.PayrollStatusInvestigation, domain.PayrollUpdate{})
}

// TransitionStatus moves a payroll to status `to`, applying update in the same write. A transition
// outside the lifecycle, or one that loses a race with another writer, is a SemanticValidation
// error naming both states.
func (s *PayrollService) TransitionStatus(ctx context.Context, payrollID string, to domain.PayrollStatus, update domain.PayrollUpdate) (*domain.Payroll, error) {
	current, err := s.Get(ctx, payrollID)
	if err != nil {
		return nil, err
	}
	from := current.Status
	if !domain.IsTransitionAllowed(from, to) {
		return nil, apperrors.NewSemanticValidationError("payroll %s cannot move from %s to %s", payrollID, from, to)
	}

	updated, err := s.payrolls.Transition(ctx, payrollID, from, to, update)
	if err != nil {
		return nil, fmt.Errorf("transitioning payroll %s from %s to %s: %w", payrollID, from, to, err)
	}
	if updated == nil {
		return nil, apperrors.NewSemanticValidationError("payroll %s cannot move from %s to %s: it changed concurrently", payrollID, from, to)
	}
	payrollTransitionsCounter.WithLabelValues(string(from), string(to)).Inc()
	s.logger.InfoContext(ctx, "Payroll status changed", "payroll_id", payrollID, "from", from, "to", to)
	return updated, nil
}
