package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aradpay/golang_services/internal/core_domain"
	limitdomain "github.com/aradpay/golang_services/internal/limit_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// LimitChecker is the part of the limit engine intake depends on.
type LimitChecker interface {
	CanTransact(ctx context.Context, req limitdomain.LimitRequest) (limitdomain.LimitDecision, error)
	Revalidate(ctx context.Context, req limitdomain.LimitRequest) (limitdomain.LimitDecision, error)
}

// TransactionService admits workflow requests into the ledger and drives transaction status.
type TransactionService struct {
	registry     *ProcessorRegistry
	transactions domain.TransactionStore
	events       domain.TransactionEventStore
	limits       LimitChecker
	alerts       core_domain.AlertService
	listeners    []domain.StatusListener
	logger       *slog.Logger
}

func NewTransactionService(
	registry *ProcessorRegistry,
	transactions domain.TransactionStore,
	events domain.TransactionEventStore,
	limits LimitChecker,
	alerts core_domain.AlertService,
	logger *slog.Logger,
) *TransactionService {
	return &TransactionService{
		registry:     registry,
		transactions: transactions,
		events:       events,
		limits:       limits,
		alerts:       alerts,
		logger:       logger.With("component", "transaction_service"),
	}
}

// AddStatusListener registers l for status changes. Call before serving requests.
func (s *TransactionService) AddStatusListener(l domain.StatusListener) {
	s.listeners = append(s.listeners, l)
}

// CreateTransaction runs the full intake for req and returns the canonical transaction.
//
// The call is idempotent on req.TransactionRef: a ref that already exists returns the stored
// transaction without re-running anything. When the transaction was committed but
// post-processing failed, both the transaction and a *domain.PostProcessingError are returned.
func (s *TransactionService) CreateTransaction(ctx context.Context, req domain.IntakeRequest) (txn *domain.Transaction, err error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		intakeRequestsCounter.WithLabelValues(string(req.WorkflowName), outcome).Inc()
		intakeDurationHist.WithLabelValues(string(req.WorkflowName)).Observe(time.Since(start).Seconds())
	}()

	if req.TransactionRef == "" {
		req.TransactionRef = uuid.NewString()
	} else {
		existing, err := s.transactions.FindByRef(ctx, req.TransactionRef)
		if err != nil {
			return nil, fmt.Errorf("looking up transaction %s: %w", req.TransactionRef, err)
		}
		if existing != nil {
			outcome = "duplicate"
			s.logger.InfoContext(ctx, "Transaction already exists, returning stored record", "transaction_ref", req.TransactionRef)
			return existing, nil
		}
	}
	logger := s.logger.With("transaction_ref", req.TransactionRef, "workflow_name", req.WorkflowName)

	processor, err := s.registry.Get(req.WorkflowName)
	if err != nil {
		s.alerts.RaiseCriticalAlert(ctx, core_domain.CriticalAlert{
			Key:     core_domain.AlertUnknownWorkflow,
			Message: err.Error(),
			Details: map[string]string{"workflow_name": string(req.WorkflowName), "transaction_ref": req.TransactionRef},
		})
		return nil, err
	}

	if err := processor.Validate(ctx, req); err != nil {
		outcome = outcomeFor(err)
		logger.InfoContext(ctx, "Intake request failed validation", "error", err)
		return nil, err
	}
	in, err := processor.ConvertToRepoInputTransaction(ctx, req)
	if err != nil {
		outcome = outcomeFor(err)
		logger.ErrorContext(ctx, "Failed to convert intake request", "error", err)
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, apperrors.NewUnknownError("processor for %s produced an invalid transaction: %v", req.WorkflowName, err)
	}

	limitReq, limited := limitRequestFor(in)
	if limited {
		decision, err := s.limits.CanTransact(ctx, limitReq)
		if err != nil {
			return nil, fmt.Errorf("checking limits: %w", err)
		}
		if !decision.Allowed() {
			outcome = "rejected_limit"
			logger.InfoContext(ctx, "Intake request rejected by limits", "status", decision.Status, "profile", decision.ProfileName)
			return nil, apperrors.NewSemanticValidationError("transaction rejected by limit %s of profile %s", decision.Status, decision.ProfileName)
		}
	}

	txn, err = s.transactions.Create(ctx, in)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			existing, findErr := s.transactions.FindByRef(ctx, in.TransactionRef)
			if findErr != nil {
				return nil, fmt.Errorf("loading concurrently created transaction %s: %w", in.TransactionRef, findErr)
			}
			if existing != nil {
				outcome = "duplicate"
				logger.InfoContext(ctx, "Transaction created concurrently, returning stored record")
				return existing, nil
			}
		}
		logger.ErrorContext(ctx, "Failed to create transaction", "error", err)
		return nil, fmt.Errorf("creating transaction %s: %w", in.TransactionRef, err)
	}
	outcome = "created"
	logger.InfoContext(ctx, "Transaction created", "transaction_id", txn.ID, "debit_amount", txn.DebitAmount.String(), "credit_amount", txn.CreditAmount.String())
	s.appendEvent(ctx, txn.ID, domain.EventKeyInitiated, "Transaction initiated", false, string(txn.WorkflowName))

	if err := processor.PerformPostProcessing(ctx, req, txn); err != nil {
		s.recordPostProcessingFailure(ctx, txn, err)
		return txn, &domain.PostProcessingError{TransactionRef: txn.TransactionRef, Err: err}
	}

	if limited {
		s.revalidate(ctx, txn, limitReq)
	}
	return txn, nil
}

// RetryPostProcessing re-runs the side effects of an existing transaction.
func (s *TransactionService) RetryPostProcessing(ctx context.Context, transactionRef string) (*domain.Transaction, error) {
	txn, err := s.transactions.FindByRef(ctx, transactionRef)
	if err != nil {
		return nil, fmt.Errorf("looking up transaction %s: %w", transactionRef, err)
	}
	if txn == nil {
		return nil, apperrors.NewDoesNotExistError("transaction %s does not exist", transactionRef)
	}
	processor, err := s.registry.Get(txn.WorkflowName)
	if err != nil {
		return nil, err
	}
	if err := processor.PerformPostProcessing(ctx, txn.IntakeRequest(), txn); err != nil {
		s.recordPostProcessingFailure(ctx, txn, err)
		return txn, &domain.PostProcessingError{TransactionRef: txn.TransactionRef, Err: err}
	}
	s.appendEvent(ctx, txn.ID, domain.EventKeyPostProcessRetried, "Post-processing completed on retry", true)
	s.logger.InfoContext(ctx, "Post-processing retried", "transaction_ref", transactionRef)
	return txn, nil
}

// UpdateStatus moves a transaction to status and notifies listeners once the change is stored.
// Listener failures do not undo the change; they are returned joined after all listeners ran.
// A report of the status the transaction already has notifies the listeners again, with previous
// equal to status, so a listener that failed on the first delivery runs on redelivery.
func (s *TransactionService) UpdateStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) (*domain.Transaction, error) {
	current, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction %s: %w", transactionID, err)
	}
	if current == nil {
		return nil, apperrors.NewDoesNotExistError("transaction %s does not exist", transactionID)
	}
	if current.Status == status {
		s.logger.InfoContext(ctx, "Status already applied, notifying listeners again", "transaction_id", transactionID, "status", status)
		return current, s.notifyListeners(ctx, current, status)
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, apperrors.NewSemanticValidationError("transaction %s cannot move from %s to %s", transactionID, current.Status, status)
	}

	updated, err := s.transactions.UpdateStatus(ctx, transactionID, current.Status, status)
	if err != nil {
		return nil, fmt.Errorf("updating status of transaction %s: %w", transactionID, err)
	}
	if updated == nil {
		return nil, apperrors.NewSemanticValidationError("transaction %s changed status concurrently, expected %s", transactionID, current.Status)
	}
	statusChangesCounter.WithLabelValues(string(updated.WorkflowName), string(status)).Inc()
	s.logger.InfoContext(ctx, "Transaction status changed", "transaction_id", transactionID, "from", current.Status, "to", status)
	s.appendEvent(ctx, updated.ID, domain.EventKeyStatusChanged, "Transaction status changed", false, string(current.Status), string(status))

	return updated, s.notifyListeners(ctx, updated, current.Status)
}

func (s *TransactionService) notifyListeners(ctx context.Context, txn *domain.Transaction, previous domain.TransactionStatus) error {
	var errs []error
	for _, l := range s.listeners {
		if err := l.OnTransactionStatusChanged(ctx, txn, previous); err != nil {
			s.logger.ErrorContext(ctx, "Status listener failed", "transaction_id", txn.ID, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("status listeners for transaction %s: %w", txn.ID, errors.Join(errs...))
	}
	return nil
}

// Events returns the audit trail of a transaction.
func (s *TransactionService) Events(ctx context.Context, transactionID string) ([]*domain.TransactionEvent, error) {
	return s.events.ListByTransaction(ctx, transactionID)
}

// revalidate re-checks limits once the transaction is counted, catching concurrent requests that
// both passed CanTransact. An overshoot is recorded, not reversed.
func (s *TransactionService) revalidate(ctx context.Context, txn *domain.Transaction, req limitdomain.LimitRequest) {
	decision, err := s.limits.Revalidate(ctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "Post-commit limit revalidation failed", "transaction_ref", txn.TransactionRef, "error", err)
		return
	}
	if decision.Allowed() {
		return
	}
	s.logger.WarnContext(ctx, "Committed transaction overshoots consumer limit",
		"transaction_ref", txn.TransactionRef, "consumer_id", req.ConsumerID, "status", decision.Status, "profile", decision.ProfileName)
	s.appendEvent(ctx, txn.ID, domain.EventKeyLimitOvershoot, "Limit exceeded after commit", true, string(decision.Status), decision.ProfileName)
}

func (s *TransactionService) recordPostProcessingFailure(ctx context.Context, txn *domain.Transaction, err error) {
	postProcessingFailuresCounter.WithLabelValues(string(txn.WorkflowName)).Inc()
	s.logger.ErrorContext(ctx, "Post-processing failed; transaction kept", "transaction_ref", txn.TransactionRef, "transaction_id", txn.ID, "error", err)
	s.appendEvent(ctx, txn.ID, domain.EventKeyPostProcessFailed, "Post-processing failed", true, err.Error())
}

// appendEvent writes an audit entry. The audit trail never fails the operation it records.
func (s *TransactionService) appendEvent(ctx context.Context, transactionID, key, message string, internal bool, params ...string) {
	ev, err := domain.NewTransactionEvent(transactionID, key, message, internal, params...)
	if err == nil {
		err = s.events.Append(ctx, ev)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to append transaction event", "transaction_id", transactionID, "event_key", key, "error", err)
	}
}

// limitRequestFor builds the limit check of a consumer-initiated transaction. Deposits count
// against the credited consumer; everything else against the debited one.
func limitRequestFor(in *domain.InputTransaction) (limitdomain.LimitRequest, bool) {
	txnType, ok := in.WorkflowName.LimitType()
	if !ok {
		return limitdomain.LimitRequest{}, false
	}
	consumerID := in.DebitConsumerID
	amount := in.DebitAmount
	if txnType == limitdomain.TransactionTypeDeposit {
		consumerID = in.CreditConsumerID
		amount = in.CreditAmount
	}
	if consumerID == nil {
		return limitdomain.LimitRequest{}, false
	}
	return limitdomain.LimitRequest{ConsumerID: *consumerID, Amount: amount, TransactionType: txnType}, true
}

func outcomeFor(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindSemanticValidation, apperrors.KindDoesNotExist:
		return "invalid"
	default:
		return "error"
	}
}
