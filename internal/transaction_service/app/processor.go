package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// TransactionProcessor handles one workflow: it validates the request, converts it into the
// canonical transaction and runs side effects once that transaction exists.
//
// Validate and ConvertToRepoInputTransaction only read; they may be abandoned at any point.
// PerformPostProcessing must be idempotent because a create may be retried after it partly ran.
type TransactionProcessor interface {
	Validate(ctx context.Context, req domain.IntakeRequest) error
	ConvertToRepoInputTransaction(ctx context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error)
	PerformPostProcessing(ctx context.Context, req domain.IntakeRequest, txn *domain.Transaction) error
}

// Direction distinguishes the credit and debit flavour of processors that serve both.
type Direction int

const (
	DirectionCredit Direction = iota
	DirectionDebit
)

// decodePayload unmarshals the request payload strictly and runs static validation on it.
func decodePayload[T any](v *validator.Validate, req domain.IntakeRequest) (*T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(req.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, apperrors.NewSemanticValidationError("invalid %s payload: %v", req.WorkflowName, err)
	}
	if err := v.Struct(out); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	return &out, nil
}

// newInput fills the fields every workflow shares. Amounts default to a same-currency 1:1 movement.
func newInput(req domain.IntakeRequest, amount decimal.Decimal, currency string) *domain.InputTransaction {
	return &domain.InputTransaction{
		TransactionRef: req.TransactionRef,
		WorkflowName:   req.WorkflowName,
		DebitCurrency:  currency,
		CreditCurrency: currency,
		DebitAmount:    amount,
		CreditAmount:   amount,
		ExchangeRate:   decimal.NewFromInt(1),
		SessionKey:     req.SessionKey,
		RequestPayload: req.Payload,
	}
}

func memo(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strPtr(s string) *string { return &s }

// requireConsumer loads a consumer that the request references, failing with DoesNotExist.
func requireConsumer(ctx context.Context, consumers core_domain.ConsumerService, id string) (*core_domain.Consumer, error) {
	consumer, err := consumers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading consumer %s: %w", id, err)
	}
	if consumer == nil {
		return nil, apperrors.NewDoesNotExistError("consumer %s does not exist", id)
	}
	return consumer, nil
}

// requireBalance fails when the consumer's wallet cannot cover amount plus fees.
func requireBalance(consumer *core_domain.Consumer, amount decimal.Decimal, fees []domain.TransactionFee) error {
	needed := amount.Add(domain.SumFees(fees))
	if consumer.WalletBalance.LessThan(needed) {
		return apperrors.NewSemanticValidationError("insufficient balance: consumer %s has %s, needs %s",
			consumer.ID, consumer.WalletBalance.String(), needed.String())
	}
	return nil
}

// workflowStarted logs the outcome of triggering the workflow of txn and passes err through.
func workflowStarted(ctx context.Context, logger *slog.Logger, txn *domain.Transaction, err error) error {
	if err != nil {
		logger.WarnContext(ctx, "Workflow trigger failed", "transaction_ref", txn.TransactionRef, "error", err)
		return err
	}
	logger.DebugContext(ctx, "Workflow triggered", "transaction_ref", txn.TransactionRef)
	return nil
}
