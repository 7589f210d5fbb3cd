package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// CardAdjustmentProcessor books a card-network adjustment against a consumer wallet.
// One instance serves credits and another debits.
type CardAdjustmentProcessor struct {
	direction Direction
	validate  *validator.Validate
	consumers core_domain.ConsumerService
	workflows domain.WorkflowExecutor
	logger    *slog.Logger
}

func NewCardAdjustmentProcessor(direction Direction, v *validator.Validate, consumers core_domain.ConsumerService, workflows domain.WorkflowExecutor, logger *slog.Logger) *CardAdjustmentProcessor {
	return &CardAdjustmentProcessor{direction: direction, validate: v, consumers: consumers, workflows: workflows, logger: logger.With("component", "card_adjustment_processor")}
}

func (p *CardAdjustmentProcessor) Validate(ctx context.Context, req domain.IntakeRequest) error {
	r, err := decodePayload[domain.CardAdjustmentRequest](p.validate, req)
	if err != nil {
		return err
	}
	_, err = requireConsumer(ctx, p.consumers, r.ConsumerID)
	return err
}

func (p *CardAdjustmentProcessor) ConvertToRepoInputTransaction(ctx context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error) {
	r, err := decodePayload[domain.CardAdjustmentRequest](p.validate, req)
	if err != nil {
		return nil, err
	}
	in := newInput(req, r.Amount, r.Currency)
	if p.direction == DirectionCredit {
		in.CreditConsumerID = strPtr(r.ConsumerID)
	} else {
		in.DebitConsumerID = strPtr(r.ConsumerID)
	}
	in.Memo = memo(fmt.Sprintf("Card %s adjustment: %s", r.CardID, r.Reason))
	p.logger.InfoContext(ctx, "Card adjustment booked", "consumer_id", r.ConsumerID, "card_id", r.CardID, "amount", r.Amount.String(), "reason", r.Reason)
	return in, nil
}

func (p *CardAdjustmentProcessor) PerformPostProcessing(ctx context.Context, req domain.IntakeRequest, txn *domain.Transaction) error {
	return workflowStarted(ctx, p.logger, txn, p.workflows.ExecuteCardWorkflow(ctx, req.WorkflowName, txn.TransactionRef))
}

// CardReversalProcessor returns all or part of an earlier card withdrawal to the consumer.
type CardReversalProcessor struct {
	validate     *validator.Validate
	transactions domain.TransactionStore
	workflows    domain.WorkflowExecutor
	logger       *slog.Logger
}

func NewCardReversalProcessor(v *validator.Validate, transactions domain.TransactionStore, workflows domain.WorkflowExecutor, logger *slog.Logger) *CardReversalProcessor {
	return &CardReversalProcessor{validate: v, transactions: transactions, workflows: workflows, logger: logger.With("component", "card_reversal_processor")}
}

// original loads and checks the withdrawal being reversed. The reversal, together with every
// earlier live reversal of the same withdrawal, may not exceed the amount withdrawn.
func (p *CardReversalProcessor) original(ctx context.Context, ref string, r *domain.CardReversalRequest) (*domain.Transaction, error) {
	orig, err := p.transactions.FindByRef(ctx, r.OriginalTransactionRef)
	if err != nil {
		return nil, fmt.Errorf("loading original transaction %s: %w", r.OriginalTransactionRef, err)
	}
	if orig == nil {
		return nil, apperrors.NewDoesNotExistError("original transaction %s does not exist", r.OriginalTransactionRef)
	}
	switch {
	case orig.WorkflowName != domain.WorkflowCardWithdrawal:
		return nil, apperrors.NewSemanticValidationError("transaction %s is a %s, only card withdrawals can be reversed", orig.TransactionRef, orig.WorkflowName)
	case orig.DebitConsumerID == nil || *orig.DebitConsumerID != r.ConsumerID:
		return nil, apperrors.NewSemanticValidationError("transaction %s does not belong to consumer %s", orig.TransactionRef, r.ConsumerID)
	case orig.Status == domain.TransactionStatusFailed || orig.Status == domain.TransactionStatusExpired:
		return nil, apperrors.NewSemanticValidationError("transaction %s is %s and cannot be reversed", orig.TransactionRef, orig.Status)
	case r.Amount.GreaterThan(orig.DebitAmount):
		return nil, apperrors.NewSemanticValidationError("reversal amount %s exceeds original amount %s", r.Amount.String(), orig.DebitAmount.String())
	}

	reversed, err := p.transactions.SumReversals(ctx, orig.TransactionRef, ref)
	if err != nil {
		return nil, fmt.Errorf("summing reversals of %s: %w", orig.TransactionRef, err)
	}
	if reversed.Add(r.Amount).GreaterThan(orig.DebitAmount) {
		p.logger.WarnContext(ctx, "Reversal exceeds remaining amount", "original_transaction_ref", orig.TransactionRef,
			"already_reversed", reversed.String(), "requested", r.Amount.String(), "original_amount", orig.DebitAmount.String())
		return nil, apperrors.NewSemanticValidationError("reversal amount %s exceeds the %s left to reverse on %s",
			r.Amount.String(), orig.DebitAmount.Sub(reversed).String(), orig.TransactionRef)
	}
	return orig, nil
}

func (p *CardReversalProcessor) Validate(ctx context.Context, req domain.IntakeRequest) error {
	r, err := decodePayload[domain.CardReversalRequest](p.validate, req)
	if err != nil {
		return err
	}
	_, err = p.original(ctx, req.TransactionRef, r)
	return err
}

func (p *CardReversalProcessor) ConvertToRepoInputTransaction(ctx context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error) {
	r, err := decodePayload[domain.CardReversalRequest](p.validate, req)
	if err != nil {
		return nil, err
	}
	orig, err := p.original(ctx, req.TransactionRef, r)
	if err != nil {
		return nil, err
	}
	in := newInput(req, r.Amount, orig.DebitCurrency)
	in.CreditConsumerID = strPtr(r.ConsumerID)
	in.Memo = memo(fmt.Sprintf("Reversal of %s: %s", orig.TransactionRef, r.Reason))
	return in, nil
}

func (p *CardReversalProcessor) PerformPostProcessing(ctx context.Context, req domain.IntakeRequest, txn *domain.Transaction) error {
	return workflowStarted(ctx, p.logger, txn, p.workflows.ExecuteCardWorkflow(ctx, req.WorkflowName, txn.TransactionRef))
}

// CardWithdrawalProcessor debits a consumer wallet for a card purchase or ATM withdrawal.
type CardWithdrawalProcessor struct {
	validate  *validator.Validate
	consumers core_domain.ConsumerService
	workflows domain.WorkflowExecutor
	fees      domain.FeeSchedule
	logger    *slog.Logger
}

func NewCardWithdrawalProcessor(v *validator.Validate, consumers core_domain.ConsumerService, workflows domain.WorkflowExecutor, fees domain.FeeSchedule, logger *slog.Logger) *CardWithdrawalProcessor {
	return &CardWithdrawalProcessor{validate: v, consumers: consumers, workflows: workflows, fees: fees, logger: logger.With("component", "card_withdrawal_processor")}
}

func (p *CardWithdrawalProcessor) Validate(ctx context.Context, req domain.IntakeRequest) error {
	r, err := decodePayload[domain.CardWithdrawalRequest](p.validate, req)
	if err != nil {
		return err
	}
	consumer, err := requireConsumer(ctx, p.consumers, r.ConsumerID)
	if err != nil {
		return err
	}
	if err := requireBalance(consumer, r.Amount, p.fees.CardWithdrawalFees(r.Amount, r.Currency)); err != nil {
		p.logger.InfoContext(ctx, "Card withdrawal declined for balance", "consumer_id", r.ConsumerID, "card_id", r.CardID, "amount", r.Amount.String())
		return err
	}
	return nil
}

func (p *CardWithdrawalProcessor) ConvertToRepoInputTransaction(_ context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error) {
	r, err := decodePayload[domain.CardWithdrawalRequest](p.validate, req)
	if err != nil {
		return nil, err
	}
	in := newInput(req, r.Amount, r.Currency)
	in.DebitConsumerID = strPtr(r.ConsumerID)
	in.Memo = memo(fmt.Sprintf("Card %s at %s", r.CardID, r.MerchantName))
	in.Fees = p.fees.CardWithdrawalFees(r.Amount, r.Currency)
	return in, nil
}

func (p *CardWithdrawalProcessor) PerformPostProcessing(ctx context.Context, req domain.IntakeRequest, txn *domain.Transaction) error {
	return workflowStarted(ctx, p.logger, txn, p.workflows.ExecuteCardWorkflow(ctx, req.WorkflowName, txn.TransactionRef))
}
