package app

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// WalletDepositProcessor credits a consumer wallet with funds received from outside the ledger.
type WalletDepositProcessor struct {
	validate  *validator.Validate
	consumers core_domain.ConsumerService
	workflows domain.WorkflowExecutor
	logger    *slog.Logger
}

func NewWalletDepositProcessor(v *validator.Validate, consumers core_domain.ConsumerService, workflows domain.WorkflowExecutor, logger *slog.Logger) *WalletDepositProcessor {
	return &WalletDepositProcessor{validate: v, consumers: consumers, workflows: workflows, logger: logger.With("component", "wallet_deposit_processor")}
}

func (p *WalletDepositProcessor) Validate(ctx context.Context, req domain.IntakeRequest) error {
	r, err := decodePayload[domain.WalletDepositRequest](p.validate, req)
	if err != nil {
		return err
	}
	_, err = requireConsumer(ctx, p.consumers, r.ConsumerID)
	return err
}

func (p *WalletDepositProcessor) ConvertToRepoInputTransaction(_ context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error) {
	r, err := decodePayload[domain.WalletDepositRequest](p.validate, req)
	if err != nil {
		return nil, err
	}
	in := newInput(req, r.Amount, r.Currency)
	in.CreditConsumerID = strPtr(r.ConsumerID)
	in.Memo = memo(r.Memo)
	return in, nil
}

func (p *WalletDepositProcessor) PerformPostProcessing(ctx context.Context, _ domain.IntakeRequest, txn *domain.Transaction) error {
	return workflowStarted(ctx, p.logger, txn, p.workflows.ExecuteWalletDepositWorkflow(ctx, txn.TransactionRef))
}

// WalletWithdrawalProcessor debits a consumer wallet towards an external account.
type WalletWithdrawalProcessor struct {
	validate  *validator.Validate
	consumers core_domain.ConsumerService
	workflows domain.WorkflowExecutor
	fees      domain.FeeSchedule
	logger    *slog.Logger
}

func NewWalletWithdrawalProcessor(v *validator.Validate, consumers core_domain.ConsumerService, workflows domain.WorkflowExecutor, fees domain.FeeSchedule, logger *slog.Logger) *WalletWithdrawalProcessor {
	return &WalletWithdrawalProcessor{validate: v, consumers: consumers, workflows: workflows, fees: fees, logger: logger.With("component", "wallet_withdrawal_processor")}
}

func (p *WalletWithdrawalProcessor) Validate(ctx context.Context, req domain.IntakeRequest) error {
	r, err := decodePayload[domain.WalletWithdrawalRequest](p.validate, req)
	if err != nil {
		return err
	}
	consumer, err := requireConsumer(ctx, p.consumers, r.ConsumerID)
	if err != nil {
		return err
	}
	if err := requireBalance(consumer, r.Amount, p.fees.WalletWithdrawalFees(r.Currency)); err != nil {
		p.logger.InfoContext(ctx, "Withdrawal exceeds wallet balance", "consumer_id", r.ConsumerID, "amount", r.Amount.String())
		return err
	}
	return nil
}

func (p *WalletWithdrawalProcessor) ConvertToRepoInputTransaction(_ context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error) {
	r, err := decodePayload[domain.WalletWithdrawalRequest](p.validate, req)
	if err != nil {
		return nil, err
	}
	in := newInput(req, r.Amount, r.Currency)
	in.DebitConsumerID = strPtr(r.ConsumerID)
	in.Memo = memo(r.Memo)
	in.Fees = p.fees.WalletWithdrawalFees(r.Currency)
	return in, nil
}

func (p *WalletWithdrawalProcessor) PerformPostProcessing(ctx context.Context, _ domain.IntakeRequest, txn *domain.Transaction) error {
	return workflowStarted(ctx, p.logger, txn, p.workflows.ExecuteWalletWithdrawalWorkflow(ctx, txn.TransactionRef))
}

// WalletTransferProcessor moves funds between two consumer wallets.
type WalletTransferProcessor struct {
	validate  *validator.Validate
	consumers core_domain.ConsumerService
	workflows domain.WorkflowExecutor
	logger    *slog.Logger
}

func NewWalletTransferProcessor(v *validator.Validate, consumers core_domain.ConsumerService, workflows domain.WorkflowExecutor, logger *slog.Logger) *WalletTransferProcessor {
	return &WalletTransferProcessor{validate: v, consumers: consumers, workflows: workflows, logger: logger.With("component", "wallet_transfer_processor")}
}

func (p *WalletTransferProcessor) Validate(ctx context.Context, req domain.IntakeRequest) error {
	r, err := decodePayload[domain.WalletTransferRequest](p.validate, req)
	if err != nil {
		return err
	}
	source, err := requireConsumer(ctx, p.consumers, r.SourceConsumerID)
	if err != nil {
		return err
	}
	if _, err := requireConsumer(ctx, p.consumers, r.DestinationConsumerID); err != nil {
		return err
	}
	if err := requireBalance(source, r.Amount, nil); err != nil {
		p.logger.InfoContext(ctx, "Transfer exceeds wallet balance", "consumer_id", r.SourceConsumerID, "amount", r.Amount.String())
		return err
	}
	return nil
}

func (p *WalletTransferProcessor) ConvertToRepoInputTransaction(_ context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error) {
	r, err := decodePayload[domain.WalletTransferRequest](p.validate, req)
	if err != nil {
		return nil, err
	}
	in := newInput(req, r.Amount, r.Currency)
	in.DebitConsumerID = strPtr(r.SourceConsumerID)
	in.CreditConsumerID = strPtr(r.DestinationConsumerID)
	in.Memo = memo(r.Memo)
	return in, nil
}

func (p *WalletTransferProcessor) PerformPostProcessing(ctx context.Context, _ domain.IntakeRequest, txn *domain.Transaction) error {
	return workflowStarted(ctx, p.logger, txn, p.workflows.ExecuteWalletTransferWorkflow(ctx, txn.TransactionRef))
}
