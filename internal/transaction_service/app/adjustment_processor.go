package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// AdjustmentProcessor books an operator correction. One instance serves credits and another debits.
type AdjustmentProcessor struct {
	direction Direction
	validate  *validator.Validate
	consumers core_domain.ConsumerService
	workflows domain.WorkflowExecutor
	logger    *slog.Logger
}

func NewAdjustmentProcessor(direction Direction, v *validator.Validate, consumers core_domain.ConsumerService, workflows domain.WorkflowExecutor, logger *slog.Logger) *AdjustmentProcessor {
	return &AdjustmentProcessor{direction: direction, validate: v, consumers: consumers, workflows: workflows, logger: logger.With("component", "adjustment_processor")}
}

func (p *AdjustmentProcessor) Validate(ctx context.Context, req domain.IntakeRequest) error {
	r, err := decodePayload[domain.AdjustmentRequest](p.validate, req)
	if err != nil {
		return err
	}
	_, err = requireConsumer(ctx, p.consumers, r.ConsumerID)
	return err
}

func (p *AdjustmentProcessor) ConvertToRepoInputTransaction(ctx context.Context, req domain.IntakeRequest) (*domain.InputTransaction, error) {
	r, err := decodePayload[domain.AdjustmentRequest](p.validate, req)
	if err != nil {
		return nil, err
	}
	in := newInput(req, r.Amount, r.Currency)
	if p.direction == DirectionCredit {
		in.CreditConsumerID = strPtr(r.ConsumerID)
	} else {
		in.DebitConsumerID = strPtr(r.ConsumerID)
	}
	in.Memo = memo(fmt.Sprintf("%s (by %s)", r.Reason, r.OperatorID))
	p.logger.InfoContext(ctx, "Operator adjustment booked", "workflow_name", req.WorkflowName, "consumer_id", r.ConsumerID, "operator_id", r.OperatorID, "amount", r.Amount.String())
	return in, nil
}

func (p *AdjustmentProcessor) PerformPostProcessing(ctx context.Context, req domain.IntakeRequest, txn *domain.Transaction) error {
	return workflowStarted(ctx, p.logger, txn, p.workflows.ExecuteAdjustmentWorkflow(ctx, req.WorkflowName, txn.TransactionRef))
}
