// Package nats feeds bank funding deposits from the message bus into the payroll service.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradpay/golang_services/internal/payroll_service/app"
	"github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/platform/messagebroker"
)

type FundingHandler interface {
	HandleFundingDeposit(ctx context.Context, deposit app.FundingDeposit) (*domain.Payroll, error)
}

type FundingConsumer struct {
	client         messagebroker.NATSClient
	handler        FundingHandler
	handlerTimeout time.Duration
	logger         *slog.Logger
	sub            messagebroker.Subscription
}

func NewFundingConsumer(client messagebroker.NATSClient, handler FundingHandler, handlerTimeout time.Duration, logger *slog.Logger) *FundingConsumer {
	return &FundingConsumer{
		client:         client,
		handler:        handler,
		handlerTimeout: handlerTimeout,
		logger:         logger.With("component", "funding_consumer"),
	}
}

func (c *FundingConsumer) Start(ctx context.Context, subject, queueGroup string) error {
	sub, err := c.client.Subscribe(ctx, subject, queueGroup, c.HandleDeposit)
	if err != nil {
		return fmt.Errorf("failed to subscribe to funding subject '%s': %w", subject, err)
	}
	c.sub = sub
	return nil
}

func (c *FundingConsumer) Stop() {
	if c.sub == nil {
		return
	}
	if err := c.sub.Unsubscribe(); err != nil {
		c.logger.Warn("Failed to unsubscribe", "error", err)
	}
	c.sub = nil
}

// HandleDeposit reconciles one deposit. Unmatched and ambiguous deposits are logged for
// manual reconciliation; they are not redelivered.
func (c *FundingConsumer) HandleDeposit(msg messagebroker.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), c.handlerTimeout)
	defer cancel()

	var deposit app.FundingDeposit
	if err := json.Unmarshal(msg.Data, &deposit); err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal funding deposit", "error", err, "data", string(msg.Data))
		return
	}

	payroll, err := c.handler.HandleFundingDeposit(ctx, deposit)
	switch {
	case err == nil:
		c.logger.InfoContext(ctx, "Deposit funded payroll", "payment_transaction_id", deposit.PaymentTransactionID, "payroll_id", payroll.ID)
	case apperrors.KindOf(err) == apperrors.KindDoesNotExist:
		c.logger.InfoContext(ctx, "Deposit matched no invoiced payroll", "payment_transaction_id", deposit.PaymentTransactionID, "amount", deposit.Amount.String())
	case apperrors.KindOf(err) == apperrors.KindSemanticValidation:
		c.logger.WarnContext(ctx, "Deposit needs manual reconciliation", "payment_transaction_id", deposit.PaymentTransactionID, "error", err)
	default:
		c.logger.ErrorContext(ctx, "Failed to process funding deposit", "payment_transaction_id", deposit.PaymentTransactionID, "error", err)
	}
}
