// Package nats connects the transaction service to the message bus: workflow requests and status
// reports come in, workflow executions go out.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/platform/messagebroker"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// TransactionIntake is the part of the transaction service the consumers drive.
type TransactionIntake interface {
	CreateTransaction(ctx context.Context, req domain.IntakeRequest) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) (*domain.Transaction, error)
}

// IntakeReply is the answer sent back on request-reply intake.
// Transaction is set whenever a transaction exists for the request, including after a
// post-processing failure; Error is set whenever the call did not fully succeed.
type IntakeReply struct {
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Error       *ReplyError         `json:"error,omitempty"`
}

type ReplyError struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// StatusReport is what the workflow engine publishes when a transaction settles or fails.
type StatusReport struct {
	TransactionID string                   `json:"transaction_id"`
	Status        domain.TransactionStatus `json:"status"`
}

// IntakeConsumer turns bus messages into calls on the transaction service.
type IntakeConsumer struct {
	client         messagebroker.NATSClient
	intake         TransactionIntake
	handlerTimeout time.Duration
	logger         *slog.Logger
	subs           []messagebroker.Subscription
}

func NewIntakeConsumer(client messagebroker.NATSClient, intake TransactionIntake, handlerTimeout time.Duration, logger *slog.Logger) *IntakeConsumer {
	return &IntakeConsumer{
		client:         client,
		intake:         intake,
		handlerTimeout: handlerTimeout,
		logger:         logger.With("component", "intake_consumer"),
	}
}

// Start subscribes to the intake and status subjects under queueGroup so replicas share the load.
func (c *IntakeConsumer) Start(ctx context.Context, intakeSubject, statusSubject, queueGroup string) error {
	sub, err := c.client.Subscribe(ctx, intakeSubject, queueGroup, c.HandleIntake)
	if err != nil {
		return fmt.Errorf("failed to subscribe to intake subject '%s': %w", intakeSubject, err)
	}
	c.subs = append(c.subs, sub)

	sub, err = c.client.Subscribe(ctx, statusSubject, queueGroup, c.HandleStatusReport)
	if err != nil {
		c.Stop()
		return fmt.Errorf("failed to subscribe to status subject '%s': %w", statusSubject, err)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Stop removes every subscription made by Start.
func (c *IntakeConsumer) Stop() {
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("Failed to unsubscribe", "error", err)
		}
	}
	c.subs = nil
}

// HandleIntake processes one IntakeRequest envelope and replies when the sender asked for it.
func (c *IntakeConsumer) HandleIntake(msg messagebroker.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), c.handlerTimeout)
	defer cancel()

	var req domain.IntakeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal intake request", "error", err, "subject", msg.Subject)
		c.reply(ctx, msg, nil, apperrors.Wrap(apperrors.KindSemanticValidation, err, "malformed intake request"))
		return
	}

	txn, err := c.intake.CreateTransaction(ctx, req)
	if err != nil {
		c.logger.InfoContext(ctx, "Intake request did not complete", "workflow_name", req.WorkflowName, "transaction_ref", req.TransactionRef, "error", err)
	}
	c.reply(ctx, msg, txn, err)
}

// HandleStatusReport applies a status change reported by the workflow engine.
func (c *IntakeConsumer) HandleStatusReport(msg messagebroker.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), c.handlerTimeout)
	defer cancel()

	var report StatusReport
	if err := json.Unmarshal(msg.Data, &report); err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal status report", "error", err, "data", string(msg.Data))
		return
	}
	if _, err := c.intake.UpdateStatus(ctx, report.TransactionID, report.Status); err != nil {
		c.logger.ErrorContext(ctx, "Failed to apply status report", "transaction_id", report.TransactionID, "status", report.Status, "error", err)
	}
}

func (c *IntakeConsumer) reply(ctx context.Context, msg messagebroker.Message, txn *domain.Transaction, err error) {
	out := IntakeReply{Transaction: txn}
	if err != nil {
		kind := apperrors.KindOf(err)
		var ppErr *domain.PostProcessingError
		if errors.As(err, &ppErr) {
			kind = apperrors.KindUnknown
		}
		out.Error = &ReplyError{Kind: kind, Message: err.Error()}
	}
	data, mErr := json.Marshal(out)
	if mErr != nil {
		c.logger.ErrorContext(ctx, "Failed to marshal intake reply", "error", mErr)
		return
	}
	if rErr := msg.Respond(data); rErr != nil {
		c.logger.WarnContext(ctx, "Failed to send intake reply", "subject", msg.Reply, "error", rErr)
	}
}
