package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aradpay/golang_services/internal/platform/messagebroker"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// WorkflowStart is the message that asks the workflow engine to run a workflow for a transaction.
type WorkflowStart struct {
	WorkflowName   domain.WorkflowName `json:"workflow_name"`
	TransactionRef string              `json:"transaction_ref"`
	DisbursementID string              `json:"disbursement_id,omitempty"`
}

// WorkflowExecutor starts workflows by publishing to JetStream. Every publish carries the
// message id "<workflow>:<transaction_ref>", so repeated starts inside the stream's duplicate
// window reach the engine once.
type WorkflowExecutor struct {
	client        messagebroker.NATSClient
	subjectPrefix string
	logger        *slog.Logger
}

var _ domain.WorkflowExecutor = (*WorkflowExecutor)(nil)

func NewWorkflowExecutor(client messagebroker.NATSClient, subjectPrefix string, logger *slog.Logger) *WorkflowExecutor {
	return &WorkflowExecutor{client: client, subjectPrefix: subjectPrefix, logger: logger.With("component", "workflow_executor")}
}

// Subject is the subject workflow is published on.
func (e *WorkflowExecutor) Subject(workflow domain.WorkflowName) string {
	return e.subjectPrefix + "." + strings.ToLower(string(workflow))
}

func (e *WorkflowExecutor) start(ctx context.Context, msg WorkflowStart) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling %s start: %w", msg.WorkflowName, err)
	}
	msgID := string(msg.WorkflowName) + ":" + msg.TransactionRef
	if err := e.client.PublishDeduplicated(ctx, e.Subject(msg.WorkflowName), msgID, data); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "Workflow started", "workflow_name", msg.WorkflowName, "transaction_ref", msg.TransactionRef)
	return nil
}

func (e *WorkflowExecutor) ExecuteWalletDepositWorkflow(ctx context.Context, transactionRef string) error {
	return e.start(ctx, WorkflowStart{WorkflowName: domain.WorkflowWalletDeposit, TransactionRef: transactionRef})
}

func (e *WorkflowExecutor) ExecuteWalletWithdrawalWorkflow(ctx context.Context, transactionRef string) error {
	return e.start(ctx, WorkflowStart{WorkflowName: domain.WorkflowWalletWithdrawal, TransactionRef: transactionRef})
}

func (e *WorkflowExecutor) ExecuteWalletTransferWorkflow(ctx context.Context, transactionRef string) error {
	return e.start(ctx, WorkflowStart{WorkflowName: domain.WorkflowWalletTransfer, TransactionRef: transactionRef})
}

func (e *WorkflowExecutor) ExecuteCardWorkflow(ctx context.Context, workflow domain.WorkflowName, transactionRef string) error {
	return e.start(ctx, WorkflowStart{WorkflowName: workflow, TransactionRef: transactionRef})
}

func (e *WorkflowExecutor) ExecuteAdjustmentWorkflow(ctx context.Context, workflow domain.WorkflowName, transactionRef string) error {
	return e.start(ctx, WorkflowStart{WorkflowName: workflow, TransactionRef: transactionRef})
}

func (e *WorkflowExecutor) ExecutePayrollDepositWorkflow(ctx context.Context, transactionRef, disbursementID string) error {
	return e.start(ctx, WorkflowStart{WorkflowName: domain.WorkflowPayrollDeposit, TransactionRef: transactionRef, DisbursementID: disbursementID})
}
