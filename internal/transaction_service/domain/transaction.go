package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	limitdomain "github.com/aradpay/golang_services/internal/limit_service/domain"
)

// WorkflowName tags an intake request with the processor that handles it.
type WorkflowName string

const (
	WorkflowWalletDeposit        WorkflowName = "WALLET_DEPOSIT"
	WorkflowWalletWithdrawal     WorkflowName = "WALLET_WITHDRAWAL"
	WorkflowWalletTransfer       WorkflowName = "WALLET_TRANSFER"
	WorkflowCardCreditAdjustment WorkflowName = "CARD_CREDIT_ADJUSTMENT"
	WorkflowCardDebitAdjustment  WorkflowName = "CARD_DEBIT_ADJUSTMENT"
	WorkflowCardReversal         WorkflowName = "CARD_REVERSAL"
	WorkflowCardWithdrawal       WorkflowName = "CARD_WITHDRAWAL"
	WorkflowPayrollDeposit       WorkflowName = "PAYROLL_DEPOSIT"
	WorkflowCreditAdjustment     WorkflowName = "CREDIT_ADJUSTMENT"
	WorkflowDebitAdjustment      WorkflowName = "DEBIT_ADJUSTMENT"
)

// AllWorkflowNames lists every workflow the registry must serve.
var AllWorkflowNames = []WorkflowName{
	WorkflowWalletDeposit,
	WorkflowWalletWithdrawal,
	WorkflowWalletTransfer,
	WorkflowCardCreditAdjustment,
	WorkflowCardDebitAdjustment,
	WorkflowCardReversal,
	WorkflowCardWithdrawal,
	WorkflowPayrollDeposit,
	WorkflowCreditAdjustment,
	WorkflowDebitAdjustment,
}

func (w WorkflowName) Value() (driver.Value, error) {
	return string(w), nil
}

func (w *WorkflowName) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan WorkflowName: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*w = WorkflowName(strVal)
	for _, known := range AllWorkflowNames {
		if *w == known {
			return nil
		}
	}
	return fmt.Errorf("unknown WorkflowName value: %s", strVal)
}

// limitTypes maps consumer-initiated workflows to the limit category they count against.
// Workflows absent here are operator or system initiated and bypass the limit engine.
var limitTypes = map[WorkflowName]limitdomain.TransactionType{
	WorkflowWalletDeposit:    limitdomain.TransactionTypeDeposit,
	WorkflowWalletWithdrawal: limitdomain.TransactionTypeWithdrawal,
	WorkflowWalletTransfer:   limitdomain.TransactionTypeTransfer,
	WorkflowCardWithdrawal:   limitdomain.TransactionTypeWithdrawal,
}

// LimitType returns the limit category of a consumer-initiated workflow.
func (w WorkflowName) LimitType() (limitdomain.TransactionType, bool) {
	t, ok := limitTypes[w]
	return t, ok
}

// WorkflowsForLimitType returns the workflows counted under t. Deposits count on the credit
// side; withdrawals and transfers on the debit side.
func WorkflowsForLimitType(t limitdomain.TransactionType) (credit, debit []WorkflowName) {
	for _, w := range AllWorkflowNames {
		lt, ok := limitTypes[w]
		if !ok || (t != "" && lt != t) {
			continue
		}
		if lt == limitdomain.TransactionTypeDeposit {
			credit = append(credit, w)
		} else {
			debit = append(debit, w)
		}
	}
	return credit, debit
}

// TransactionStatus is the processing state of a canonical transaction.
type TransactionStatus string

const (
	TransactionStatusInitiated  TransactionStatus = "INITIATED"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusExpired    TransactionStatus = "EXPIRED"
)

// CountedStatuses are the statuses whose amounts count towards spend windows.
var CountedStatuses = []TransactionStatus{TransactionStatusInitiated, TransactionStatusProcessing, TransactionStatusCompleted}

func (s TransactionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *TransactionStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan TransactionStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*s = TransactionStatus(strVal)
	switch *s {
	case TransactionStatusInitiated, TransactionStatusProcessing, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusExpired:
		return nil
	default:
		return fmt.Errorf("unknown TransactionStatus value: %s", strVal)
	}
}

// IsTerminal reports whether no further status change is possible.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusExpired
}

// CanTransitionTo allows INITIATED -> PROCESSING and any non-terminal status -> a terminal one.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == TransactionStatusProcessing {
		return s == TransactionStatusInitiated
	}
	return next.IsTerminal()
}

// Transaction is the canonical ledger record every workflow is converted into.
type Transaction struct {
	ID               string            `json:"id"` // UUID
	TransactionRef   string            `json:"transaction_ref"`
	WorkflowName     WorkflowName      `json:"workflow_name"`
	DebitConsumerID  *string           `json:"debit_consumer_id,omitempty"`
	CreditConsumerID *string           `json:"credit_consumer_id,omitempty"`
	DebitCurrency    string            `json:"debit_currency"`
	CreditCurrency   string            `json:"credit_currency"`
	DebitAmount      decimal.Decimal   `json:"debit_amount"`
	CreditAmount     decimal.Decimal   `json:"credit_amount"`
	ExchangeRate     decimal.Decimal   `json:"exchange_rate"`
	Memo             *string           `json:"memo,omitempty"`
	SessionKey       string            `json:"session_key"`
	Status           TransactionStatus `json:"status"`
	Fees             []TransactionFee  `json:"fees,omitempty"`
	RequestPayload   json.RawMessage   `json:"-"` // Workflow payload as received, replayed on post-processing retries
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TotalFees sums the attached fees. Fees are charged in the debit currency.
func (t *Transaction) TotalFees() decimal.Decimal {
	return SumFees(t.Fees)
}

// InputTransaction is what a processor hands to the store; the store assigns id, status and timestamps.
type InputTransaction struct {
	TransactionRef   string
	WorkflowName     WorkflowName
	DebitConsumerID  *string
	CreditConsumerID *string
	DebitCurrency    string
	CreditCurrency   string
	DebitAmount      decimal.Decimal
	CreditAmount     decimal.Decimal
	ExchangeRate     decimal.Decimal
	Memo             *string
	SessionKey       string
	Fees             []TransactionFee
	RequestPayload   json.RawMessage
}

var errNoConsumer = errors.New("transaction must reference a debit or a credit consumer")

// Validate checks the invariants every canonical transaction holds regardless of workflow.
func (in *InputTransaction) Validate() error {
	if in.DebitConsumerID == nil && in.CreditConsumerID == nil {
		return errNoConsumer
	}
	if in.TransactionRef == "" {
		return errors.New("transaction ref is required")
	}
	if in.DebitAmount.IsNegative() || in.CreditAmount.IsNegative() {
		return errors.New("amounts must not be negative")
	}
	if !in.ExchangeRate.IsPositive() {
		return errors.New("exchange rate must be positive")
	}
	if in.DebitCurrency == "" || in.CreditCurrency == "" {
		return errors.New("debit and credit currency are required")
	}
	return nil
}

// FeeType classifies a TransactionFee.
type FeeType string

const (
	FeeTypeProcessing FeeType = "PROCESSING"
	FeeTypeNetwork    FeeType = "NETWORK"
	FeeTypeFX         FeeType = "FX"
)

func (f FeeType) Value() (driver.Value, error) {
	return string(f), nil
}

func (f *FeeType) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan FeeType: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*f = FeeType(strVal)
	switch *f {
	case FeeTypeProcessing, FeeTypeNetwork, FeeTypeFX:
		return nil
	default:
		return fmt.Errorf("unknown FeeType value: %s", strVal)
	}
}

type TransactionFee struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          FeeType         `json:"type"`
}

// IntakeRequest rebuilds the request the transaction was created from.
func (t *Transaction) IntakeRequest() IntakeRequest {
	return IntakeRequest{
		WorkflowName:   t.WorkflowName,
		TransactionRef: t.TransactionRef,
		SessionKey:     t.SessionKey,
		Payload:        t.RequestPayload,
	}
}

// PostProcessingError reports that a transaction was committed but its side effects were not
// all applied. The transaction stands; the side effects are retried separately.
type PostProcessingError struct {
	TransactionRef string
	Err            error
}

func (e *PostProcessingError) Error() string {
	return fmt.Sprintf("post-processing of transaction %s failed: %v", e.TransactionRef, e.Err)
}

func (e *PostProcessingError) Unwrap() error { return e.Err }
