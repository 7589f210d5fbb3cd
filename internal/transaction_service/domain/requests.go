package domain

import (
	"encoding/json"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// IntakeRequest is the envelope every workflow request arrives in. TransactionRef is the caller's
// idempotency key; when empty a fresh one is generated and the request is not retry-safe.
type IntakeRequest struct {
	WorkflowName   WorkflowName    `json:"workflow_name"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	SessionKey     string          `json:"session_key,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

type WalletDepositRequest struct {
	ConsumerID        string          `json:"consumer_id" validate:"required,uuid"`
	Amount            decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency          string          `json:"currency" validate:"required,len=3,uppercase"`
	ExternalReference string          `json:"external_reference" validate:"required,max=128"`
	Memo              string          `json:"memo,omitempty" validate:"max=255"`
}

type WalletWithdrawalRequest struct {
	ConsumerID         string          `json:"consumer_id" validate:"required,uuid"`
	Amount             decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency           string          `json:"currency" validate:"required,len=3,uppercase"`
	DestinationAccount string          `json:"destination_account" validate:"required,max=64"`
	Memo               string          `json:"memo,omitempty" validate:"max=255"`
}

type WalletTransferRequest struct {
	SourceConsumerID      string          `json:"source_consumer_id" validate:"required,uuid"`
	DestinationConsumerID string          `json:"destination_consumer_id" validate:"required,uuid,nefield=SourceConsumerID"`
	Amount                decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency              string          `json:"currency" validate:"required,len=3,uppercase"`
	Memo                  string          `json:"memo,omitempty" validate:"max=255"`
}

// CardAdjustmentRequest serves both card credit and card debit adjustments.
type CardAdjustmentRequest struct {
	ConsumerID string          `json:"consumer_id" validate:"required,uuid"`
	CardID     string          `json:"card_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency   string          `json:"currency" validate:"required,len=3,uppercase"`
	Reason     string          `json:"reason" validate:"required,max=255"`
}

type CardReversalRequest struct {
	ConsumerID             string          `json:"consumer_id" validate:"required,uuid"`
	OriginalTransactionRef string          `json:"original_transaction_ref" validate:"required"`
	Amount                 decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason                 string          `json:"reason" validate:"required,max=255"`
}

type CardWithdrawalRequest struct {
	ConsumerID   string          `json:"consumer_id" validate:"required,uuid"`
	CardID       string          `json:"card_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency     string          `json:"currency" validate:"required,len=3,uppercase"`
	MerchantName string          `json:"merchant_name" validate:"required,max=128"`
}

type PayrollDepositRequest struct {
	DisbursementID string `json:"disbursement_id" validate:"required,uuid"`
}

// AdjustmentRequest serves both generic credit and debit adjustments made by operators.
type AdjustmentRequest struct {
	ConsumerID string          `json:"consumer_id" validate:"required,uuid"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency   string          `json:"currency" validate:"required,len=3,uppercase"`
	Reason     string          `json:"reason" validate:"required,max=255"`
	OperatorID string          `json:"operator_id" validate:"required"`
}

// NewRequestValidator returns a validator that understands decimal amounts.
func NewRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}
