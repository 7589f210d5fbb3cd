package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxEventParams bounds the positional parameters of a TransactionEvent.
const MaxEventParams = 5

// Event keys used for localisation of audit trail entries.
const (
	EventKeyInitiated          = "transaction.initiated"
	EventKeyStatusChanged      = "transaction.status_changed"
	EventKeyPostProcessFailed  = "transaction.post_processing_failed"
	EventKeyLimitOvershoot     = "transaction.limit_overshoot"
	EventKeyPostProcessRetried = "transaction.post_processing_retried"
)

// TransactionEvent is an append-only audit entry. Internal events are hidden from the consumer.
type TransactionEvent struct {
	ID            string    `json:"id"` // UUID
	TransactionID string    `json:"transaction_id"`
	Message       string    `json:"message"`
	Key           *string   `json:"key,omitempty"`
	Params        []string  `json:"params,omitempty"`
	Internal      bool      `json:"internal"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewTransactionEvent builds an event, rejecting more than MaxEventParams parameters.
func NewTransactionEvent(transactionID, key, message string, internal bool, params ...string) (*TransactionEvent, error) {
	if len(params) > MaxEventParams {
		return nil, fmt.Errorf("transaction event %q has %d params, at most %d allowed", key, len(params), MaxEventParams)
	}
	ev := &TransactionEvent{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		Message:       message,
		Params:        params,
		Internal:      internal,
		CreatedAt:     time.Now().UTC(),
	}
	if key != "" {
		ev.Key = &key
	}
	return ev, nil
}
