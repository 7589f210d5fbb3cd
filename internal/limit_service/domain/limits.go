package domain

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the limit-relevant category of a transaction.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
)

func (tt TransactionType) Value() (driver.Value, error) {
	return string(tt), nil
}

func (tt *TransactionType) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan TransactionType: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*tt = TransactionType(strVal)
	switch *tt {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer:
		return nil
	default:
		return fmt.Errorf("unknown TransactionType value: %s", strVal)
	}
}

// LimitStatus is the outcome of a limit check. Violations are values, not errors,
// so a check can be inspected without triggering error handling.
type LimitStatus string

const (
	LimitStatusAllowed             LimitStatus = "ALLOWED"
	LimitStatusTransactionLimit    LimitStatus = "TRANSACTION_LIMIT"
	LimitStatusDailyLimitReached   LimitStatus = "DAILY_LIMIT_REACHED"
	LimitStatusWeeklyLimitReached  LimitStatus = "WEEKLY_LIMIT_REACHED"
	LimitStatusMonthlyLimitReached LimitStatus = "MONTHLY_LIMIT_REACHED"
	LimitStatusMaxLimitReached     LimitStatus = "MAX_LIMIT_REACHED"
)

// LimitProfile is a named bundle of caps. Caps are inclusive ceilings; a nil window cap is unbounded.
// UnsettledExposure, when set, caps the consumer's lifetime total.
type LimitProfile struct {
	ID                string           `json:"id"` // UUID
	Name              string           `json:"name"`
	MinTransaction    decimal.Decimal  `json:"min_transaction"`
	MaxTransaction    decimal.Decimal  `json:"max_transaction"`
	Daily             *decimal.Decimal `json:"daily,omitempty"`
	Weekly            *decimal.Decimal `json:"weekly,omitempty"`
	Monthly           *decimal.Decimal `json:"monthly,omitempty"`
	UnsettledExposure *decimal.Decimal `json:"unsettled_exposure,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// LimitCriteria are the match conditions of a configuration. Unset fields always match.
type LimitCriteria struct {
	TransactionTypes          []TransactionType `json:"transaction_types,omitempty"`
	MinProfileAgeDays         *int              `json:"min_profile_age_days,omitempty"`
	MinBalanceInWallet        *decimal.Decimal  `json:"min_balance_in_wallet,omitempty"`
	MinTotalTransactionAmount *decimal.Decimal  `json:"min_total_transaction_amount,omitempty"`
}

// MatchesType reports whether txnType satisfies the transaction-type criterion.
func (c LimitCriteria) MatchesType(txnType TransactionType) bool {
	return len(c.TransactionTypes) == 0 || slices.Contains(c.TransactionTypes, txnType)
}

// LimitConfiguration binds criteria to a profile. Higher Priority wins.
type LimitConfiguration struct {
	ID        string        `json:"id"` // UUID
	IsDefault bool          `json:"is_default"`
	Priority  int           `json:"priority"`
	ProfileID string        `json:"profile_id"`
	Criteria  LimitCriteria `json:"criteria"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// LimitRequest asks whether ConsumerID may move Amount as TransactionType.
type LimitRequest struct {
	ConsumerID      string
	Amount          decimal.Decimal
	TransactionType TransactionType
}

// LimitDecision is the result of a check together with what drove it.
type LimitDecision struct {
	Status          LimitStatus
	ConfigurationID string
	ProfileID       string
	ProfileName     string
}

// Allowed is shorthand for Status == LimitStatusAllowed.
func (d LimitDecision) Allowed() bool { return d.Status == LimitStatusAllowed }
