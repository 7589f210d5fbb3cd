package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayrollStatus is the lifecycle state of a payroll batch.
type PayrollStatus string

const (
	PayrollStatusCreated       PayrollStatus = "CREATED"
	PayrollStatusPrepared      PayrollStatus = "PREPARED"
	PayrollStatusInvoiced      PayrollStatus = "INVOICED"
	PayrollStatusInvestigation PayrollStatus = "INVESTIGATION"
	PayrollStatusFunded        PayrollStatus = "FUNDED"
	PayrollStatusInProgress    PayrollStatus = "IN_PROGRESS"
	PayrollStatusReceipt       PayrollStatus = "RECEIPT"
	PayrollStatusCompleted     PayrollStatus = "COMPLETED"
	PayrollStatusExpired       PayrollStatus = "EXPIRED"
)

// AllPayrollStatuses lists every status in lifecycle order.
var AllPayrollStatuses = []PayrollStatus{
	PayrollStatusCreated,
	PayrollStatusPrepared,
	PayrollStatusInvoiced,
	PayrollStatusInvestigation,
	PayrollStatusFunded,
	PayrollStatusInProgress,
	PayrollStatusReceipt,
	PayrollStatusCompleted,
	PayrollStatusExpired,
}

func (s PayrollStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *PayrollStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan PayrollStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*s = PayrollStatus(strVal)
	for _, known := range AllPayrollStatuses {
		if *s == known {
			return nil
		}
	}
	return fmt.Errorf("unknown PayrollStatus value: %s", strVal)
}

// IsTerminal reports whether the batch can no longer change.
func (s PayrollStatus) IsTerminal() bool {
	return s == PayrollStatusCompleted || s == PayrollStatusExpired
}

var payrollTransitions = map[PayrollStatus][]PayrollStatus{
	PayrollStatusCreated:    {PayrollStatusPrepared, PayrollStatusExpired},
	PayrollStatusPrepared:   {PayrollStatusInvoiced, PayrollStatusExpired},
	PayrollStatusInvoiced:   {PayrollStatusInvestigation, PayrollStatusExpired},
	PayrollStatusFunded:     {PayrollStatusInvestigation, PayrollStatusInProgress},
	PayrollStatusInProgress: {PayrollStatusReceipt},
	PayrollStatusReceipt:    {PayrollStatusCompleted},
}

// fundingBlockedFrom are the only sources FUNDED cannot be entered from. Funding is observed
// externally and may arrive before the batch pointer has caught up, so FUNDED is allowed
// unless the batch has already moved past it.
var fundingBlockedFrom = map[PayrollStatus]bool{
	PayrollStatusInProgress: true,
	PayrollStatusReceipt:    true,
	PayrollStatusCompleted:  true,
	PayrollStatusExpired:    true,
}

// IsTransitionAllowed reports whether a batch in from may move to to.
func IsTransitionAllowed(from, to PayrollStatus) bool {
	if to == PayrollStatusCreated {
		return false
	}
	if to == PayrollStatusFunded {
		return !fundingBlockedFrom[from]
	}
	for _, next := range payrollTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payroll is an employer's batch of salary disbursements.
type Payroll struct {
	ID                   string           `json:"id"` // UUID
	EmployerID           string           `json:"employer_id"`
	ReferenceNumber      string           `json:"reference_number"`
	PayrollDate          time.Time        `json:"payroll_date"`
	Status               PayrollStatus    `json:"status"`
	TotalDebitAmount     *decimal.Decimal `json:"total_debit_amount,omitempty"`
	TotalCreditAmount    *decimal.Decimal `json:"total_credit_amount,omitempty"`
	ExchangeRate         *decimal.Decimal `json:"exchange_rate,omitempty"`
	DebitCurrency        *string          `json:"debit_currency,omitempty"`
	CreditCurrency       *string          `json:"credit_currency,omitempty"`
	CompletedTimestamp   *time.Time       `json:"completed_timestamp,omitempty"`
	PaymentTransactionID *string          `json:"payment_transaction_id,omitempty"` // External funding deposit id
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// PayrollDisbursement is one employee's allocation within a payroll.
type PayrollDisbursement struct {
	ID               string           `json:"id"` // UUID
	PayrollID        string           `json:"payroll_id"`
	EmployeeID       string           `json:"employee_id"`
	AllocationAmount decimal.Decimal  `json:"allocation_amount"`
	TransactionID    *string          `json:"transaction_id,omitempty"`
	CreditAmount     *decimal.Decimal `json:"credit_amount,omitempty"` // Settled amount after FX
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Settled reports whether the disbursement's transaction has completed.
func (d *PayrollDisbursement) Settled() bool { return d.CreditAmount != nil }

// DisbursementTransactionRef is the deterministic transaction ref of a disbursement's deposit,
// so a retried fan-out cannot create a second transaction.
func DisbursementTransactionRef(disbursementID string) string {
	return "payroll-disbursement-" + disbursementID
}

// Round2 rounds a monetary amount to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CreditAmountFor converts an allocation into the credit currency.
func CreditAmountFor(allocation, exchangeRate decimal.Decimal) decimal.Decimal {
	return Round2(allocation.Mul(exchangeRate))
}
