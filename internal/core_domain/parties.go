package core_domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Consumer is the wallet holder a transaction debits or credits.
// Only the fields the ledger core reads are modelled here.
type Consumer struct {
	ID            string          `json:"id"` // UUID
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProfileAge is how long the consumer has existed at now.
func (c *Consumer) ProfileAge(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}

// Employer funds payroll batches.
type Employer struct {
	ID                  string `json:"id"` // UUID
	Name                string `json:"name"`
	DocumentNumber      string `json:"document_number"`       // Tax / registration number printed on deposits
	DepositMatchingName string `json:"deposit_matching_name"` // Name the bank shows on incoming deposits
}

// Employee receives payroll disbursements into their consumer wallet.
type Employee struct {
	ID         string `json:"id"` // UUID
	EmployerID string `json:"employer_id"`
	ConsumerID string `json:"consumer_id"`
	Name       string `json:"name"`
}

// ConsumerService returns nil, nil when the consumer does not exist.
type ConsumerService interface {
	GetByID(ctx context.Context, id string) (*Consumer, error)
}

// EmployerService returns nil, nil when the employer does not exist.
type EmployerService interface {
	GetByID(ctx context.Context, id string) (*Employer, error)
}

// EmployeeService returns nil, nil when the employee does not exist.
type EmployeeService interface {
	GetByID(ctx context.Context, id string) (*Employee, error)
}
