package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/platform/optional"
)

// LimitProfileUpdate is a field mask: only present fields are written.
// A present nil window cap clears that cap.
type LimitProfileUpdate struct {
	Name              optional.Value[string]
	MinTransaction    optional.Value[decimal.Decimal]
	MaxTransaction    optional.Value[decimal.Decimal]
	Daily             optional.Value[*decimal.Decimal]
	Weekly            optional.Value[*decimal.Decimal]
	Monthly           optional.Value[*decimal.Decimal]
	UnsettledExposure optional.Value[*decimal.Decimal]
}

// LimitConfigurationUpdate is a field mask: only present fields are written.
type LimitConfigurationUpdate struct {
	Priority  optional.Value[int]
	ProfileID optional.Value[string]
	Criteria  optional.Value[LimitCriteria]
}

// LimitProfileRepository persists limit profiles. Lookups return nil, nil when absent.
type LimitProfileRepository interface {
	Create(ctx context.Context, profile *LimitProfile) error
	GetByID(ctx context.Context, id string) (*LimitProfile, error)
	List(ctx context.Context) ([]*LimitProfile, error)
	Update(ctx context.Context, id string, update LimitProfileUpdate) (*LimitProfile, error)
	Delete(ctx context.Context, id string) error
}

// LimitConfigurationRepository persists limit configurations. Lookups return nil, nil when absent.
type LimitConfigurationRepository interface {
	Create(ctx context.Context, cfg *LimitConfiguration) error
	GetByID(ctx context.Context, id string) (*LimitConfiguration, error)
	Update(ctx context.Context, id string, update LimitConfigurationUpdate) (*LimitConfiguration, error)
	Delete(ctx context.Context, id string) error

	// ListAllOrderedByPriorityDesc orders by priority DESC, then created_at ASC, then id ASC.
	ListAllOrderedByPriorityDesc(ctx context.Context) ([]*LimitConfiguration, error)

	// SeedIfEmpty inserts profiles and configurations in one transaction unless any
	// configuration already exists. It reports whether anything was inserted.
	SeedIfEmpty(ctx context.Context, profiles []*LimitProfile, configs []*LimitConfiguration) (bool, error)
}

// SpendStore sums what a consumer has already moved for a transaction type inside a window.
// Only transactions that are not FAILED or EXPIRED count.
type SpendStore interface {
	SumByConsumerAndWindow(ctx context.Context, consumerID string, txnType TransactionType, from, to time.Time) (decimal.Decimal, error)
}
