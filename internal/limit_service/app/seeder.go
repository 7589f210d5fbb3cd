package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/limit_service/domain"
)

// LimitSeeder installs the initial limit profiles and configurations once.
type LimitSeeder struct {
	configRepo domain.LimitConfigurationRepository
	logger     *slog.Logger
}

func NewLimitSeeder(configRepo domain.LimitConfigurationRepository, logger *slog.Logger) *LimitSeeder {
	return &LimitSeeder{configRepo: configRepo, logger: logger.With("component", "limit_seeder")}
}

// SeedDefaults inserts DefaultSeed unless a configuration already exists.
func (s *LimitSeeder) SeedDefaults(ctx context.Context) (bool, error) {
	profiles, configs := DefaultSeed(time.Now().UTC())
	seeded, err := s.configRepo.SeedIfEmpty(ctx, profiles, configs)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to seed limit configurations", "error", err)
		return false, fmt.Errorf("seeding limit configurations: %w", err)
	}
	if seeded {
		s.logger.InfoContext(ctx, "Seeded default limit configurations", "profiles", len(profiles), "configurations", len(configs))
	} else {
		s.logger.InfoContext(ctx, "Limit configurations already present; seeding skipped")
	}
	return seeded, nil
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func intPtr(v int) *int { return &v }

// DefaultSeed returns a basic default tier plus an established tier for older, active consumers.
func DefaultSeed(now time.Time) ([]*domain.LimitProfile, []*domain.LimitConfiguration) {
	basic := &domain.LimitProfile{
		ID:             uuid.NewString(),
		Name:           "basic",
		MinTransaction: decimal.NewFromInt(1),
		MaxTransaction: decimal.NewFromInt(1000),
		Daily:          dec(2000),
		Weekly:         dec(5000),
		Monthly:        dec(10000),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	established := &domain.LimitProfile{
		ID:             uuid.NewString(),
		Name:           "established",
		MinTransaction: decimal.NewFromInt(1),
		MaxTransaction: decimal.NewFromInt(10000),
		Daily:          dec(20000),
		Weekly:         dec(50000),
		Monthly:        dec(150000),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	configs := []*domain.LimitConfiguration{
		{
			ID:        uuid.NewString(),
			IsDefault: true,
			Priority:  0,
			ProfileID: basic.ID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        uuid.NewString(),
			Priority:  10,
			ProfileID: established.ID,
			Criteria: domain.LimitCriteria{
				TransactionTypes:          []domain.TransactionType{domain.TransactionTypeDeposit, domain.TransactionTypeWithdrawal, domain.TransactionTypeTransfer},
				MinProfileAgeDays:         intPtr(90),
				MinTotalTransactionAmount: dec(5000),
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	return []*domain.LimitProfile{basic, established}, configs
}
