package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/limit_service/domain"
)

type MockLimitConfigurationRepository struct {
	mock.Mock
}

func (m *MockLimitConfigurationRepository) Create(ctx context.Context, cfg *domain.LimitConfiguration) error {
	return m.Called(ctx, cfg).Error(0)
}
func (m *MockLimitConfigurationRepository) GetByID(ctx context.Context, id string) (*domain.LimitConfiguration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LimitConfiguration), args.Error(1)
}
func (m *MockLimitConfigurationRepository) Update(ctx context.Context, id string, update domain.LimitConfigurationUpdate) (*domain.LimitConfiguration, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LimitConfiguration), args.Error(1)
}
func (m *MockLimitConfigurationRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockLimitConfigurationRepository) ListAllOrderedByPriorityDesc(ctx context.Context) ([]*domain.LimitConfiguration, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LimitConfiguration), args.Error(1)
}
func (m *MockLimitConfigurationRepository) SeedIfEmpty(ctx context.Context, profiles []*domain.LimitProfile, configs []*domain.LimitConfiguration) (bool, error) {
	args := m.Called(ctx, profiles, configs)
	return args.Bool(0), args.Error(1)
}

type MockLimitProfileRepository struct {
	mock.Mock
}

func (m *MockLimitProfileRepository) Create(ctx context.Context, p *domain.LimitProfile) error {
	return m.Called(ctx, p).Error(0)
}
func (m *MockLimitProfileRepository) GetByID(ctx context.Context, id string) (*domain.LimitProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LimitProfile), args.Error(1)
}
func (m *MockLimitProfileRepository) List(ctx context.Context) ([]*domain.LimitProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LimitProfile), args.Error(1)
}
func (m *MockLimitProfileRepository) Update(ctx context.Context, id string, update domain.LimitProfileUpdate) (*domain.LimitProfile, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LimitProfile), args.Error(1)
}
func (m *MockLimitProfileRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockSpendStore struct {
	mock.Mock
}

func (m *MockSpendStore) SumByConsumerAndWindow(ctx context.Context, consumerID string, txnType domain.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, consumerID, txnType, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockConsumerService struct {
	mock.Mock
}

func (m *MockConsumerService) GetByID(ctx context.Context, id string) (*core_domain.Consumer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Consumer), args.Error(1)
}

type MockAlertService struct {
	mock.Mock
}

func (m *MockAlertService) RaiseCriticalAlert(ctx context.Context, alert core_domain.CriticalAlert) {
	m.Called(ctx, alert)
}
