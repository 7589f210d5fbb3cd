package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/limit_service/domain"
)

// AllTransactionTypes asks the spend store for a total across every transaction type.
const AllTransactionTypes domain.TransactionType = ""

// SpendSnapshot is a consumer's spend in each window at one instant.
type SpendSnapshot struct {
	Day      decimal.Decimal
	Week     decimal.Decimal
	Month    decimal.Decimal
	Lifetime decimal.Decimal
}

// HistoricalAggregator resolves calendar windows and delegates summation to the spend store.
type HistoricalAggregator struct {
	store  domain.SpendStore
	now    func() time.Time
	logger *slog.Logger
}

// NewHistoricalAggregator creates an aggregator whose windows are evaluated in UTC.
func NewHistoricalAggregator(store domain.SpendStore, logger *slog.Logger) *HistoricalAggregator {
	return &HistoricalAggregator{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "historical_aggregator"),
	}
}

// Spent returns what consumerID has moved as txnType within the current window of the given kind.
func (a *HistoricalAggregator) Spent(ctx context.Context, consumerID string, txnType domain.TransactionType, kind domain.WindowKind) (decimal.Decimal, error) {
	w := domain.WindowAt(kind, a.now())
	total, err := a.store.SumByConsumerAndWindow(ctx, consumerID, txnType, w.From, w.To)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to aggregate spend", "consumer_id", consumerID, "transaction_type", txnType, "window", kind, "error", err)
		return decimal.Zero, fmt.Errorf("aggregating %s spend for consumer %s: %w", kind, consumerID, err)
	}
	return total, nil
}

// Snapshot computes all four windows.
func (a *HistoricalAggregator) Snapshot(ctx context.Context, consumerID string, txnType domain.TransactionType) (SpendSnapshot, error) {
	var s SpendSnapshot
	targets := []struct {
		kind domain.WindowKind
		dst  *decimal.Decimal
	}{
		{domain.WindowDay, &s.Day},
		{domain.WindowWeek, &s.Week},
		{domain.WindowMonth, &s.Month},
		{domain.WindowLifetime, &s.Lifetime},
	}
	for _, t := range targets {
		v, err := a.Spent(ctx, consumerID, txnType, t.kind)
		if err != nil {
			return SpendSnapshot{}, err
		}
		*t.dst = v
	}
	return s, nil
}
