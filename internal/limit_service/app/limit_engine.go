package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/limit_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
)

// LimitEngine picks the limit configuration that applies to a consumer and checks an amount against its profile.
type LimitEngine struct {
	configRepo  domain.LimitConfigurationRepository
	profileRepo domain.LimitProfileRepository
	aggregator  *HistoricalAggregator
	consumers   core_domain.ConsumerService
	alerts      core_domain.AlertService
	now         func() time.Time
	logger      *slog.Logger
}

// NewLimitEngine creates a LimitEngine.
func NewLimitEngine(
	configRepo domain.LimitConfigurationRepository,
	profileRepo domain.LimitProfileRepository,
	aggregator *HistoricalAggregator,
	consumers core_domain.ConsumerService,
	alerts core_domain.AlertService,
	logger *slog.Logger,
) *LimitEngine {
	return &LimitEngine{
		configRepo:  configRepo,
		profileRepo: profileRepo,
		aggregator:  aggregator,
		consumers:   consumers,
		alerts:      alerts,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With("component", "limit_engine"),
	}
}

// consumerContext loads consumer facts at most once per check, and only when a criterion needs them.
type consumerContext struct {
	engine     *LimitEngine
	consumerID string

	consumer      *core_domain.Consumer
	lifetimeTotal *decimal.Decimal
}

func (c *consumerContext) load(ctx context.Context) (*core_domain.Consumer, error) {
	if c.consumer != nil {
		return c.consumer, nil
	}
	consumer, err := c.engine.consumers.GetByID(ctx, c.consumerID)
	if err != nil {
		return nil, fmt.Errorf("loading consumer %s: %w", c.consumerID, err)
	}
	if consumer == nil {
		return nil, apperrors.NewDoesNotExistError("consumer %s does not exist", c.consumerID)
	}
	c.consumer = consumer
	return consumer, nil
}

func (c *consumerContext) totalTransacted(ctx context.Context) (decimal.Decimal, error) {
	if c.lifetimeTotal != nil {
		return *c.lifetimeTotal, nil
	}
	total, err := c.engine.aggregator.Spent(ctx, c.consumerID, AllTransactionTypes, domain.WindowLifetime)
	if err != nil {
		return decimal.Zero, err
	}
	c.lifetimeTotal = &total
	return total, nil
}

// CanTransact decides whether req.Amount is allowed. A violated cap is reported through
// LimitDecision.Status; the error is reserved for lookups that failed.
func (e *LimitEngine) CanTransact(ctx context.Context, req domain.LimitRequest) (domain.LimitDecision, error) {
	cfg, profile, err := e.resolveProfile(ctx, req)
	if err != nil {
		return domain.LimitDecision{}, err
	}

	status, err := e.evaluate(ctx, req, profile, true)
	if err != nil {
		return domain.LimitDecision{}, err
	}
	limitChecksCounter.WithLabelValues(string(req.TransactionType), string(status)).Inc()

	decision := domain.LimitDecision{Status: status, ConfigurationID: cfg.ID, ProfileID: profile.ID, ProfileName: profile.Name}
	e.logger.DebugContext(ctx, "Limit check evaluated",
		"consumer_id", req.ConsumerID,
		"transaction_type", req.TransactionType,
		"amount", req.Amount.String(),
		"configuration_id", cfg.ID,
		"profile", profile.Name,
		"status", status)
	return decision, nil
}

// Revalidate re-evaluates the window caps after the transaction has been persisted, so the
// aggregates already include it. Used to detect concurrent requests that raced past CanTransact.
func (e *LimitEngine) Revalidate(ctx context.Context, req domain.LimitRequest) (domain.LimitDecision, error) {
	cfg, profile, err := e.resolveProfile(ctx, req)
	if err != nil {
		return domain.LimitDecision{}, err
	}
	status, err := e.evaluate(ctx, req, profile, false)
	if err != nil {
		return domain.LimitDecision{}, err
	}
	if status != domain.LimitStatusAllowed {
		limitOvershootCounter.WithLabelValues(string(req.TransactionType), string(status)).Inc()
	}
	return domain.LimitDecision{Status: status, ConfigurationID: cfg.ID, ProfileID: profile.ID, ProfileName: profile.Name}, nil
}

// SelectConfiguration returns the configuration that applies to req.
func (e *LimitEngine) SelectConfiguration(ctx context.Context, req domain.LimitRequest) (*domain.LimitConfiguration, error) {
	configs, err := e.configRepo.ListAllOrderedByPriorityDesc(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing limit configurations: %w", err)
	}
	SortByPrecedence(configs)

	cc := &consumerContext{engine: e, consumerID: req.ConsumerID}
	var fallback *domain.LimitConfiguration
	for _, cfg := range configs {
		if cfg.IsDefault {
			if fallback == nil {
				fallback = cfg
			}
			continue
		}
		ok, err := e.matches(ctx, cc, cfg.Criteria, req.TransactionType)
		if err != nil {
			return nil, err
		}
		if ok {
			return cfg, nil
		}
	}

	if fallback == nil {
		e.alerts.RaiseCriticalAlert(ctx, core_domain.CriticalAlert{
			Key:     core_domain.AlertNoDefaultLimitConfiguration,
			Message: fmt.Sprintf("no limit configuration matched consumer %s and no default configuration exists", req.ConsumerID),
			Details: map[string]string{"consumer_id": req.ConsumerID, "transaction_type": string(req.TransactionType)},
		})
		return nil, apperrors.NewUnknownError("no default limit configuration exists")
	}
	return fallback, nil
}

func (e *LimitEngine) resolveProfile(ctx context.Context, req domain.LimitRequest) (*domain.LimitConfiguration, *domain.LimitProfile, error) {
	cfg, err := e.SelectConfiguration(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	profile, err := e.profileRepo.GetByID(ctx, cfg.ProfileID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading limit profile %s: %w", cfg.ProfileID, err)
	}
	if profile == nil {
		e.alerts.RaiseCriticalAlert(ctx, core_domain.CriticalAlert{
			Key:     core_domain.AlertLimitProfileMissing,
			Message: fmt.Sprintf("limit configuration %s references missing profile %s", cfg.ID, cfg.ProfileID),
			Details: map[string]string{"configuration_id": cfg.ID, "profile_id": cfg.ProfileID},
		})
		return nil, nil, apperrors.NewUnknownError("limit profile %s referenced by configuration %s does not exist", cfg.ProfileID, cfg.ID)
	}
	return cfg, profile, nil
}

func (e *LimitEngine) matches(ctx context.Context, cc *consumerContext, c domain.LimitCriteria, txnType domain.TransactionType) (bool, error) {
	if !c.MatchesType(txnType) {
		return false, nil
	}
	if c.MinProfileAgeDays != nil {
		consumer, err := cc.load(ctx)
		if err != nil {
			return false, err
		}
		minAge := time.Duration(*c.MinProfileAgeDays) * 24 * time.Hour
		if consumer.ProfileAge(e.now()) < minAge {
			return false, nil
		}
	}
	if c.MinBalanceInWallet != nil {
		consumer, err := cc.load(ctx)
		if err != nil {
			return false, err
		}
		if consumer.WalletBalance.LessThan(*c.MinBalanceInWallet) {
			return false, nil
		}
	}
	if c.MinTotalTransactionAmount != nil {
		total, err := cc.totalTransacted(ctx)
		if err != nil {
			return false, err
		}
		if total.LessThan(*c.MinTotalTransactionAmount) {
			return false, nil
		}
	}
	return true, nil
}

// evaluate applies the caps in fixed order: single-transaction, day, week, month, lifetime.
// Window aggregates are only queried for caps the profile sets. With includeProposed=false the
// amount is assumed to be inside the aggregates already and the single-transaction cap is skipped.
func (e *LimitEngine) evaluate(ctx context.Context, req domain.LimitRequest, p *domain.LimitProfile, includeProposed bool) (domain.LimitStatus, error) {
	proposed := decimal.Zero
	if includeProposed {
		if req.Amount.GreaterThan(p.MaxTransaction) || req.Amount.LessThan(p.MinTransaction) {
			return domain.LimitStatusTransactionLimit, nil
		}
		proposed = req.Amount
	}

	windows := []struct {
		cap    *decimal.Decimal
		kind   domain.WindowKind
		status domain.LimitStatus
	}{
		{p.Daily, domain.WindowDay, domain.LimitStatusDailyLimitReached},
		{p.Weekly, domain.WindowWeek, domain.LimitStatusWeeklyLimitReached},
		{p.Monthly, domain.WindowMonth, domain.LimitStatusMonthlyLimitReached},
		{p.UnsettledExposure, domain.WindowLifetime, domain.LimitStatusMaxLimitReached},
	}
	for _, w := range windows {
		if w.cap == nil {
			continue
		}
		spent, err := e.aggregator.Spent(ctx, req.ConsumerID, req.TransactionType, w.kind)
		if err != nil {
			return "", err
		}
		if spent.Add(proposed).GreaterThan(*w.cap) {
			return w.status, nil
		}
	}
	return domain.LimitStatusAllowed, nil
}

// SortByPrecedence orders configurations by priority descending. Equal priorities fall back to
// creation time and then id, so selection never depends on incidental store ordering.
func SortByPrecedence(configs []*domain.LimitConfiguration) {
	sort.SliceStable(configs, func(i, j int) bool {
		a, b := configs[i], configs[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
