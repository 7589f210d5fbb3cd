package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aradpay/golang_services/internal/payroll_service/domain"
)

// ResumerConfig controls the stalled-disbursement poller.
type ResumerConfig struct {
	PollingInterval time.Duration `mapstructure:"PAYROLL_RESUME_INTERVAL"`
	BatchSize       int           `mapstructure:"PAYROLL_RESUME_BATCH_SIZE"`
	// GracePeriod keeps the poller away from fan-outs that are still running.
	GracePeriod time.Duration `mapstructure:"PAYROLL_RESUME_GRACE_PERIOD"`
}

type disbursementStarter interface {
	StartDisbursement(ctx context.Context, payrollID string) (*domain.Payroll, error)
}

// DisbursementResumer finds IN_PROGRESS payrolls whose fan-out left disbursements unlinked and
// resumes them.
type DisbursementResumer struct {
	payrolls domain.PayrollRepository
	starter  disbursementStarter
	config   ResumerConfig
	now      func() time.Time
	logger   *slog.Logger
}

func NewDisbursementResumer(payrolls domain.PayrollRepository, starter disbursementStarter, cfg ResumerConfig, logger *slog.Logger) *DisbursementResumer {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &DisbursementResumer{
		payrolls: payrolls,
		starter:  starter,
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "disbursement_resumer"),
	}
}

// PollOnce resumes one batch of stalled payrolls and returns how many it attempted. A failed
// resume is logged and left for the next cycle; only a failed lookup is returned.
func (r *DisbursementResumer) PollOnce(ctx context.Context) (int, error) {
	ids, err := r.payrolls.ListStalledInProgress(ctx, r.now().Add(-r.config.GracePeriod), r.config.BatchSize)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list stalled payrolls", "error", err)
		return 0, fmt.Errorf("listing stalled payrolls: %w", err)
	}
	if len(ids) == 0 {
		r.logger.DebugContext(ctx, "No stalled payrolls found")
		return 0, nil
	}

	r.logger.InfoContext(ctx, "Resuming stalled payrolls", "count", len(ids))
	for _, id := range ids {
		timer := prometheus.NewTimer(resumeDurationHist)
		outcome := "resumed"
		if _, err := r.starter.StartDisbursement(ctx, id); err != nil {
			outcome = "failed"
			r.logger.WarnContext(ctx, "Resume left disbursements pending", "payroll_id", id, "error", err)
		}
		timer.ObserveDuration()
		resumeRunsCounter.WithLabelValues(outcome).Inc()
	}
	return len(ids), nil
}

// Run polls every PollingInterval until ctx is cancelled.
func (r *DisbursementResumer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.config.PollingInterval)
	defer ticker.Stop()
	r.logger.InfoContext(ctx, "Disbursement resumer started", "interval", r.config.PollingInterval, "batch_size", r.config.BatchSize)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Disbursement resumer stopped")
			return nil
		case <-ticker.C:
			if _, err := r.PollOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "Resume cycle failed", "error", err)
			}
		}
	}
}
