// Package alerting delivers critical alerts to the on-call channel over NATS.
package alerting

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/platform/messagebroker"
)

var criticalAlertsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "critical_alerts_total",
		Help:      "Critical alerts raised, by alert key.",
	},
	[]string{"alert_key"},
)

// NATSAlertService logs every alert, counts it and publishes it. Delivery failures are logged
// and swallowed; the alert has already reached the log and the metric.
type NATSAlertService struct {
	client  messagebroker.NATSClient
	subject string
	logger  *slog.Logger
}

var _ core_domain.AlertService = (*NATSAlertService)(nil)

func NewNATSAlertService(client messagebroker.NATSClient, subject string, logger *slog.Logger) *NATSAlertService {
	return &NATSAlertService{client: client, subject: subject, logger: logger.With("component", "alert_service")}
}

func (s *NATSAlertService) RaiseCriticalAlert(ctx context.Context, alert core_domain.CriticalAlert) {
	criticalAlertsCounter.WithLabelValues(alert.Key).Inc()
	s.logger.ErrorContext(ctx, "CRITICAL ALERT", "alert_key", alert.Key, "message", alert.Message, "details", alert.Details)

	data, err := json.Marshal(alert)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal critical alert", "alert_key", alert.Key, "error", err)
		return
	}
	if err := s.client.Publish(ctx, s.subject, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish critical alert", "alert_key", alert.Key, "subject", s.subject, "error", err)
	}
}
