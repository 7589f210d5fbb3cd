package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/platform/messagebroker"
)

type MockNATSClient struct {
	mock.Mock
}

func (m *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	return m.Called(ctx, subject, data).Error(0)
}

func (m *MockNATSClient) PublishDeduplicated(ctx context.Context, subject, msgID string, data []byte) error {
	return m.Called(ctx, subject, msgID, data).Error(0)
}

func (m *MockNATSClient) Subscribe(ctx context.Context, subject, queueGroup string, handler func(msg messagebroker.Message)) (messagebroker.Subscription, error) {
	args := m.Called(ctx, subject, queueGroup, handler)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(messagebroker.Subscription), args.Error(1)
}

func (m *MockNATSClient) Close() {}

func TestRaiseCriticalAlert_Publishes(t *testing.T) {
	client := new(MockNATSClient)
	svc := NewNATSAlertService(client, "ledger.alerts.critical", slog.New(slog.NewTextHandler(io.Discard, nil)))
	alert := core_domain.CriticalAlert{
		Key:     core_domain.AlertPayrollMissingForDisbursement,
		Message: "payroll p-1 referenced by disbursement d-1 does not exist",
		Details: map[string]string{"payroll_id": "p-1"},
	}
	client.On("Publish", mock.Anything, "ledger.alerts.critical", mock.MatchedBy(func(data []byte) bool {
		var got core_domain.CriticalAlert
		require.NoError(t, json.Unmarshal(data, &got))
		return assert.ObjectsAreEqual(alert, got)
	})).Return(nil).Once()

	svc.RaiseCriticalAlert(context.Background(), alert)
	client.AssertExpectations(t)
}

func TestRaiseCriticalAlert_PublishFailureIsSwallowed(t *testing.T) {
	client := new(MockNATSClient)
	svc := NewNATSAlertService(client, "ledger.alerts.critical", slog.New(slog.NewTextHandler(io.Discard, nil)))
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nats: connection closed")).Once()

	assert.NotPanics(t, func() {
		svc.RaiseCriticalAlert(context.Background(), core_domain.CriticalAlert{Key: core_domain.AlertUnknownWorkflow})
	})
	client.AssertExpectations(t)
}
