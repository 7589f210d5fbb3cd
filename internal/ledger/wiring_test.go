package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradpay/golang_services/internal/platform/config"
	"github.com/aradpay/golang_services/internal/platform/messagebroker"
	txdomain "github.com/aradpay/golang_services/internal/transaction_service/domain"
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

func TestWire(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	cfg := &config.Config{
		AlertSubject:             "ledger.alerts.critical",
		WorkflowSubjectPrefix:    "ledger.workflows",
		PayrollFanoutConcurrency: 4,
		PayrollFanoutTimeout:     time.Minute,
	}
	services, err := Wire(cfg, mockPool, new(MockNATSClient), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.NotNil(t, services.Transactions)
	assert.NotNil(t, services.Limits)
	assert.NotNil(t, services.LimitSeeder)
	assert.NotNil(t, services.Payrolls)
	assert.NotNil(t, services.Disbursement)
	assert.NotNil(t, services.Resumer)
	assert.NoError(t, mockPool.ExpectationsWereMet(), "wiring must not touch the database")
}

func TestWire_UnknownWorkflowRaisesAlert(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	nc := new(MockNATSClient)
	nc.On("Publish", mock.Anything, "ledger.alerts.critical", mock.Anything).Return(nil).Once()
	cfg := &config.Config{AlertSubject: "ledger.alerts.critical", WorkflowSubjectPrefix: "ledger.workflows"}
	services, err := Wire(cfg, mockPool, nc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = services.Transactions.CreateTransaction(context.Background(), txdomain.IntakeRequest{WorkflowName: "NOT_A_WORKFLOW"})
	assert.Error(t, err)
	nc.AssertExpectations(t)
}
