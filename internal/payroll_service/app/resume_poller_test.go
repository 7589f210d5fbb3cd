package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradpay/golang_services/internal/payroll_service/domain"
)

type MockStarter struct {
	mock.Mock
}

func (m *MockStarter) StartDisbursement(ctx context.Context, payrollID string) (*domain.Payroll, error) {
	args := m.Called(ctx, payrollID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payroll), args.Error(1)
}

// stalledPayroll moves a funded payroll to IN_PROGRESS without submitting any deposit, as if the
// process died right after the transition.
func stalledPayroll(t *testing.T, c payrollTestComponents) *domain.Payroll {
	t.Helper()
	p := fundedPayroll(t, c)
	p, err := c.service.TransitionStatus(context.Background(), p.ID, domain.PayrollStatusInProgress, domain.PayrollUpdate{})
	require.NoError(t, err)
	return p
}

func TestDisbursementResumer_ResumesStalledPayroll(t *testing.T) {
	c := setupPayrollServiceTest(t)
	p := stalledPayroll(t, c)
	resumer := NewDisbursementResumer(memPayrollRepo{c.store}, c.service, ResumerConfig{BatchSize: 10}, discardLogger())
	resumer.now = func() time.Time { return time.Now().UTC().Add(time.Second) }

	attempted, err := resumer.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)
	assert.Len(t, c.intake.transactions(), 3)
	for _, d := range c.store.disbursements {
		assert.NotNil(t, d.TransactionID, "disbursement %s of payroll %s not linked", d.ID, p.ID)
	}

	attempted, err = resumer.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, attempted, "a fully linked payroll is no longer stalled")
}

func TestDisbursementResumer_RespectsGracePeriod(t *testing.T) {
	c := setupPayrollServiceTest(t)
	stalledPayroll(t, c)
	resumer := NewDisbursementResumer(memPayrollRepo{c.store}, c.service, ResumerConfig{BatchSize: 10, GracePeriod: time.Hour}, discardLogger())

	attempted, err := resumer.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, attempted)
	assert.Empty(t, c.intake.transactions())
}

func TestDisbursementResumer_FailedResumeIsRetriedNextCycle(t *testing.T) {
	c := setupPayrollServiceTest(t)
	p := stalledPayroll(t, c)
	starter := new(MockStarter)
	starter.On("StartDisbursement", mock.Anything, p.ID).Return(p, errors.New("workflow engine unavailable")).Twice()

	resumer := NewDisbursementResumer(memPayrollRepo{c.store}, starter, ResumerConfig{BatchSize: 10}, discardLogger())
	resumer.now = func() time.Time { return time.Now().UTC().Add(time.Second) }

	for i := 0; i < 2; i++ {
		attempted, err := resumer.PollOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, attempted)
	}
	starter.AssertExpectations(t)
}

func TestDisbursementResumer_RunStopsOnCancel(t *testing.T) {
	c := setupPayrollServiceTest(t)
	resumer := NewDisbursementResumer(memPayrollRepo{c.store}, c.service, ResumerConfig{PollingInterval: time.Millisecond, BatchSize: 1}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- resumer.Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("resumer did not stop after cancellation")
	}
}
