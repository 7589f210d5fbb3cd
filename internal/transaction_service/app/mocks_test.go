package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/aradpay/golang_services/internal/core_domain"
	limitdomain "github.com/aradpay/golang_services/internal/limit_service/domain"
	payrolldomain "github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// memTransactionStore enforces transaction_ref uniqueness like the database does.
type memTransactionStore struct {
	mu      sync.Mutex
	byRef   map[string]*domain.Transaction
	creates int
}

func newMemTransactionStore() *memTransactionStore {
	return &memTransactionStore{byRef: map[string]*domain.Transaction{}}
}

func (s *memTransactionStore) Create(_ context.Context, in *domain.InputTransaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byRef[in.TransactionRef]; ok {
		return nil, apperrors.NewAlreadyExistsError("transaction %s already exists", in.TransactionRef)
	}
	s.creates++
	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID: uuid.NewString(), TransactionRef: in.TransactionRef, WorkflowName: in.WorkflowName,
		DebitConsumerID: in.DebitConsumerID, CreditConsumerID: in.CreditConsumerID,
		DebitCurrency: in.DebitCurrency, CreditCurrency: in.CreditCurrency,
		DebitAmount: in.DebitAmount, CreditAmount: in.CreditAmount, ExchangeRate: in.ExchangeRate,
		Memo: in.Memo, SessionKey: in.SessionKey, Status: domain.TransactionStatusInitiated,
		Fees: in.Fees, RequestPayload: in.RequestPayload, CreatedAt: now, UpdatedAt: now,
	}
	s.byRef[in.TransactionRef] = txn
	return txn, nil
}

func (s *memTransactionStore) FindByRef(_ context.Context, ref string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byRef[ref], nil
}

func (s *memTransactionStore) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byRef {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memTransactionStore) UpdateStatus(_ context.Context, id string, from, to domain.TransactionStatus) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byRef {
		if t.ID == id && t.Status == from {
			t.Status = to
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memTransactionStore) SumReversals(_ context.Context, originalRef, excludingRef string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for ref, t := range s.byRef {
		if t.WorkflowName != domain.WorkflowCardReversal || ref == excludingRef ||
			t.Status == domain.TransactionStatusFailed || t.Status == domain.TransactionStatusExpired {
			continue
		}
		var r domain.CardReversalRequest
		if err := json.Unmarshal(t.RequestPayload, &r); err != nil {
			return decimal.Zero, err
		}
		if r.OriginalTransactionRef == originalRef {
			total = total.Add(t.CreditAmount)
		}
	}
	return total, nil
}

type memEventStore struct {
	mu     sync.Mutex
	events []*domain.TransactionEvent
}

func (s *memEventStore) Append(_ context.Context, ev *domain.TransactionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memEventStore) ListByTransaction(_ context.Context, transactionID string) ([]*domain.TransactionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.TransactionEvent
	for _, ev := range s.events {
		if ev.TransactionID == transactionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memEventStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		if ev.Key != nil {
			out = append(out, *ev.Key)
		}
	}
	return out
}

type MockLimitChecker struct {
	mock.Mock
}

func (m *MockLimitChecker) CanTransact(ctx context.Context, req limitdomain.LimitRequest) (limitdomain.LimitDecision, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(limitdomain.LimitDecision), args.Error(1)
}

func (m *MockLimitChecker) Revalidate(ctx context.Context, req limitdomain.LimitRequest) (limitdomain.LimitDecision, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(limitdomain.LimitDecision), args.Error(1)
}

type MockAlertService struct {
	mock.Mock
}

func (m *MockAlertService) RaiseCriticalAlert(ctx context.Context, alert core_domain.CriticalAlert) {
	m.Called(ctx, alert)
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

type MockEmployerService struct {
	mock.Mock
}

func (m *MockEmployerService) GetByID(ctx context.Context, id string) (*core_domain.Employer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Employer), args.Error(1)
}

type MockEmployeeService struct {
	mock.Mock
}

func (m *MockEmployeeService) GetByID(ctx context.Context, id string) (*core_domain.Employee, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core_domain.Employee), args.Error(1)
}

type MockWorkflowExecutor struct {
	mock.Mock
}

func (m *MockWorkflowExecutor) ExecuteWalletDepositWorkflow(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}
func (m *MockWorkflowExecutor) ExecuteWalletWithdrawalWorkflow(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}
func (m *MockWorkflowExecutor) ExecuteWalletTransferWorkflow(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}
func (m *MockWorkflowExecutor) ExecuteCardWorkflow(ctx context.Context, workflow domain.WorkflowName, ref string) error {
	return m.Called(ctx, workflow, ref).Error(0)
}
func (m *MockWorkflowExecutor) ExecuteAdjustmentWorkflow(ctx context.Context, workflow domain.WorkflowName, ref string) error {
	return m.Called(ctx, workflow, ref).Error(0)
}
func (m *MockWorkflowExecutor) ExecutePayrollDepositWorkflow(ctx context.Context, ref, disbursementID string) error {
	return m.Called(ctx, ref, disbursementID).Error(0)
}

type MockPayrollRepository struct {
	mock.Mock
}

func (m *MockPayrollRepository) Create(ctx context.Context, p *payrolldomain.Payroll) error {
	return m.Called(ctx, p).Error(0)
}
func (m *MockPayrollRepository) GetByID(ctx context.Context, id string) (*payrolldomain.Payroll, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payrolldomain.Payroll), args.Error(1)
}
func (m *MockPayrollRepository) Transition(ctx context.Context, id string, from, to payrolldomain.PayrollStatus, update payrolldomain.PayrollUpdate) (*payrolldomain.Payroll, error) {
	args := m.Called(ctx, id, from, to, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payrolldomain.Payroll), args.Error(1)
}
func (m *MockPayrollRepository) FindInvoicedByTotalAndDocumentNumber(ctx context.Context, amount decimal.Decimal, doc string) ([]*payrolldomain.Payroll, error) {
	args := m.Called(ctx, amount, doc)
	return args.Get(0).([]*payrolldomain.Payroll), args.Error(1)
}
func (m *MockPayrollRepository) FindInvoicedByTotalAndMatchingName(ctx context.Context, amount decimal.Decimal, name string) ([]*payrolldomain.Payroll, error) {
	args := m.Called(ctx, amount, name)
	return args.Get(0).([]*payrolldomain.Payroll), args.Error(1)
}

func (m *MockPayrollRepository) ListStalledInProgress(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).([]string), args.Error(1)
}

type MockDisbursementRepository struct {
	mock.Mock
}

func (m *MockDisbursementRepository) Create(ctx context.Context, d *payrolldomain.PayrollDisbursement) error {
	return m.Called(ctx, d).Error(0)
}
func (m *MockDisbursementRepository) GetByID(ctx context.Context, id string) (*payrolldomain.PayrollDisbursement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payrolldomain.PayrollDisbursement), args.Error(1)
}
func (m *MockDisbursementRepository) GetByTransactionID(ctx context.Context, id string) (*payrolldomain.PayrollDisbursement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payrolldomain.PayrollDisbursement), args.Error(1)
}
func (m *MockDisbursementRepository) ListByPayroll(ctx context.Context, payrollID string) ([]*payrolldomain.PayrollDisbursement, error) {
	args := m.Called(ctx, payrollID)
	return args.Get(0).([]*payrolldomain.PayrollDisbursement), args.Error(1)
}
func (m *MockDisbursementRepository) SetTransactionIfUnlinked(ctx context.Context, id, transactionID string) (bool, error) {
	args := m.Called(ctx, id, transactionID)
	return args.Bool(0), args.Error(1)
}
func (m *MockDisbursementRepository) MarkSettled(ctx context.Context, id string, amount decimal.Decimal) error {
	return m.Called(ctx, id, amount).Error(0)
}
func (m *MockDisbursementRepository) SumAllocationByPayroll(ctx context.Context, payrollID string) (decimal.Decimal, error) {
	args := m.Called(ctx, payrollID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
func (m *MockDisbursementRepository) CountUnsettledByPayroll(ctx context.Context, payrollID string) (int, error) {
	args := m.Called(ctx, payrollID)
	return args.Int(0), args.Error(1)
}

type MockDisbursementLinker struct {
	mock.Mock
}

func (m *MockDisbursementLinker) LinkTransaction(ctx context.Context, disbursementID, transactionID string) error {
	return m.Called(ctx, disbursementID, transactionID).Error(0)
}

type MockStatusListener struct {
	mock.Mock
}

func (m *MockStatusListener) OnTransactionStatusChanged(ctx context.Context, txn *domain.Transaction, previous domain.TransactionStatus) error {
	return m.Called(ctx, txn, previous).Error(0)
}
