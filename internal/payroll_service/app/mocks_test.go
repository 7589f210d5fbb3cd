package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	txdomain "github.com/aradpay/golang_services/internal/transaction_service/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore keeps payrolls and disbursements together so the matching queries can join them.
type memStore struct {
	mu            sync.Mutex
	payrolls      map[string]*domain.Payroll
	disbursements map[string]*domain.PayrollDisbursement
	employers     map[string]*core_domain.Employer

	// markSettledFailures makes the next n MarkSettled calls fail.
	markSettledFailures int
}

func newMemStore() *memStore {
	return &memStore{
		payrolls:      map[string]*domain.Payroll{},
		disbursements: map[string]*domain.PayrollDisbursement{},
		employers:     map[string]*core_domain.Employer{},
	}
}

type memPayrollRepo struct{ *memStore }

type memDisbursementRepo struct{ *memStore }

func (r memPayrollRepo) Create(_ context.Context, p *domain.Payroll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payrolls[p.ID] = &cp
	return nil
}

func (r memPayrollRepo) GetByID(_ context.Context, id string) (*domain.Payroll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payrolls[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r memPayrollRepo) Transition(_ context.Context, id string, from, to domain.PayrollStatus, u domain.PayrollUpdate) (*domain.Payroll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payrolls[id]
	if !ok || p.Status != from {
		return nil, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	if v, ok := u.TotalDebitAmount.Get(); ok {
		p.TotalDebitAmount = &v
	}
	if v, ok := u.TotalCreditAmount.Get(); ok {
		p.TotalCreditAmount = &v
	}
	if v, ok := u.ExchangeRate.Get(); ok {
		p.ExchangeRate = &v
	}
	if v, ok := u.CompletedTimestamp.Get(); ok {
		p.CompletedTimestamp = &v
	}
	if v, ok := u.PaymentTransactionID.Get(); ok {
		p.PaymentTransactionID = &v
	}
	cp := *p
	return &cp, nil
}

func (r memPayrollRepo) findInvoiced(amount decimal.Decimal, match func(*core_domain.Employer) bool) []*domain.Payroll {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Payroll
	for _, p := range r.payrolls {
		employer := r.employers[p.EmployerID]
		if p.Status != domain.PayrollStatusInvoiced || employer == nil || !match(employer) {
			continue
		}
		total := decimal.Zero
		for _, d := range r.disbursements {
			if d.PayrollID == p.ID {
				total = total.Add(d.AllocationAmount)
			}
		}
		if total.Equal(amount) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

func (r memPayrollRepo) FindInvoicedByTotalAndDocumentNumber(_ context.Context, amount decimal.Decimal, doc string) ([]*domain.Payroll, error) {
	return r.findInvoiced(amount, func(e *core_domain.Employer) bool { return e.DocumentNumber == doc }), nil
}

func (r memPayrollRepo) FindInvoicedByTotalAndMatchingName(_ context.Context, amount decimal.Decimal, name string) ([]*domain.Payroll, error) {
	return r.findInvoiced(amount, func(e *core_domain.Employer) bool { return e.DepositMatchingName == name }), nil
}

func (r memPayrollRepo) ListStalledInProgress(_ context.Context, olderThan time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stalled []*domain.Payroll
	for _, p := range r.payrolls {
		if p.Status != domain.PayrollStatusInProgress || !p.UpdatedAt.Before(olderThan) {
			continue
		}
		for _, d := range r.disbursements {
			if d.PayrollID == p.ID && d.TransactionID == nil {
				stalled = append(stalled, p)
				break
			}
		}
	}
	sort.Slice(stalled, func(i, j int) bool { return stalled[i].CreatedAt.Before(stalled[j].CreatedAt) })
	ids := make([]string, 0, len(stalled))
	for i, p := range stalled {
		if i == limit {
			break
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (r memDisbursementRepo) Create(_ context.Context, d *domain.PayrollDisbursement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.disbursements {
		if existing.PayrollID == d.PayrollID && existing.EmployeeID == d.EmployeeID {
			return apperrors.NewAlreadyExistsError("employee %s already has a disbursement in payroll %s", d.EmployeeID, d.PayrollID)
		}
	}
	cp := *d
	r.disbursements[d.ID] = &cp
	return nil
}

func (r memDisbursementRepo) GetByID(_ context.Context, id string) (*domain.PayrollDisbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disbursements[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r memDisbursementRepo) GetByTransactionID(_ context.Context, transactionID string) (*domain.PayrollDisbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disbursements {
		if d.TransactionID != nil && *d.TransactionID == transactionID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memDisbursementRepo) ListByPayroll(_ context.Context, payrollID string) ([]*domain.PayrollDisbursement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PayrollDisbursement
	for _, d := range r.disbursements {
		if d.PayrollID == payrollID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memDisbursementRepo) SetTransactionIfUnlinked(_ context.Context, id, transactionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disbursements[id]
	if !ok {
		return false, nil
	}
	if d.TransactionID == nil {
		d.TransactionID = &transactionID
		return true, nil
	}
	return *d.TransactionID == transactionID, nil
}

func (r memDisbursementRepo) MarkSettled(_ context.Context, id string, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markSettledFailures > 0 {
		r.markSettledFailures--
		return errors.New("connection reset")
	}
	if d, ok := r.disbursements[id]; ok && d.CreditAmount == nil {
		d.CreditAmount = &amount
	}
	return nil
}

func (r memDisbursementRepo) SumAllocationByPayroll(_ context.Context, payrollID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, d := range r.disbursements {
		if d.PayrollID == payrollID {
			total = total.Add(d.AllocationAmount)
		}
	}
	return total, nil
}

func (r memDisbursementRepo) CountUnsettledByPayroll(_ context.Context, payrollID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.disbursements {
		if d.PayrollID == payrollID && d.CreditAmount == nil {
			n++
		}
	}
	return n, nil
}

// fakeIntake stands in for the transaction service: it creates one transaction per ref and
// links the disbursement in post-processing, unless told to fail it.
type fakeIntake struct {
	ledger *DisbursementLedger

	mu                 sync.Mutex
	byRef              map[string]*txdomain.Transaction
	failPostProcessing map[string]bool
	retried            []string
}

func newFakeIntake(ledger *DisbursementLedger) *fakeIntake {
	return &fakeIntake{ledger: ledger, byRef: map[string]*txdomain.Transaction{}, failPostProcessing: map[string]bool{}}
}

func (f *fakeIntake) CreateTransaction(ctx context.Context, req txdomain.IntakeRequest) (*txdomain.Transaction, error) {
	f.mu.Lock()
	if txn, ok := f.byRef[req.TransactionRef]; ok {
		f.mu.Unlock()
		return txn, nil
	}
	txn := &txdomain.Transaction{
		ID:             uuid.NewString(),
		TransactionRef: req.TransactionRef,
		WorkflowName:   req.WorkflowName,
		Status:         txdomain.TransactionStatusInitiated,
		RequestPayload: req.Payload,
	}
	f.byRef[req.TransactionRef] = txn
	fail := f.failPostProcessing[req.TransactionRef]
	f.mu.Unlock()

	if fail {
		return txn, &txdomain.PostProcessingError{TransactionRef: req.TransactionRef, Err: apperrors.NewUnknownError("workflow engine unavailable")}
	}
	return txn, f.link(ctx, txn)
}

func (f *fakeIntake) RetryPostProcessing(ctx context.Context, ref string) (*txdomain.Transaction, error) {
	f.mu.Lock()
	f.retried = append(f.retried, ref)
	txn := f.byRef[ref]
	f.mu.Unlock()
	if txn == nil {
		return nil, apperrors.NewDoesNotExistError("transaction %s does not exist", ref)
	}
	return txn, f.link(ctx, txn)
}

func (f *fakeIntake) link(ctx context.Context, txn *txdomain.Transaction) error {
	var req txdomain.PayrollDepositRequest
	if err := json.Unmarshal(txn.RequestPayload, &req); err != nil {
		return err
	}
	return f.ledger.LinkTransaction(ctx, req.DisbursementID, txn.ID)
}

func (f *fakeIntake) transactions() []*txdomain.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*txdomain.Transaction, 0, len(f.byRef))
	for _, t := range f.byRef {
		out = append(out, t)
	}
	return out
}

type MockAlertService struct {
	mock.Mock
}

func (m *MockAlertService) RaiseCriticalAlert(ctx context.Context, alert core_domain.CriticalAlert) {
	m.Called(ctx, alert)
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
