package app

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/payroll_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
)

func setupLedgerTest(t *testing.T) (*DisbursementLedger, *memStore, *MockAlertService) {
	t.Helper()
	store := newMemStore()
	alerts := new(MockAlertService)
	return NewDisbursementLedger(memPayrollRepo{store}, memDisbursementRepo{store}, alerts, discardLogger()), store, alerts
}

func putPayroll(store *memStore, id, employerID string, status domain.PayrollStatus) {
	store.payrolls[id] = &domain.Payroll{ID: id, EmployerID: employerID, ReferenceNumber: "REF-" + id, Status: status}
}

func TestCreateDisbursement(t *testing.T) {
	ledger, store, _ := setupLedgerTest(t)
	putPayroll(store, "p-1", "employer-1", domain.PayrollStatusCreated)
	putPayroll(store, "p-2", "employer-1", domain.PayrollStatusInvoiced)
	ctx := context.Background()

	d, err := ledger.CreateDisbursement(ctx, "p-1", "employee-1", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Nil(t, d.TransactionID)
	assert.False(t, d.Settled())

	_, err = ledger.CreateDisbursement(ctx, "p-1", "employee-1", decimal.NewFromInt(150))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	_, err = ledger.CreateDisbursement(ctx, "p-1", "employee-2", decimal.Zero)
	assert.ErrorIs(t, err, apperrors.ErrSemanticValidation)

	_, err = ledger.CreateDisbursement(ctx, "missing", "employee-2", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, apperrors.ErrDoesNotExist)

	_, err = ledger.CreateDisbursement(ctx, "p-2", "employee-2", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, apperrors.ErrSemanticValidation)

	total, err := ledger.TotalAllocation(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(100)))
}

func TestLinkTransaction_ConcurrentSameTransactionLinksOnce(t *testing.T) {
	ledger, store, alerts := setupLedgerTest(t)
	putPayroll(store, "p-1", "employer-1", domain.PayrollStatusCreated)
	d, err := ledger.CreateDisbursement(context.Background(), "p-1", "employee-1", decimal.NewFromInt(100))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.LinkTransaction(context.Background(), d.ID, "txn-1")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	linked := store.disbursements[d.ID].TransactionID
	require.NotNil(t, linked)
	assert.Equal(t, "txn-1", *linked)

	alerts.On("RaiseCriticalAlert", mock.Anything, mock.MatchedBy(func(a core_domain.CriticalAlert) bool {
		return a.Key == core_domain.AlertDisbursementRelinked && a.Details["linked_transaction_id"] == "txn-1"
	})).Once()
	err = ledger.LinkTransaction(context.Background(), d.ID, "txn-2")
	assert.ErrorIs(t, err, apperrors.ErrUnknown)
	assert.Equal(t, "txn-1", *store.disbursements[d.ID].TransactionID)
	alerts.AssertExpectations(t)
}

func TestLinkTransaction_MissingDisbursementAlerts(t *testing.T) {
	ledger, _, alerts := setupLedgerTest(t)
	alerts.On("RaiseCriticalAlert", mock.Anything, mock.MatchedBy(func(a core_domain.CriticalAlert) bool {
		return a.Key == core_domain.AlertDisbursementMissingForLink && a.Details["disbursement_id"] == "d-404"
	})).Once()

	err := ledger.LinkTransaction(context.Background(), "d-404", "txn-1")
	assert.ErrorIs(t, err, apperrors.ErrUnknown)
	alerts.AssertExpectations(t)
}

func TestMatchInvoicedPayrolls(t *testing.T) {
	ledger, store, _ := setupLedgerTest(t)
	store.employers["employer-1"] = &core_domain.Employer{ID: "employer-1", DocumentNumber: "DOC-1", DepositMatchingName: "ACME LTD"}
	putPayroll(store, "invoiced", "employer-1", domain.PayrollStatusInvoiced)
	putPayroll(store, "funded", "employer-1", domain.PayrollStatusFunded)
	for _, id := range []string{"invoiced", "funded"} {
		store.disbursements["d-"+id] = &domain.PayrollDisbursement{ID: "d-" + id, PayrollID: id, EmployeeID: "e-1", AllocationAmount: decimal.NewFromInt(400)}
	}
	ctx := context.Background()

	tests := []struct {
		name     string
		amount   int64
		doc      string
		matching string
		want     []string
	}{
		{"by document number", 400, "DOC-1", "", []string{"invoiced"}},
		{"falls back to matching name", 400, "DOC-UNKNOWN", "ACME LTD", []string{"invoiced"}},
		{"amount must be exact", 399, "DOC-1", "ACME LTD", nil},
		{"no keys", 400, "", "", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matches, err := ledger.MatchInvoicedPayrolls(ctx, decimal.NewFromInt(tc.amount), tc.doc, tc.matching)
			require.NoError(t, err)
			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}
