package core_domain

import "context"

// CriticalAlert needs an operator: either suspected data corruption, where two rows that must be
// linked are not, or money movement that cannot finish without manual action.
// Key is stable per failure mode; Message carries the row identifiers.
type CriticalAlert struct {
	Key     string            `json:"key"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Alert keys raised by the ledger core.
const (
	AlertPayrollMissingForDisbursement  = "PAYROLL_MISSING_FOR_DISBURSEMENT"
	AlertEmployerMissingForPayroll      = "EMPLOYER_MISSING_FOR_PAYROLL"
	AlertEmployeeMissingForDisbursement = "EMPLOYEE_MISSING_FOR_DISBURSEMENT"
	AlertDisbursementRelinked           = "DISBURSEMENT_LINKED_TO_DIFFERENT_TRANSACTION"
	AlertDisbursementMissingForLink     = "DISBURSEMENT_MISSING_FOR_TRANSACTION"
	AlertNoDefaultLimitConfiguration    = "NO_DEFAULT_LIMIT_CONFIGURATION"
	AlertLimitProfileMissing            = "LIMIT_PROFILE_MISSING_FOR_CONFIGURATION"
	AlertUnknownWorkflow                = "UNKNOWN_WORKFLOW"
	AlertPayrollDepositNotCompleted     = "PAYROLL_DEPOSIT_NOT_COMPLETED"
)

// AlertService raises out-of-band alerts. Implementations are fire-and-forget:
// RaiseCriticalAlert never fails the caller.
type AlertService interface {
	RaiseCriticalAlert(ctx context.Context, alert CriticalAlert)
}
