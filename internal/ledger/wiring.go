// Package ledger assembles the transaction, limit and payroll services over shared Postgres
// and NATS connections.
package ledger

import (
	"fmt"
	"log/slog"

	limitapp "github.com/aradpay/golang_services/internal/limit_service/app"
	limitpg "github.com/aradpay/golang_services/internal/limit_service/repository/postgres"
	partypg "github.com/aradpay/golang_services/internal/party_service/repository/postgres"
	payrollapp "github.com/aradpay/golang_services/internal/payroll_service/app"
	payrollpg "github.com/aradpay/golang_services/internal/payroll_service/repository/postgres"
	"github.com/aradpay/golang_services/internal/platform/alerting"
	"github.com/aradpay/golang_services/internal/platform/config"
	"github.com/aradpay/golang_services/internal/platform/database"
	"github.com/aradpay/golang_services/internal/platform/messagebroker"
	txnats "github.com/aradpay/golang_services/internal/transaction_service/adapters/nats"
	txapp "github.com/aradpay/golang_services/internal/transaction_service/app"
	txdomain "github.com/aradpay/golang_services/internal/transaction_service/domain"
	txpg "github.com/aradpay/golang_services/internal/transaction_service/repository/postgres"
)

// Services is the assembled ledger core.
type Services struct {
	Transactions *txapp.TransactionService
	Limits       *limitapp.LimitEngine
	LimitSeeder  *limitapp.LimitSeeder
	Payrolls     *payrollapp.PayrollService
	Disbursement *payrollapp.DisbursementLedger
	Resumer      *payrollapp.DisbursementResumer
}

// Wire builds every service. The payroll service is registered as a status listener on the
// transaction service before Wire returns.
func Wire(cfg *config.Config, db database.Pool, nc messagebroker.NATSClient, logger *slog.Logger) (*Services, error) {
	alerts := alerting.NewNATSAlertService(nc, cfg.AlertSubject, logger)
	workflows := txnats.NewWorkflowExecutor(nc, cfg.WorkflowSubjectPrefix, logger)

	consumers := partypg.NewPgConsumerRepository(db, logger)
	employers := partypg.NewPgEmployerRepository(db, logger)
	employees := partypg.NewPgEmployeeRepository(db, logger)

	transactionRepo := txpg.NewPgTransactionRepository(db, logger)
	eventRepo := txpg.NewPgTransactionEventRepository(db, logger)

	limitConfigRepo := limitpg.NewPgLimitConfigurationRepository(db, logger)
	limitEngine := limitapp.NewLimitEngine(
		limitConfigRepo,
		limitpg.NewPgLimitProfileRepository(db, logger),
		limitapp.NewHistoricalAggregator(transactionRepo, logger),
		consumers,
		alerts,
		logger,
	)

	payrollRepo := payrollpg.NewPgPayrollRepository(db, logger)
	disbursementRepo := payrollpg.NewPgPayrollDisbursementRepository(db, logger)
	disbursementLedger := payrollapp.NewDisbursementLedger(payrollRepo, disbursementRepo, alerts, logger)

	v := txdomain.NewRequestValidator()
	fees := txdomain.DefaultFeeSchedule()
	registry, err := txapp.NewProcessorRegistry(map[txdomain.WorkflowName]txapp.TransactionProcessor{
		txdomain.WorkflowWalletDeposit:        txapp.NewWalletDepositProcessor(v, consumers, workflows, logger),
		txdomain.WorkflowWalletWithdrawal:     txapp.NewWalletWithdrawalProcessor(v, consumers, workflows, fees, logger),
		txdomain.WorkflowWalletTransfer:       txapp.NewWalletTransferProcessor(v, consumers, workflows, logger),
		txdomain.WorkflowCardCreditAdjustment: txapp.NewCardAdjustmentProcessor(txapp.DirectionCredit, v, consumers, workflows, logger),
		txdomain.WorkflowCardDebitAdjustment:  txapp.NewCardAdjustmentProcessor(txapp.DirectionDebit, v, consumers, workflows, logger),
		txdomain.WorkflowCardReversal:         txapp.NewCardReversalProcessor(v, transactionRepo, workflows, logger),
		txdomain.WorkflowCardWithdrawal:       txapp.NewCardWithdrawalProcessor(v, consumers, workflows, fees, logger),
		txdomain.WorkflowPayrollDeposit:       txapp.NewPayrollDepositProcessor(v, payrollRepo, disbursementRepo, employers, employees, disbursementLedger, workflows, alerts, logger),
		txdomain.WorkflowCreditAdjustment:     txapp.NewAdjustmentProcessor(txapp.DirectionCredit, v, consumers, workflows, logger),
		txdomain.WorkflowDebitAdjustment:      txapp.NewAdjustmentProcessor(txapp.DirectionDebit, v, consumers, workflows, logger),
	})
	if err != nil {
		return nil, fmt.Errorf("building processor registry: %w", err)
	}
	transactionService := txapp.NewTransactionService(registry, transactionRepo, eventRepo, limitEngine, alerts, logger)

	payrollService := payrollapp.NewPayrollService(
		payrollRepo,
		disbursementRepo,
		disbursementLedger,
		employers,
		employees,
		transactionService,
		cfg.PayrollFanoutConcurrency,
		cfg.PayrollFanoutTimeout,
		logger,
	)
	transactionService.AddStatusListener(payrollService)

	return &Services{
		Transactions: transactionService,
		Limits:       limitEngine,
		LimitSeeder:  limitapp.NewLimitSeeder(limitConfigRepo, logger),
		Payrolls:     payrollService,
		Disbursement: disbursementLedger,
		Resumer: payrollapp.NewDisbursementResumer(payrollRepo, payrollService, payrollapp.ResumerConfig{
			PollingInterval: cfg.PayrollResumeInterval,
			BatchSize:       cfg.PayrollResumeBatchSize,
			GracePeriod:     cfg.PayrollResumeGracePeriod,
		}, logger),
	}, nil
}
