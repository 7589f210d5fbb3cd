package main

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aradpay/golang_services/internal/payroll_service/domain"
)

func init() {
	rootCmd.AddCommand(payrollCmd)
	payrollCmd.AddCommand(payrollShowCmd)
	payrollCmd.AddCommand(payrollInvoiceCmd)
	payrollCmd.AddCommand(payrollFundCmd)
	payrollCmd.AddCommand(payrollStartCmd)
	payrollCmd.AddCommand(payrollCompleteCmd)
	payrollCmd.AddCommand(payrollExpireCmd)
	payrollCmd.AddCommand(payrollInvestigateCmd)

	payrollInvoiceCmd.Flags().String("rate", "", "Exchange rate from debit to credit currency")
	_ = payrollInvoiceCmd.MarkFlagRequired("rate")
	payrollFundCmd.Flags().String("payment-id", "", "Bank payment transaction that funded the payroll")
	_ = payrollFundCmd.MarkFlagRequired("payment-id")
}

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Inspect and drive payroll batches",
	Long: `Inspect and drive payroll batches through their lifecycle.
Every command goes through the same transition rules as the service, so a
command that does not fit the payroll's current status is refused.`,
}

// payrollCommand wraps a single-payroll action that prints the resulting payroll.
func payrollCommand(use, short string, run func(cmd *cobra.Command, payrollID string) (*domain.Payroll, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " PAYROLL_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := run(cmd, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

var payrollShowCmd = payrollCommand("show", "Print a payroll", func(cmd *cobra.Command, id string) (*domain.Payroll, error) {
	return current.services.Payrolls.Get(cmd.Context(), id)
})

var payrollInvoiceCmd = payrollCommand("invoice", "Fix the exchange rate and invoice a prepared payroll", func(cmd *cobra.Command, id string) (*domain.Payroll, error) {
	raw, _ := cmd.Flags().GetString("rate")
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return current.services.Payrolls.InvoicePayroll(cmd.Context(), id, rate)
})

var payrollFundCmd = payrollCommand("fund", "Mark a payroll funded after manual reconciliation", func(cmd *cobra.Command, id string) (*domain.Payroll, error) {
	paymentID, _ := cmd.Flags().GetString("payment-id")
	return current.services.Payrolls.MarkFunded(cmd.Context(), id, paymentID)
})

var payrollStartCmd = payrollCommand("start", "Start or resume disbursement of a funded payroll", func(cmd *cobra.Command, id string) (*domain.Payroll, error) {
	return current.services.Payrolls.StartDisbursement(cmd.Context(), id)
})

var payrollCompleteCmd = payrollCommand("complete", "Complete a payroll in RECEIPT", func(cmd *cobra.Command, id string) (*domain.Payroll, error) {
	return current.services.Payrolls.CompletePayroll(cmd.Context(), id)
})

var payrollExpireCmd = payrollCommand("expire", "Expire a payroll that was never funded", func(cmd *cobra.Command, id string) (*domain.Payroll, error) {
	return current.services.Payrolls.ExpirePayroll(cmd.Context(), id)
})

var payrollInvestigateCmd = payrollCommand("investigate", "Put a payroll under investigation", func(cmd *cobra.Command, id string) (*domain.Payroll, error) {
	return current.services.Payrolls.OpenInvestigation(cmd.Context(), id)
})
