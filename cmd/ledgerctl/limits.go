package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	limitdomain "github.com/aradpay/golang_services/internal/limit_service/domain"
)

func init() {
	rootCmd.AddCommand(seedLimitsCmd)
	rootCmd.AddCommand(canTransactCmd)

	canTransactCmd.Flags().String("consumer", "", "Consumer ID")
	canTransactCmd.Flags().String("amount", "", "Amount to check")
	canTransactCmd.Flags().String("type", string(limitdomain.TransactionTypeWithdrawal), "DEPOSIT, WITHDRAWAL or TRANSFER")
	_ = canTransactCmd.MarkFlagRequired("consumer")
	_ = canTransactCmd.MarkFlagRequired("amount")
}

var seedLimitsCmd = &cobra.Command{
	Use:   "seed-limits",
	Short: "Install the default limit profiles when no configuration exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		seeded, err := current.services.LimitSeeder.SeedDefaults(cmd.Context())
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintln(cmd.OutOrStdout(), "Default limit configurations installed.")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Limit configurations already present, nothing to do.")
		}
		return nil
	},
}

var canTransactCmd = &cobra.Command{
	Use:   "can-transact",
	Short: "Check an amount against the consumer's applicable limit profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		consumerID, _ := cmd.Flags().GetString("consumer")
		rawAmount, _ := cmd.Flags().GetString("amount")
		rawType, _ := cmd.Flags().GetString("type")

		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", rawAmount, err)
		}
		var txType limitdomain.TransactionType
		if err := txType.Scan(rawType); err != nil {
			return err
		}

		decision, err := current.services.Limits.CanTransact(cmd.Context(), limitdomain.LimitRequest{
			ConsumerID:      consumerID,
			Amount:          amount,
			TransactionType: txType,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), decision)
	},
}
