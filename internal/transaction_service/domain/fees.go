package domain

import "github.com/shopspring/decimal"

// FeeSchedule prices the workflows that carry fees. Fees are charged in the debit currency.
type FeeSchedule struct {
	WalletWithdrawalFlat decimal.Decimal
	CardWithdrawalRate   decimal.Decimal // Fraction of the amount, e.g. 0.01 for 1%
}

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		WalletWithdrawalFlat: decimal.RequireFromString("0.50"),
		CardWithdrawalRate:   decimal.RequireFromString("0.01"),
	}
}

// WalletWithdrawalFees returns the flat processing fee, or nothing when it is zero.
func (s FeeSchedule) WalletWithdrawalFees(currency string) []TransactionFee {
	if !s.WalletWithdrawalFlat.IsPositive() {
		return nil
	}
	return []TransactionFee{{Amount: s.WalletWithdrawalFlat, Currency: currency, Type: FeeTypeProcessing}}
}

// CardWithdrawalFees returns the network fee on amount, rounded to cents.
func (s FeeSchedule) CardWithdrawalFees(amount decimal.Decimal, currency string) []TransactionFee {
	fee := amount.Mul(s.CardWithdrawalRate).Round(2)
	if !fee.IsPositive() {
		return nil
	}
	return []TransactionFee{{Amount: fee, Currency: currency, Type: FeeTypeNetwork}}
}

// SumFees adds up fee amounts.
func SumFees(fees []TransactionFee) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fees {
		total = total.Add(f.Amount)
	}
	return total
}
