package robokassa

import "github.com/shopspring/decimal"

// FormatOutSum renders an amount the way it appears in OutSum.
func FormatOutSum(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// AmountsEqual compares amounts numerically, ignoring scale ("100.1" == "100.100").
func AmountsEqual(expected, actual decimal.Decimal) bool {
	return expected.Equal(actual)
}
