package topup

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultPricing() Pricing {
	return Pricing{Tiers: DefaultTiers, PRXPerUSD: 100, Min: 50, Max: 1_000_000}
}

func TestQuoteExamples(t *testing.T) {
	cases := []struct {
		prx       float64
		bonus     int64
		total     int64
		usd       string
		bonusPerc int64
	}{
		{50, 0, 50, "0.50", 0},
		{499, 0, 499, "4.99", 0},
		{500, 15, 515, "5.00", 3},
		{999, 29, 1028, "9.99", 3},
		{1000, 50, 1050, "10.00", 5},
		{2500, 200, 2700, "25.00", 8},
		{5000, 600, 5600, "50.00", 12},
		{9999, 1199, 11198, "99.99", 12},
		{10000, 1500, 11500, "100.00", 15},
		{1_000_000, 150_000, 1_150_000, "10000.00", 15},
	}
	for _, tc := range cases {
		q, err := defaultPricing().Quote(tc.prx)
		require.NoError(t, err, "prx=%v", tc.prx)
		require.Equal(t, tc.bonusPerc, q.BonusPercent, "prx=%v", tc.prx)
		require.Equal(t, tc.bonus, q.BonusPRX, "prx=%v", tc.prx)
		require.Equal(t, tc.total, q.TotalPRX, "prx=%v", tc.prx)
		require.Equal(t, tc.usd, q.USDAmount.StringFixed(2), "prx=%v", tc.prx)
	}
}

func TestQuoteRejectsInvalidAmounts(t *testing.T) {
	for _, prx := range []float64{0, 49, -100, 1_000_001, 100.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := defaultPricing().Quote(prx)
		require.ErrorIs(t, err, ErrInvalidAmount, "prx=%v", prx)
	}
}

func TestDefaultTiersAreValid(t *testing.T) {
	require.NoError(t, ValidateTiers(DefaultTiers))
}

func TestValidateTiersRejectsBrokenTables(t *testing.T) {
	cases := map[string][]Tier{
		"empty":       nil,
		"not from 0":  {{Min: 1, Max: Unbounded}},
		"gap":         {{Min: 0, Max: 499}, {Min: 600, Max: Unbounded, Percent: 5}},
		"overlap":     {{Min: 0, Max: 499}, {Min: 400, Max: Unbounded, Percent: 5}},
		"bounded end": {{Min: 0, Max: 499}, {Min: 500, Max: 999, Percent: 5}},
		"inverted":    {{Min: 0, Max: 499}, {Min: 500, Max: 10, Percent: 5}},
		"percent":     {{Min: 0, Max: Unbounded, Percent: 150}},
	}
	for name, tiers := range cases {
		require.Error(t, ValidateTiers(tiers), name)
	}
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("10000-:15, 0-499:0,500-999:3,1000-2499:5,2500-4999:8,5000-9999:12")
	require.NoError(t, err)
	require.Equal(t, DefaultTiers, tiers)

	_, err = ParseTiers("0-499:0,600-:5")
	require.Error(t, err)

	_, err = ParseTiers("0-499")
	require.Error(t, err)

	_, err = ParseTiers("0-x:1")
	require.Error(t, err)
}
