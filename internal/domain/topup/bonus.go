package topup

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Unbounded marks the open upper end of the last tier.
const Unbounded int64 = math.MaxInt64

// Tier grants Percent bonus PRX for amounts in [Min, Max].
type Tier struct {
	Min     int64
	Max     int64
	Percent int64
}

// DefaultTiers is the standard bonus table.
var DefaultTiers = []Tier{
	{Min: 0, Max: 499, Percent: 0},
	{Min: 500, Max: 999, Percent: 3},
	{Min: 1000, Max: 2499, Percent: 5},
	{Min: 2500, Max: 4999, Percent: 8},
	{Min: 5000, Max: 9999, Percent: 12},
	{Min: 10000, Max: Unbounded, Percent: 15},
}

// ValidateTiers checks that tiers start at 0, ascend without gaps or
// overlaps and end unbounded.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("bonus tiers: empty table")
	}
	if tiers[0].Min != 0 {
		return fmt.Errorf("bonus tiers: first tier starts at %d, want 0", tiers[0].Min)
	}
	for i, t := range tiers {
		if t.Max < t.Min {
			return fmt.Errorf("bonus tiers: tier %d has max %d below min %d", i, t.Max, t.Min)
		}
		if t.Percent < 0 || t.Percent > 100 {
			return fmt.Errorf("bonus tiers: tier %d percent %d out of range", i, t.Percent)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		switch {
		case t.Min <= prev.Max:
			return fmt.Errorf("bonus tiers: tier %d overlaps tier %d", i, i-1)
		case t.Min != prev.Max+1:
			return fmt.Errorf("bonus tiers: gap between %d and %d", prev.Max, t.Min)
		}
	}
	if last := tiers[len(tiers)-1]; last.Max != Unbounded {
		return fmt.Errorf("bonus tiers: last tier ends at %d, want unbounded", last.Max)
	}
	return nil
}

// ParseTiers reads "min-max:percent" entries separated by commas. An empty
// max ("10000-:15") is unbounded. The result is sorted by Min and validated.
func ParseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rng, pct, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("bonus tiers: %q: missing percent", entry)
		}
		lo, hi, ok := strings.Cut(rng, "-")
		if !ok {
			return nil, fmt.Errorf("bonus tiers: %q: missing range", entry)
		}

		var t Tier
		var err error
		if t.Min, err = strconv.ParseInt(strings.TrimSpace(lo), 10, 64); err != nil {
			return nil, fmt.Errorf("bonus tiers: %q: %w", entry, err)
		}
		t.Max = Unbounded
		if hi = strings.TrimSpace(hi); hi != "" {
			if t.Max, err = strconv.ParseInt(hi, 10, 64); err != nil {
				return nil, fmt.Errorf("bonus tiers: %q: %w", entry, err)
			}
		}
		if t.Percent, err = strconv.ParseInt(strings.TrimSpace(pct), 10, 64); err != nil {
			return nil, fmt.Errorf("bonus tiers: %q: %w", entry, err)
		}
		tiers = append(tiers, t)
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Min < tiers[j].Min })
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

// Pricing converts a requested PRX amount into a priced top-up.
type Pricing struct {
	Tiers     []Tier
	PRXPerUSD int64
	Min       int64
	Max       int64
}

// Quote is a priced top-up.
type Quote struct {
	PRXAmount    int64
	BonusPercent int64
	BonusPRX     int64
	TotalPRX     int64
	USDAmount    decimal.Decimal
}

// BonusPercent returns the percent of the tier containing prx, or 0.
func (p Pricing) BonusPercent(prx int64) int64 {
	for _, t := range p.Tiers {
		if prx >= t.Min && prx <= t.Max {
			return t.Percent
		}
	}
	return 0
}

// Quote prices prx. Amounts that are not finite whole numbers within
// [Min, Max] return ErrInvalidAmount.
func (p Pricing) Quote(prx float64) (Quote, error) {
	if math.IsNaN(prx) || math.IsInf(prx, 0) || prx != math.Trunc(prx) {
		return Quote{}, ErrInvalidAmount
	}
	if prx < float64(p.Min) || prx > float64(p.Max) {
		return Quote{}, ErrInvalidAmount
	}

	amount := int64(prx)
	pct := p.BonusPercent(amount)
	bonus := amount * pct / 100

	return Quote{
		PRXAmount:    amount,
		BonusPercent: pct,
		BonusPRX:     bonus,
		TotalPRX:     amount + bonus,
		USDAmount:    decimal.NewFromInt(amount).DivRound(decimal.NewFromInt(p.PRXPerUSD), 2),
	}, nil
}
