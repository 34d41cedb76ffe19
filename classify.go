package main

import "github.com/shopspring/decimal"

// Thresholds carries the tunable cut points for profit tiers and the
// conversion-rate outlier band.
type Thresholds struct {
	HighProfit   decimal.Decimal
	MediumProfit decimal.Decimal
	OutlierLow   decimal.Decimal
	OutlierHigh  decimal.Decimal
}

func defaultThresholds() Thresholds {
	return Thresholds{
		HighProfit:   decimal.NewFromInt(10000),
		MediumProfit: decimal.NewFromInt(5000),
		OutlierLow:   decimal.RequireFromString("0.10"),
		OutlierHigh:  decimal.RequireFromString("0.40"),
	}
}

// classifyProfit tiers a profit value: High above the high threshold,
// Medium from the medium threshold up to and including the high one, Low
// for everything else. The three tiers partition the whole line, so both
// boundary values land in Medium and a NULL profit lands in Low.
func classifyProfit(p any, t Thresholds) string {
	v, ok := asDecimal(p)
	if !ok {
		return "Low"
	}
	switch {
	case v.GreaterThan(t.HighProfit):
		return "High"
	case v.GreaterThanOrEqual(t.MediumProfit):
		return "Medium"
	default:
		return "Low"
	}
}

// isRateOutlier reports whether a conversion rate falls strictly outside
// the accepted band. The boundaries themselves are not outliers, and a
// NULL rate never is.
func isRateOutlier(rate any, t Thresholds) bool {
	v, ok := asDecimal(rate)
	if !ok {
		return false
	}
	return v.LessThan(t.OutlierLow) || v.GreaterThan(t.OutlierHigh)
}
