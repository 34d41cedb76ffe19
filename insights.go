package main

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Insight is one line of the cross-report digest: an area, a severity of
// high, medium or low, and a human-readable message.
type Insight struct {
	Area     string `json:"area"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func findReport(results []ReportResult, key string) *ReportResult {
	for i := range results {
		if results[i].Key == key {
			return &results[i]
		}
	}
	return nil
}

func usableReport(results []ReportResult, key string) *ReportResult {
	r := findReport(results, key)
	if r == nil || r.Err != "" || len(r.Rows) == 0 {
		return nil
	}
	return r
}

func ratio(n, d int) decimal.Decimal {
	if d == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(d)))
}

func pct(share decimal.Decimal) string {
	return share.Mul(decimal.NewFromInt(100)).Round(1).String() + "%"
}

// buildInsights digests the computed reports into a handful of flagged
// observations. Areas whose source report failed or came back empty are
// skipped rather than guessed at.
func buildInsights(results []ReportResult, opts Options) []Insight {
	var out []Insight

	if r := usableReport(results, "profit-tiers"); r != nil {
		low := 0
		for _, row := range r.Rows {
			if row.value("tier") == "Low" {
				low++
			}
		}
		share := ratio(low, len(r.Rows))
		severity := "low"
		switch {
		case share.GreaterThanOrEqual(decimal.RequireFromString("0.5")):
			severity = "high"
		case share.GreaterThanOrEqual(decimal.RequireFromString("0.25")):
			severity = "medium"
		}
		out = append(out, Insight{
			Area:     "profit",
			Severity: severity,
			Message:  fmt.Sprintf("%s of costed campaigns sit in the Low profit tier (%d of %d)", pct(share), low, len(r.Rows)),
		})
	}

	if r := usableReport(results, "cpa-vs-average"); r != nil {
		above, undefined := 0, 0
		for _, row := range r.Rows {
			switch row.value("versus_average") {
			case "above":
				above++
			case "undefined":
				undefined++
			}
		}
		undefinedShare := ratio(undefined, len(r.Rows))
		aboveShare := ratio(above, len(r.Rows))
		switch {
		case undefinedShare.GreaterThanOrEqual(decimal.RequireFromString("0.5")):
			out = append(out, Insight{
				Area:     "cpa",
				Severity: "high",
				Message:  fmt.Sprintf("%d of %d campaigns have no measurable CPA (no conversions or no cost data)", undefined, len(r.Rows)),
			})
		case aboveShare.GreaterThanOrEqual(decimal.RequireFromString("0.5")):
			out = append(out, Insight{
				Area:     "cpa",
				Severity: "medium",
				Message:  fmt.Sprintf("%s of campaigns acquire above the average CPA (%d of %d)", pct(aboveShare), above, len(r.Rows)),
			})
		default:
			out = append(out, Insight{
				Area:     "cpa",
				Severity: "low",
				Message:  fmt.Sprintf("%s of campaigns acquire above the average CPA (%d of %d)", pct(aboveShare), above, len(r.Rows)),
			})
		}
	}

	if rates := usableReport(results, "conversion-rate"); rates != nil {
		outliers := 0
		if r := findReport(results, "conversion-outliers"); r != nil && r.Err == "" {
			outliers = len(r.Rows)
		}
		share := ratio(outliers, len(rates.Rows))
		severity := "low"
		switch {
		case share.GreaterThanOrEqual(decimal.RequireFromString("0.4")):
			severity = "high"
		case share.GreaterThanOrEqual(decimal.RequireFromString("0.2")):
			severity = "medium"
		}
		out = append(out, Insight{
			Area:     "outliers",
			Severity: severity,
			Message:  fmt.Sprintf("%d of %d campaigns convert outside the %s-%s band", outliers, len(rates.Rows), opts.Thresholds.OutlierLow.String(), opts.Thresholds.OutlierHigh.String()),
		})
	}

	if r := usableReport(results, "revenue-share"); r != nil {
		top := r.Rows[0]
		if share, ok := asDecimal(top.value("revenue_share")); ok {
			severity := "low"
			switch {
			case share.GreaterThanOrEqual(decimal.RequireFromString("0.75")):
				severity = "high"
			case share.GreaterThanOrEqual(decimal.RequireFromString("0.5")):
				severity = "medium"
			}
			source := "unattributed"
			if s, ok := top.value("source").(string); ok {
				source = s
			}
			out = append(out, Insight{
				Area:     "revenue-concentration",
				Severity: severity,
				Message:  fmt.Sprintf("source %s holds %s of attributed revenue", source, pct(share)),
			})
		}
	}

	return out
}
