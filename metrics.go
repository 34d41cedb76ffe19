package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// Derived metric tables. Each builder composes the relational primitives
// over a snapshot and returns plain rows; reports sort and trim them.

var (
	conversionWeight = decimal.RequireFromString("0.7")
	roiWeight        = decimal.RequireFromString("0.3")
)

// roiByCampaign computes roi = (revenue - spend) / spend per campaign.
// Zero spend or missing revenue leaves roi NULL.
func roiByCampaign(s *Snapshot) []Row {
	return deriveRows(campaignRows(s), "roi", func(r Row) any {
		return safeDiv(safeSub(r.value("revenue_usd"), r.value("spend_usd")), r.value("spend_usd"))
	})
}

// conversionRateByCampaign aggregates leads per campaign_id and derives
// conversion_rate = conversions / lead_count. The denominator counts
// non-NULL lead_id values; for inputs whose leads all carry an id this
// equals the plain row count. Leads with a NULL campaign_id form a group of
// their own.
func conversionRateByCampaign(s *Snapshot) ([]Row, error) {
	rows, err := aggregate(leadRows(s), []string{"campaign_id"}, []reducer{
		countField("lead_count", "lead_id"),
		sum("conversions", "converted"),
	})
	if err != nil {
		return nil, err
	}
	return deriveRows(rows, "conversion_rate", func(r Row) any {
		return safeDiv(r.value("conversions"), r.value("lead_count"))
	}), nil
}

// cpaByCampaign derives cpa = total lead cost / conversions per campaign.
// A campaign with no conversions, or whose leads never report a cost, gets
// a NULL cpa.
func cpaByCampaign(s *Snapshot) ([]Row, error) {
	rows, err := aggregate(leadRows(s), []string{"campaign_id"}, []reducer{
		sum("total_cost", "lead_cost"),
		sum("conversions", "converted"),
	})
	if err != nil {
		return nil, err
	}
	return deriveRows(rows, "cpa", func(r Row) any {
		return safeDiv(r.value("total_cost"), r.value("conversions"))
	}), nil
}

// leadCostByCampaign sums lead_cost per campaign_id. The sum is NULL when
// no lead of the campaign carries a cost.
func leadCostByCampaign(s *Snapshot) ([]Row, error) {
	return aggregate(leadRows(s), []string{"campaign_id"}, []reducer{
		sum("total_lead_cost", "lead_cost"),
	})
}

// leadFirstSeen reduces each lead_id to its earliest contact row, keeping
// the timestamp of that row as first_seen. Leads without an id collapse
// into a single NULL group under grouping semantics.
func leadFirstSeen(s *Snapshot) ([]Row, error) {
	return aggregate(leadRows(s), []string{"lead_id"}, []reducer{
		firstBy("first_seen", "timestamp", "timestamp"),
	})
}

// cohortDay truncates a timestamp to its calendar date. Timestamps are
// taken as already normalized to one reference timezone upstream; no
// location conversion happens here.
func cohortDay(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return t.Format("2006-01-02")
}

// revenueBySource sums campaign revenue per source label.
func revenueBySource(s *Snapshot) ([]Row, error) {
	return aggregate(campaignRows(s), []string{"source"}, []reducer{
		sum("source_revenue", "revenue_usd"),
	})
}

// totalRevenue reduces all campaigns to a single global revenue row,
// suitable for broadcasting with a cross join. Empty input reduces to zero
// rows, which the cross join then rejects.
func totalRevenue(s *Snapshot) ([]Row, error) {
	return aggregate(campaignRows(s), nil, []reducer{
		sum("total_revenue", "revenue_usd"),
	})
}

// leadWindow reduces all leads to their earliest and latest timestamps.
func leadWindow(s *Snapshot) ([]Row, error) {
	return aggregate(leadRows(s), nil, []reducer{
		minOf("window_start", "timestamp"),
		maxOf("window_end", "timestamp"),
	})
}

// weightedScore blends conversion rate and ROI, weighted 0.7 and 0.3, and
// is NULL when either input is NULL.
func weightedScore(rate, roi any) any {
	return safeAdd(safeMul(rate, conversionWeight), safeMul(roi, roiWeight))
}
