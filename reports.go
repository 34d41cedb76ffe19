package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Options tunes a report run. TopN bounds rank-limited reports; zero or
// negative means unlimited.
type Options struct {
	TopN       int
	Thresholds Thresholds
}

func defaultOptions() Options {
	return Options{TopN: 3, Thresholds: defaultThresholds()}
}

// reportDef is one report pipeline: a builder over the snapshot plus the
// column order its rows are presented in.
type reportDef struct {
	Key     string
	Title   string
	Columns []string
	Build   func(*Snapshot, Options) ([]Row, error)
}

// ReportResult is one computed report. A report that failed structurally
// carries its cause in Err and no rows; other reports in the same run are
// unaffected.
type ReportResult struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	Err     string   `json:"error,omitempty"`
}

// RunDocument is the full output of one run: every computed report plus
// the run header and the insight digest. It is what the JSON output, the
// exports and the Postgres store all serialize.
type RunDocument struct {
	RunID         string         `json:"run_id"`
	GeneratedAt   string         `json:"generated_at"`
	CampaignsPath string         `json:"campaigns_path,omitempty"`
	LeadsPath     string         `json:"leads_path,omitempty"`
	CampaignCount int            `json:"campaign_count"`
	LeadCount     int            `json:"lead_count"`
	WindowStart   string         `json:"window_start,omitempty"`
	WindowEnd     string         `json:"window_end,omitempty"`
	Reports       []ReportResult `json:"reports"`
	Insights      []Insight      `json:"insights"`
}

func reportDefs() []reportDef {
	return []reportDef{
		{
			Key:     "roi-ranking",
			Title:   "Top campaigns by ROI",
			Columns: []string{"ranking", "campaign_id", "campaign_name", "spend_usd", "revenue_usd", "roi"},
			Build:   buildROIRanking,
		},
		{
			Key:     "conversion-rate",
			Title:   "Conversion rate by campaign",
			Columns: []string{"campaign_id", "lead_count", "conversions", "conversion_rate"},
			Build:   buildConversionRates,
		},
		{
			Key:     "cpa",
			Title:   "Cost per acquisition by campaign",
			Columns: []string{"campaign_id", "total_cost", "conversions", "cpa"},
			Build:   buildCPA,
		},
		{
			Key:     "cpa-vs-average",
			Title:   "CPA against the cross-campaign average",
			Columns: []string{"campaign_id", "cpa", "average_cpa", "delta", "versus_average"},
			Build:   buildCPAVsAverage,
		},
		{
			Key:     "lead-cohorts",
			Title:   "Lead cohorts by first-seen day",
			Columns: []string{"cohort_day", "lead_count"},
			Build:   buildLeadCohorts,
		},
		{
			Key:     "profit-tiers",
			Title:   "Campaign profit tiers",
			Columns: []string{"campaign_id", "campaign_name", "revenue_usd", "total_lead_cost", "profit", "tier"},
			Build:   buildProfitTiers,
		},
		{
			Key:     "conversion-outliers",
			Title:   "Conversion-rate outliers",
			Columns: []string{"campaign_id", "lead_count", "conversions", "conversion_rate"},
			Build:   buildConversionOutliers,
		},
		{
			Key:     "composite-score",
			Title:   "Composite campaign scores",
			Columns: []string{"ranking", "campaign_id", "campaign_name", "conversion_rate", "roi", "composite_score"},
			Build:   buildCompositeScores,
		},
		{
			Key:     "revenue-share",
			Title:   "Revenue share by source",
			Columns: []string{"source", "source_revenue", "total_revenue", "revenue_share"},
			Build:   buildRevenueShare,
		},
		{
			Key:     "conversion-timeline",
			Title:   "Conversion timeline per campaign",
			Columns: []string{"campaign_id", "sequence", "lead_id", "timestamp", "converted", "running_conversions"},
			Build:   buildConversionTimeline,
		},
	}
}

func buildROIRanking(s *Snapshot, o Options) ([]Row, error) {
	ranked := rankRows(roiByCampaign(s), nil, "roi", true, "ranking")
	sortRows(ranked, sortKey{Field: "ranking"}, sortKey{Field: "campaign_id"})
	return limitByRank(ranked, "ranking", o.TopN), nil
}

func buildConversionRates(s *Snapshot, o Options) ([]Row, error) {
	rows, err := conversionRateByCampaign(s)
	if err != nil {
		return nil, err
	}
	sortRows(rows, sortKey{Field: "conversion_rate", Desc: true}, sortKey{Field: "campaign_id"})
	return rows, nil
}

func buildCPA(s *Snapshot, o Options) ([]Row, error) {
	rows, err := cpaByCampaign(s)
	if err != nil {
		return nil, err
	}
	sortRows(rows, sortKey{Field: "cpa"}, sortKey{Field: "campaign_id"})
	return rows, nil
}

func buildCPAVsAverage(s *Snapshot, o Options) ([]Row, error) {
	cpaRows, err := cpaByCampaign(s)
	if err != nil {
		return nil, err
	}
	avg, err := aggregate(cpaRows, nil, []reducer{mean("average_cpa", "cpa")})
	if err != nil {
		return nil, err
	}
	joined, err := crossJoin(cpaRows, avg)
	if err != nil {
		return nil, err
	}
	rows := deriveRows(joined, "delta", func(r Row) any {
		return safeSub(r.value("cpa"), r.value("average_cpa"))
	})
	rows = deriveRows(rows, "versus_average", func(r Row) any {
		d, ok := asDecimal(r.value("delta"))
		if !ok {
			return "undefined"
		}
		switch d.Sign() {
		case 1:
			return "above"
		case -1:
			return "below"
		default:
			return "at"
		}
	})
	sortRows(rows, sortKey{Field: "delta", Desc: true}, sortKey{Field: "campaign_id"})
	return rows, nil
}

func buildLeadCohorts(s *Snapshot, o Options) ([]Row, error) {
	first, err := leadFirstSeen(s)
	if err != nil {
		return nil, err
	}
	days := deriveRows(first, "cohort_day", func(r Row) any {
		return cohortDay(r.value("first_seen"))
	})
	cohorts, err := aggregate(days, []string{"cohort_day"}, []reducer{count("lead_count")})
	if err != nil {
		return nil, err
	}
	sortRows(cohorts, sortKey{Field: "cohort_day"})
	return cohorts, nil
}

func buildProfitTiers(s *Snapshot, o Options) ([]Row, error) {
	costs, err := leadCostByCampaign(s)
	if err != nil {
		return nil, err
	}
	joined := innerJoin(campaignRows(s), costs, "campaign_id", "campaign_id")
	rows := deriveRows(joined, "profit", func(r Row) any {
		return safeSub(r.value("revenue_usd"), r.value("total_lead_cost"))
	})
	rows = deriveRows(rows, "tier", func(r Row) any {
		return classifyProfit(r.value("profit"), o.Thresholds)
	})
	sortRows(rows, sortKey{Field: "profit", Desc: true}, sortKey{Field: "campaign_id"})
	return rows, nil
}

func buildConversionOutliers(s *Snapshot, o Options) ([]Row, error) {
	rows, err := conversionRateByCampaign(s)
	if err != nil {
		return nil, err
	}
	rows = filterRows(rows, func(r Row) bool {
		return isRateOutlier(r.value("conversion_rate"), o.Thresholds)
	})
	sortRows(rows, sortKey{Field: "conversion_rate"}, sortKey{Field: "campaign_id"})
	return rows, nil
}

func buildCompositeScores(s *Snapshot, o Options) ([]Row, error) {
	rates, err := conversionRateByCampaign(s)
	if err != nil {
		return nil, err
	}
	joined := innerJoin(rates, roiByCampaign(s), "campaign_id", "campaign_id")
	scored := deriveRows(joined, "composite_score", func(r Row) any {
		return weightedScore(r.value("conversion_rate"), r.value("roi"))
	})
	ranked := rankRows(scored, nil, "composite_score", true, "ranking")
	sortRows(ranked, sortKey{Field: "composite_score", Desc: true}, sortKey{Field: "campaign_id"})
	return ranked, nil
}

func buildRevenueShare(s *Snapshot, o Options) ([]Row, error) {
	bySource, err := revenueBySource(s)
	if err != nil {
		return nil, err
	}
	total, err := totalRevenue(s)
	if err != nil {
		return nil, err
	}
	joined, err := crossJoin(bySource, total)
	if err != nil {
		return nil, err
	}
	rows := deriveRows(joined, "revenue_share", func(r Row) any {
		return safeDiv(r.value("source_revenue"), r.value("total_revenue"))
	})
	sortRows(rows, sortKey{Field: "revenue_share", Desc: true}, sortKey{Field: "source"})
	return rows, nil
}

func buildConversionTimeline(s *Snapshot, o Options) ([]Row, error) {
	numbered := rowNumberRows(leadRows(s), []string{"campaign_id"}, "timestamp", "sequence")
	rows := runningSumRows(numbered, []string{"campaign_id"}, "timestamp", "converted", "running_conversions")
	sortRows(rows, sortKey{Field: "campaign_id"}, sortKey{Field: "sequence"})
	return rows, nil
}

// computeReports runs the selected report pipelines against the snapshot.
// only narrows the run to a single report key ("" or "all" runs everything).
// A pipeline failure is recorded on its result and does not stop the rest.
func computeReports(s *Snapshot, opts Options, only string) ([]ReportResult, error) {
	defs := reportDefs()
	results := make([]ReportResult, 0, len(defs))
	for _, def := range defs {
		if only != "" && only != "all" && only != def.Key {
			continue
		}
		res := ReportResult{Key: def.Key, Title: def.Title, Columns: def.Columns}
		rows, err := def.Build(s, opts)
		if err != nil {
			res.Err = err.Error()
		} else {
			res.Rows = rows
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("unknown report %q (valid: %s)", only, strings.Join(reportKeys(), ", "))
	}
	return results, nil
}

func reportKeys() []string {
	defs := reportDefs()
	keys := make([]string, len(defs))
	for i, def := range defs {
		keys[i] = def.Key
	}
	return keys
}

// buildRunDocument computes every requested report plus the run header and
// insight digest for one snapshot.
func buildRunDocument(s *Snapshot, opts Options, only, campaignsPath, leadsPath string) (*RunDocument, error) {
	results, err := computeReports(s, opts, only)
	if err != nil {
		return nil, err
	}
	doc := &RunDocument{
		RunID:         uuid.New().String(),
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		CampaignsPath: campaignsPath,
		LeadsPath:     leadsPath,
		CampaignCount: len(s.Campaigns),
		LeadCount:     len(s.Leads),
		Reports:       results,
		Insights:      buildInsights(results, opts),
	}
	if window, err := leadWindow(s); err == nil && len(window) == 1 {
		if t, ok := window[0].value("window_start").(time.Time); ok {
			doc.WindowStart = t.Format(time.RFC3339)
		}
		if t, ok := window[0].value("window_end").(time.Time); ok {
			doc.WindowEnd = t.Format(time.RFC3339)
		}
	}
	return doc, nil
}
