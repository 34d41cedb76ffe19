package main

import (
	"errors"
	"strings"
	"testing"
)

func buildReport(t *testing.T, s *Snapshot, opts Options, key string) []Row {
	t.Helper()
	for _, def := range reportDefs() {
		if def.Key != key {
			continue
		}
		rows, err := def.Build(s, opts)
		if err != nil {
			t.Fatalf("report %s: unexpected error: %v", key, err)
		}
		return rows
	}
	t.Fatalf("report %s not defined", key)
	return nil
}

func TestROIRankingTopOne(t *testing.T) {
	opts := defaultOptions()
	opts.TopN = 1
	rows := buildReport(t, demoSnapshot(), opts, "roi-ranking")
	if len(rows) != 1 {
		t.Fatalf("expected a single row, got %d", len(rows))
	}
	if rows[0].value("campaign_id") != "c1" {
		t.Fatalf("expected campaign c1 on top, got %v", rows[0].value("campaign_id"))
	}
	if rank := rows[0].value("ranking").(int64); rank != 1 {
		t.Fatalf("expected ranking 1, got %d", rank)
	}
	wantDecimal(t, rows[0].value("roi"), "2")
}

func TestROIRankingKeepsBoundaryTies(t *testing.T) {
	s := &Snapshot{Campaigns: []Campaign{
		{ID: "c1", Name: "A", Spend: dec("100"), Revenue: nd("500"), Source: "X"},
		{ID: "c2", Name: "B", Spend: dec("100"), Revenue: nd("400"), Source: "X"},
		{ID: "c3", Name: "C", Spend: dec("100"), Revenue: nd("400"), Source: "X"},
		{ID: "c4", Name: "D", Spend: dec("100"), Revenue: nd("200"), Source: "X"},
	}}
	opts := defaultOptions()
	opts.TopN = 2
	rows := buildReport(t, s, opts, "roi-ranking")
	if len(rows) != 3 {
		t.Fatalf("expected the tie at rank 2 to survive the cutoff, got %d rows", len(rows))
	}
	if rows[0].value("campaign_id") != "c1" {
		t.Fatalf("expected c1 first, got %v", rows[0].value("campaign_id"))
	}
	if rows[1].value("ranking").(int64) != 2 || rows[2].value("ranking").(int64) != 2 {
		t.Fatalf("expected both tied campaigns at rank 2")
	}
}

func TestROIRankingNullROISortsLast(t *testing.T) {
	s := &Snapshot{Campaigns: []Campaign{
		{ID: "c1", Name: "A", Spend: dec("100"), Revenue: nd("300"), Source: "X"},
		{ID: "c2", Name: "B", Spend: dec("0"), Revenue: nd("900"), Source: "X"},
	}}
	opts := defaultOptions()
	opts.TopN = 0
	rows := buildReport(t, s, opts, "roi-ranking")
	if len(rows) != 2 {
		t.Fatalf("expected both campaigns, got %d rows", len(rows))
	}
	last := rows[len(rows)-1]
	if last.value("campaign_id") != "c2" {
		t.Fatalf("expected the NULL-ROI campaign last, got %v", last.value("campaign_id"))
	}
	if last.value("roi") != nil {
		t.Fatalf("expected NULL roi, got %v", last.value("roi"))
	}
}

func TestConversionRateReportOrder(t *testing.T) {
	rows := buildReport(t, demoSnapshot(), defaultOptions(), "conversion-rate")
	if len(rows) != 2 {
		t.Fatalf("expected 2 campaigns, got %d", len(rows))
	}
	if rows[0].value("campaign_id") != "c2" {
		t.Fatalf("expected the higher rate first, got %v", rows[0].value("campaign_id"))
	}
	wantDecimal(t, rows[0].value("conversion_rate"), "1")
	wantDecimal(t, rows[1].value("conversion_rate"), "0.5")
}

func TestCPAReportOrdersAscending(t *testing.T) {
	rows := buildReport(t, demoSnapshot(), defaultOptions(), "cpa")
	if rows[0].value("campaign_id") != "c2" {
		t.Fatalf("expected the cheaper acquisition first, got %v", rows[0].value("campaign_id"))
	}
}

func TestCPAVsAverageReport(t *testing.T) {
	rows := buildReport(t, demoSnapshot(), defaultOptions(), "cpa-vs-average")
	c1 := findRow(rows, "campaign_id", "c1")
	c2 := findRow(rows, "campaign_id", "c2")
	wantDecimal(t, c1.value("average_cpa"), "35")
	wantDecimal(t, c1.value("delta"), "15")
	if c1.value("versus_average") != "above" {
		t.Fatalf("expected c1 above average, got %v", c1.value("versus_average"))
	}
	wantDecimal(t, c2.value("delta"), "-15")
	if c2.value("versus_average") != "below" {
		t.Fatalf("expected c2 below average, got %v", c2.value("versus_average"))
	}
}

func TestCPAVsAverageSkipsNullCPAInMean(t *testing.T) {
	s := demoSnapshot()
	s.Leads = append(s.Leads, Lead{
		ID: "l4", CampaignID: "c3", Cost: nd("99"), Timestamp: ts("2025-03-03T10:00:00Z"), Converted: 0,
	})
	rows := buildReport(t, s, defaultOptions(), "cpa-vs-average")
	c3 := findRow(rows, "campaign_id", "c3")
	if c3.value("versus_average") != "undefined" {
		t.Fatalf("expected an undefined position for a NULL cpa, got %v", c3.value("versus_average"))
	}
	// The unconverted campaign must not drag the mean: still (50+20)/2.
	wantDecimal(t, c3.value("average_cpa"), "35")
}

func TestLeadCohortsReport(t *testing.T) {
	s := &Snapshot{Leads: []Lead{
		{ID: "l1", CampaignID: "c1", Timestamp: ts("2025-03-02T09:00:00Z"), Converted: 0},
		{ID: "l1", CampaignID: "c1", Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 1},
		{ID: "l2", CampaignID: "c1", Timestamp: ts("2025-03-01T12:00:00Z"), Converted: 0},
		{ID: "l3", CampaignID: "c2", Timestamp: ts("2025-03-02T12:00:00Z"), Converted: 1},
	}}
	rows := buildReport(t, s, defaultOptions(), "lead-cohorts")
	if len(rows) != 2 {
		t.Fatalf("expected 2 cohort days, got %d", len(rows))
	}
	if rows[0].value("cohort_day") != "2025-03-01" {
		t.Fatalf("expected the earlier day first, got %v", rows[0].value("cohort_day"))
	}
	// l1 first appears on the 1st, so the 2nd only holds l3.
	if n := rows[0].value("lead_count").(int64); n != 2 {
		t.Fatalf("expected 2 leads in the first cohort, got %d", n)
	}
	if n := rows[1].value("lead_count").(int64); n != 1 {
		t.Fatalf("expected 1 lead in the second cohort, got %d", n)
	}
}

func TestProfitTiersReport(t *testing.T) {
	s := &Snapshot{
		Campaigns: []Campaign{
			{ID: "c1", Name: "A", Spend: dec("100"), Revenue: nd("20500"), Source: "X"},
			{ID: "c2", Name: "B", Spend: dec("100"), Revenue: nd("7000"), Source: "X"},
			{ID: "c3", Name: "C", Spend: dec("100"), Revenue: nd("900"), Source: "X"},
			{ID: "no-leads", Name: "D", Spend: dec("100"), Revenue: nd("99999"), Source: "X"},
		},
		Leads: []Lead{
			{ID: "l1", CampaignID: "c1", Cost: nd("500"), Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 1},
			{ID: "l2", CampaignID: "c2", Cost: nd("2000"), Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 1},
			{ID: "l3", CampaignID: "c3", Cost: nd("400"), Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 0},
		},
	}
	rows := buildReport(t, s, defaultOptions(), "profit-tiers")
	if len(rows) != 3 {
		t.Fatalf("expected campaigns without leads to drop out of the join, got %d rows", len(rows))
	}
	if findRow(rows, "campaign_id", "no-leads") != nil {
		t.Fatalf("expected no fabricated cost row for a campaign without leads")
	}
	c1 := findRow(rows, "campaign_id", "c1")
	wantDecimal(t, c1.value("profit"), "20000")
	if c1.value("tier") != "High" {
		t.Fatalf("expected High tier, got %v", c1.value("tier"))
	}
	if tier := findRow(rows, "campaign_id", "c2").value("tier"); tier != "Medium" {
		t.Fatalf("expected Medium tier, got %v", tier)
	}
	if tier := findRow(rows, "campaign_id", "c3").value("tier"); tier != "Low" {
		t.Fatalf("expected Low tier, got %v", tier)
	}
	if rows[0].value("campaign_id") != "c1" {
		t.Fatalf("expected the most profitable campaign first, got %v", rows[0].value("campaign_id"))
	}
}

func TestConversionOutliersReport(t *testing.T) {
	s := &Snapshot{Leads: []Lead{
		// c1 converts at 0.05: outlier low.
		{ID: "a1", CampaignID: "c1", Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 1},
	}}
	for i := 0; i < 19; i++ {
		s.Leads = append(s.Leads, Lead{
			ID: "a" + string(rune('b'+i)), CampaignID: "c1",
			Timestamp: ts("2025-03-01T10:00:00Z"), Converted: 0,
		})
	}
	// c2 converts at 0.5: outlier high. c3 at 0.25: inside the band.
	s.Leads = append(s.Leads,
		Lead{ID: "b1", CampaignID: "c2", Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 1},
		Lead{ID: "b2", CampaignID: "c2", Timestamp: ts("2025-03-01T09:30:00Z"), Converted: 0},
		Lead{ID: "c1l", CampaignID: "c3", Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 1},
		Lead{ID: "c2l", CampaignID: "c3", Timestamp: ts("2025-03-01T09:10:00Z"), Converted: 0},
		Lead{ID: "c3l", CampaignID: "c3", Timestamp: ts("2025-03-01T09:20:00Z"), Converted: 0},
		Lead{ID: "c4l", CampaignID: "c3", Timestamp: ts("2025-03-01T09:30:00Z"), Converted: 0},
	)
	rows := buildReport(t, s, defaultOptions(), "conversion-outliers")
	if len(rows) != 2 {
		t.Fatalf("expected exactly the two outlier campaigns, got %d rows", len(rows))
	}
	if rows[0].value("campaign_id") != "c1" || rows[1].value("campaign_id") != "c2" {
		t.Fatalf("expected ascending rate order c1 then c2, got %v then %v",
			rows[0].value("campaign_id"), rows[1].value("campaign_id"))
	}
}

func TestCompositeScoreReport(t *testing.T) {
	rows := buildReport(t, demoSnapshot(), defaultOptions(), "composite-score")
	if len(rows) != 2 {
		t.Fatalf("expected 2 scored campaigns, got %d", len(rows))
	}
	// c2: 0.7*1.0 + 0.3*0.0 = 0.7; c1: 0.7*0.5 + 0.3*2.0 = 0.95.
	first := rows[0]
	if first.value("campaign_id") != "c1" {
		t.Fatalf("expected c1 to lead, got %v", first.value("campaign_id"))
	}
	wantDecimal(t, first.value("composite_score"), "0.95")
	if rank := first.value("ranking").(int64); rank != 1 {
		t.Fatalf("expected rank 1, got %d", rank)
	}
	wantDecimal(t, rows[1].value("composite_score"), "0.7")
}

func TestCompositeScoreJoinScope(t *testing.T) {
	s := demoSnapshot()
	// A campaign without leads and a lead without a known campaign both
	// fall outside the inner join.
	s.Campaigns = append(s.Campaigns, Campaign{ID: "c9", Name: "Idle", Spend: dec("10"), Revenue: nd("10"), Source: "X"})
	s.Leads = append(s.Leads, Lead{ID: "l9", CampaignID: "ghost", Timestamp: ts("2025-03-05T09:00:00Z"), Converted: 1})
	rows := buildReport(t, s, defaultOptions(), "composite-score")
	if len(rows) != 2 {
		t.Fatalf("expected only the matched campaigns, got %d rows", len(rows))
	}
	if findRow(rows, "campaign_id", "c9") != nil {
		t.Fatalf("expected the lead-less campaign to drop out")
	}
	if findRow(rows, "campaign_id", "ghost") != nil {
		t.Fatalf("expected the unknown campaign id to drop out")
	}
}

func TestRevenueShareReport(t *testing.T) {
	s := &Snapshot{Campaigns: []Campaign{
		{ID: "c1", Name: "A", Spend: dec("10"), Revenue: nd("300"), Source: "X"},
		{ID: "c2", Name: "B", Spend: dec("10"), Revenue: nd("100"), Source: "Y"},
	}}
	rows := buildReport(t, s, defaultOptions(), "revenue-share")
	if len(rows) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(rows))
	}
	if rows[0].value("source") != "X" {
		t.Fatalf("expected the dominant source first, got %v", rows[0].value("source"))
	}
	wantDecimal(t, rows[0].value("revenue_share"), "0.75")
	wantDecimal(t, rows[1].value("revenue_share"), "0.25")
}

func TestRevenueShareArityErrorWithoutCampaigns(t *testing.T) {
	_, err := buildRevenueShare(&Snapshot{}, defaultOptions())
	if !errors.Is(err, errBroadcastArity) {
		t.Fatalf("expected a broadcast arity error on an empty aggregate, got %v", err)
	}
}

func TestConversionTimelineReport(t *testing.T) {
	s := &Snapshot{Leads: []Lead{
		{ID: "l3", CampaignID: "c1", Timestamp: ts("2025-03-03T09:00:00Z"), Converted: 1},
		{ID: "l1", CampaignID: "c1", Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 1},
		{ID: "l2", CampaignID: "c1", Timestamp: ts("2025-03-02T09:00:00Z"), Converted: 0},
		{ID: "m1", CampaignID: "c2", Timestamp: ts("2025-03-01T09:00:00Z"), Converted: 1},
	}}
	rows := buildReport(t, s, defaultOptions(), "conversion-timeline")
	if len(rows) != 4 {
		t.Fatalf("expected every lead in the timeline, got %d rows", len(rows))
	}
	// c1 sorts by timestamp: l1, l2, l3 with running totals 1, 1, 2.
	wantIDs := []string{"l1", "l2", "l3", "m1"}
	wantSeq := []int64{1, 2, 3, 1}
	wantRunning := []string{"1", "1", "2", "1"}
	for i, r := range rows {
		if r.value("lead_id") != wantIDs[i] {
			t.Fatalf("expected %s at position %d, got %v", wantIDs[i], i, r.value("lead_id"))
		}
		if seq := r.value("sequence").(int64); seq != wantSeq[i] {
			t.Fatalf("expected sequence %d at position %d, got %d", wantSeq[i], i, seq)
		}
		wantDecimal(t, r.value("running_conversions"), wantRunning[i])
	}
}

func TestComputeReportsIsolatesFailures(t *testing.T) {
	results, err := computeReports(&Snapshot{}, defaultOptions(), "all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(reportDefs()) {
		t.Fatalf("expected every report present, got %d", len(results))
	}
	shares := findReport(results, "revenue-share")
	if shares.Err == "" {
		t.Fatalf("expected the broadcast failure to surface on revenue-share")
	}
	ranking := findReport(results, "roi-ranking")
	if ranking.Err != "" {
		t.Fatalf("expected roi-ranking to survive, got error %s", ranking.Err)
	}
}

func TestComputeReportsSingleKey(t *testing.T) {
	results, err := computeReports(demoSnapshot(), defaultOptions(), "cpa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Key != "cpa" {
		t.Fatalf("expected only the cpa report, got %d results", len(results))
	}
}

func TestComputeReportsUnknownKey(t *testing.T) {
	_, err := computeReports(demoSnapshot(), defaultOptions(), "bogus")
	if err == nil {
		t.Fatalf("expected an error for an unknown report key")
	}
	if !strings.Contains(err.Error(), "roi-ranking") {
		t.Fatalf("expected the error to list valid keys, got %v", err)
	}
}

func TestBuildRunDocument(t *testing.T) {
	doc, err := buildRunDocument(demoSnapshot(), defaultOptions(), "all", "campaigns.csv", "leads.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.RunID == "" {
		t.Fatalf("expected a run id")
	}
	if doc.CampaignCount != 2 || doc.LeadCount != 3 {
		t.Fatalf("expected counts 2 and 3, got %d and %d", doc.CampaignCount, doc.LeadCount)
	}
	if len(doc.Reports) != len(reportDefs()) {
		t.Fatalf("expected all reports, got %d", len(doc.Reports))
	}
	if doc.WindowStart != "2025-03-01T09:00:00Z" || doc.WindowEnd != "2025-03-02T10:00:00Z" {
		t.Fatalf("expected the lead window on the document, got %s to %s", doc.WindowStart, doc.WindowEnd)
	}
	if len(doc.Insights) == 0 {
		t.Fatalf("expected insights on a healthy document")
	}
}
