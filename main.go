package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	campaignsPath := flag.String("campaigns", "data/campaigns.csv", "Path to campaigns CSV")
	leadsPath := flag.String("leads", "data/leads.csv", "Path to leads CSV")
	reportKey := flag.String("report", "all", "Report to compute (all, or a single report key)")
	topN := flag.Int("top", 3, "Rank cutoff for ranked reports (0 keeps every row)")
	highProfit := flag.Float64("high-profit", 10000, "Profit above this value is tier High")
	mediumProfit := flag.Float64("medium-profit", 5000, "Profit from this value up to the high threshold is tier Medium")
	outlierLow := flag.Float64("outlier-low", 0.10, "Conversion rates strictly below this are outliers")
	outlierHigh := flag.Float64("outlier-high", 0.40, "Conversion rates strictly above this are outliers")
	jsonOutput := flag.Bool("json", false, "Emit JSON output")
	csvOut := flag.String("csv-out", "", "Write report CSVs using this path prefix or directory")
	sqliteOut := flag.String("sqlite-out", "", "Write reports into this SQLite file")
	storeRun := flag.Bool("store", false, "Persist the run to Postgres")
	dbURL := flag.String("db-url", "", "Postgres DSN (falls back to CAMPAIGN_REPORT_ENGINE_DB_URL, CAMPAIGN_REPORTS_DB_URL, DATABASE_URL)")
	dbSchema := flag.String("db-schema", "", "Postgres schema (default campaign_report_engine)")
	runs := flag.Int("runs", 0, "List this many recent stored runs after the report")
	flag.Parse()

	godotenv.Load()

	opts := Options{
		TopN: *topN,
		Thresholds: Thresholds{
			HighProfit:   decimal.NewFromFloat(*highProfit),
			MediumProfit: decimal.NewFromFloat(*mediumProfit),
			OutlierLow:   decimal.NewFromFloat(*outlierLow),
			OutlierHigh:  decimal.NewFromFloat(*outlierHigh),
		},
	}
	if opts.Thresholds.MediumProfit.GreaterThan(opts.Thresholds.HighProfit) {
		fmt.Fprintf(os.Stderr, "medium-profit must not exceed high-profit\n")
		os.Exit(1)
	}
	if opts.Thresholds.OutlierLow.GreaterThan(opts.Thresholds.OutlierHigh) {
		fmt.Fprintf(os.Stderr, "outlier-low must not exceed outlier-high\n")
		os.Exit(1)
	}

	snapshot, err := loadSnapshot(*campaignsPath, *leadsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load input: %v\n", err)
		os.Exit(1)
	}

	doc, err := buildRunDocument(snapshot, opts, *reportKey, *campaignsPath, *leadsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build reports: %v\n", err)
		os.Exit(1)
	}

	if strings.TrimSpace(*csvOut) != "" {
		if err := writeCSVReports(doc, *csvOut); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write csv output: %v\n", err)
			os.Exit(1)
		}
	}
	if strings.TrimSpace(*sqliteOut) != "" {
		if err := exportSQLite(doc, *sqliteOut); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write sqlite output: %v\n", err)
			os.Exit(1)
		}
	}

	if *jsonOutput {
		payload, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode json: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
	} else {
		printRun(doc)
	}

	runLimit := resolveRunLimit(*runs)
	if *storeRun || runLimit > 0 {
		summaries, err := storeAndListRuns(doc, opts, *dbURL, *dbSchema, *storeRun, runLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "database: %v\n", err)
			os.Exit(1)
		}
		if !*jsonOutput && len(summaries) > 0 {
			printRunSummaries(summaries)
		}
	}
}

// storeAndListRuns opens one database connection for both the insert and
// the recent-runs listing. A limit of zero skips the listing.
func storeAndListRuns(doc *RunDocument, opts Options, dsnFlag, schemaFlag string, store bool, limit int) ([]RunSummary, error) {
	cfg, err := resolveDBConfig(dsnFlag, schemaFlag)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := ensureStore(ctx, db, cfg.Schema); err != nil {
		return nil, err
	}

	if store {
		reportJSON, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		var insightsJSON []byte
		if len(doc.Insights) > 0 {
			insightsJSON, err = json.Marshal(doc.Insights)
			if err != nil {
				return nil, err
			}
		}
		generatedAt, err := time.Parse(time.RFC3339, doc.GeneratedAt)
		if err != nil {
			generatedAt = time.Now().UTC()
		}
		run := RunInsert{
			RunID:         doc.RunID,
			GeneratedAt:   generatedAt,
			CampaignsPath: doc.CampaignsPath,
			LeadsPath:     doc.LeadsPath,
			TopN:          opts.TopN,
			CampaignCount: doc.CampaignCount,
			LeadCount:     doc.LeadCount,
			ReportJSON:    reportJSON,
			InsightsJSON:  insightsJSON,
		}
		if err := insertRun(ctx, db, cfg.Schema, run); err != nil {
			return nil, err
		}
	}

	if limit <= 0 {
		return nil, nil
	}
	return listRuns(ctx, db, cfg.Schema, limit)
}

// displayValue is formatValue with an explicit marker for NULL so terminal
// columns stay readable.
func displayValue(v any) string {
	if v == nil {
		return "-"
	}
	return formatValue(v)
}

func printRun(doc *RunDocument) {
	fmt.Printf("Campaign Report Engine\n")
	fmt.Printf("Run: %s\n", doc.RunID)
	fmt.Printf("Generated: %s\n", doc.GeneratedAt)
	fmt.Printf("Campaigns: %d | Leads: %d\n", doc.CampaignCount, doc.LeadCount)
	if doc.WindowStart != "" {
		fmt.Printf("Lead window: %s to %s\n", doc.WindowStart, doc.WindowEnd)
	}

	for _, report := range doc.Reports {
		fmt.Println()
		fmt.Printf("%s [%s]\n", report.Title, report.Key)
		if report.Err != "" {
			fmt.Printf("  error: %s\n", report.Err)
			continue
		}
		if len(report.Rows) == 0 {
			fmt.Println("  (no rows)")
			continue
		}
		for _, row := range report.Rows {
			parts := make([]string, len(report.Columns))
			for i, col := range report.Columns {
				parts[i] = col + ": " + displayValue(row.value(col))
			}
			fmt.Printf("- %s\n", strings.Join(parts, " | "))
		}
	}

	if len(doc.Insights) > 0 {
		fmt.Println()
		fmt.Println("Insights")
		for _, insight := range doc.Insights {
			fmt.Printf("- [%s] %s: %s\n", insight.Severity, insight.Area, insight.Message)
		}
	}
}

func printRunSummaries(summaries []RunSummary) {
	fmt.Println()
	fmt.Println("Recent Runs")
	for _, summary := range summaries {
		line := fmt.Sprintf("- #%d %s | created %s | campaigns %d | leads %d",
			summary.ID, summary.RunID, summary.CreatedAt.Format(time.RFC3339), summary.CampaignCount, summary.LeadCount)
		if summary.ReportCount.Valid {
			line += fmt.Sprintf(" | reports %d", summary.ReportCount.Int64)
		}
		if summary.InsightCount.Valid {
			line += fmt.Sprintf(" | insights %d", summary.InsightCount.Int64)
		}
		if summary.TopSeverity.Valid {
			line += " | top severity " + summary.TopSeverity.String
		}
		fmt.Println(line)
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nCampaign CSV columns required: campaign_id, campaign_name, spend_usd, revenue_usd, source\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Lead CSV columns required: lead_id, campaign_id, state, lead_cost, timestamp, converted\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Date formats accepted: RFC3339, YYYY-MM-DD, YYYY-MM-DD HH:MM:SS\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Reports: %s\n", strings.Join(reportKeys(), ", "))
	}
}
