package main

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// formatValue renders a row value for CSV and terminal output. NULL renders
// as the empty string so exported files round-trip through the loader's
// empty-cell-is-NULL rule.
func formatValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case int64:
		return strconv.FormatInt(tv, 10)
	case decimal.Decimal:
		return tv.String()
	case time.Time:
		return tv.Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v)
}

func writeCSVReports(doc *RunDocument, output string) error {
	basePath, err := resolveCSVBase(output)
	if err != nil {
		return err
	}
	for _, report := range doc.Reports {
		if report.Err != "" {
			continue
		}
		if err := writeReportCSV(basePath+"-"+report.Key+".csv", report); err != nil {
			return err
		}
	}
	return nil
}

func resolveCSVBase(output string) (string, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return "", errors.New("csv output path is empty")
	}
	info, err := os.Stat(output)
	if err == nil && info.IsDir() {
		return filepath.Join(output, "campaign-reports"), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return strings.TrimSuffix(output, ".csv"), nil
}

func writeReportCSV(path string, report ReportResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(report.Columns); err != nil {
		return err
	}
	for _, row := range report.Rows {
		record := make([]string, len(report.Columns))
		for i, col := range report.Columns {
			record[i] = formatValue(row.value(col))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// exportSQLite writes the run into a SQLite artifact: a run_info header
// table plus one table per computed report. Existing report tables are
// replaced so re-exporting to the same file stays consistent.
func exportSQLite(doc *RunDocument, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS run_info (
		run_id TEXT PRIMARY KEY,
		generated_at TEXT,
		campaigns_path TEXT,
		leads_path TEXT,
		campaign_count INTEGER,
		lead_count INTEGER
	)`); err != nil {
		return err
	}
	if _, err := db.Exec(`INSERT INTO run_info (run_id, generated_at, campaigns_path, leads_path, campaign_count, lead_count) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.RunID, doc.GeneratedAt, doc.CampaignsPath, doc.LeadsPath, doc.CampaignCount, doc.LeadCount); err != nil {
		return err
	}

	for _, report := range doc.Reports {
		if report.Err != "" {
			continue
		}
		if err := exportReportTable(db, report); err != nil {
			return fmt.Errorf("report %s: %w", report.Key, err)
		}
	}
	return nil
}

func exportReportTable(db *sql.DB, report ReportResult) error {
	table := "report_" + strings.ReplaceAll(report.Key, "-", "_")
	if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
		return err
	}

	cols := make([]string, len(report.Columns))
	for i, col := range report.Columns {
		cols[i] = col + " TEXT"
	}
	if _, err := db.Exec("CREATE TABLE " + table + " (" + strings.Join(cols, ", ") + ")"); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(report.Columns)), ", ")
	insert := "INSERT INTO " + table + " (" + strings.Join(report.Columns, ", ") + ") VALUES (" + placeholders + ")"
	for _, row := range report.Rows {
		args := make([]any, len(report.Columns))
		for i, col := range report.Columns {
			v := row.value(col)
			if v == nil {
				args[i] = nil
				continue
			}
			args[i] = formatValue(v)
		}
		if _, err := db.Exec(insert, args...); err != nil {
			return err
		}
	}
	return nil
}
