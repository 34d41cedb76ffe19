package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type DBConfig struct {
	DSN    string
	Schema string
}

type RunInsert struct {
	RunID         string
	GeneratedAt   time.Time
	CampaignsPath string
	LeadsPath     string
	TopN          int
	CampaignCount int
	LeadCount     int
	ReportJSON    []byte
	InsightsJSON  []byte
}

type RunSummary struct {
	ID            int64
	RunID         string
	CreatedAt     time.Time
	GeneratedAt   time.Time
	CampaignCount int
	LeadCount     int
	ReportCount   sql.NullInt64
	InsightCount  sql.NullInt64
	TopSeverity   sql.NullString
}

const defaultSchema = "campaign_report_engine"

// dsnEnvVars is the fallback order when -db-url is not given.
var dsnEnvVars = []string{
	"CAMPAIGN_REPORT_ENGINE_DB_URL",
	"CAMPAIGN_REPORTS_DB_URL",
	"DATABASE_URL",
}

func resolveDBConfig(dsnFlag string, schema string) (DBConfig, error) {
	candidates := []string{dsnFlag}
	for _, name := range dsnEnvVars {
		candidates = append(candidates, os.Getenv(name))
	}
	for _, candidate := range candidates {
		if dsn := strings.TrimSpace(candidate); dsn != "" {
			if strings.TrimSpace(schema) == "" {
				schema = defaultSchema
			}
			return DBConfig{DSN: dsn, Schema: schema}, nil
		}
	}
	return DBConfig{}, errors.New("database DSN missing: set -db-url, " + strings.Join(dsnEnvVars, ", "))
}

// openDB connects and verifies the connection with a short ping so a bad DSN
// fails before any report output is held up on it.
func openDB(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ensureStore bootstraps the schema and the report_runs table. Both
// statements are idempotent.
func ensureStore(ctx context.Context, db *sql.DB, schema string) error {
	if schema == "" {
		schema = defaultSchema
	}
	quoted := pqQuoteIdentifier(schema)
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoted); err != nil {
		return err
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.report_runs (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	generated_at TIMESTAMPTZ NOT NULL,
	campaigns_path TEXT,
	leads_path TEXT,
	top_n INT NOT NULL,
	campaign_count INT NOT NULL,
	lead_count INT NOT NULL,
	report JSONB NOT NULL,
	insights JSONB
);
CREATE INDEX IF NOT EXISTS report_runs_created_at_idx ON %s.report_runs (created_at DESC);
`, quoted, quoted)
	_, err := db.ExecContext(ctx, query)
	return err
}

func insertRun(ctx context.Context, db *sql.DB, schema string, run RunInsert) error {
	query := fmt.Sprintf(`
INSERT INTO %s.report_runs (run_id, generated_at, campaigns_path, leads_path, top_n, campaign_count, lead_count, report, insights)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, pqQuoteIdentifier(schema))
	_, err := db.ExecContext(ctx, query, run.RunID, run.GeneratedAt, run.CampaignsPath, run.LeadsPath, run.TopN, run.CampaignCount, run.LeadCount, run.ReportJSON, nullableJSON(run.InsightsJSON))
	return err
}

func listRuns(ctx context.Context, db *sql.DB, schema string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`
SELECT id, run_id, created_at, generated_at, campaign_count, lead_count,
	jsonb_array_length(report->'reports') AS report_count,
	CASE WHEN insights IS NULL THEN NULL ELSE jsonb_array_length(insights) END AS insight_count,
	insights->0->>'severity' AS top_severity
FROM %s.report_runs
ORDER BY created_at DESC
LIMIT $1
`, pqQuoteIdentifier(schema))

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var summary RunSummary
		if err := rows.Scan(&summary.ID, &summary.RunID, &summary.CreatedAt, &summary.GeneratedAt, &summary.CampaignCount, &summary.LeadCount, &summary.ReportCount, &summary.InsightCount, &summary.TopSeverity); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func nullableJSON(payload []byte) any {
	if len(payload) == 0 {
		return nil
	}
	return payload
}

func pqQuoteIdentifier(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// resolveRunLimit lets the environment supply a default listing depth when
// the flag is left unset.
func resolveRunLimit(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return parseLimit(os.Getenv("CAMPAIGN_REPORT_ENGINE_RUN_LIMIT"))
}

func parseLimit(input string) int {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0
	}
	value, err := strconv.Atoi(input)
	if err != nil {
		return 0
	}
	return value
}
