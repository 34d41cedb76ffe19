package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func loadSnapshot(campaignsPath, leadsPath string) (*Snapshot, error) {
	campaigns, err := loadCampaigns(campaignsPath)
	if err != nil {
		return nil, fmt.Errorf("campaigns: %w", err)
	}
	leads, err := loadLeads(leadsPath)
	if err != nil {
		return nil, fmt.Errorf("leads: %w", err)
	}
	return &Snapshot{Campaigns: campaigns, Leads: leads}, nil
}

func loadCampaigns(path string) ([]Campaign, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("CSV must include header and at least one row")
	}

	header := normalizeHeader(records[0])
	idx := map[string]int{}
	for i, name := range header {
		idx[name] = i
	}

	required := []string{"campaign_id", "campaign_name", "spend_usd", "revenue_usd", "source"}
	for _, key := range required {
		if _, ok := idx[key]; !ok {
			return nil, fmt.Errorf("missing required column %q: %w", key, errSchema)
		}
	}

	seen := map[string]bool{}
	var campaigns []Campaign
	for rowIndex, row := range records[1:] {
		if len(row) == 0 {
			continue
		}
		campaign, err := parseCampaignRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowIndex+2, err)
		}
		if seen[campaign.ID] {
			return nil, fmt.Errorf("row %d: duplicate campaign_id %q", rowIndex+2, campaign.ID)
		}
		seen[campaign.ID] = true
		campaigns = append(campaigns, campaign)
	}
	return campaigns, nil
}

func loadLeads(path string) ([]Lead, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("leads CSV must include header and at least one row")
	}

	header := normalizeHeader(records[0])
	idx := map[string]int{}
	for i, name := range header {
		idx[name] = i
	}

	required := []string{"lead_id", "campaign_id", "state", "lead_cost", "timestamp", "converted"}
	for _, key := range required {
		if _, ok := idx[key]; !ok {
			return nil, fmt.Errorf("missing required column %q: %w", key, errSchema)
		}
	}

	var leads []Lead
	for rowIndex, row := range records[1:] {
		if len(row) == 0 {
			continue
		}
		lead, err := parseLeadRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowIndex+2, err)
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, name := range header {
		out[i] = strings.ToLower(strings.TrimSpace(name))
	}
	return out
}

func parseCampaignRow(row []string, idx map[string]int) (Campaign, error) {
	get := func(key string) string {
		pos := idx[key]
		if pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}

	id := get("campaign_id")
	if id == "" {
		return Campaign{}, errors.New("campaign_id is required")
	}
	spendRaw := get("spend_usd")
	if spendRaw == "" {
		return Campaign{}, errors.New("spend_usd is required")
	}
	spend, err := decimal.NewFromString(spendRaw)
	if err != nil {
		return Campaign{}, fmt.Errorf("invalid spend_usd: %w", err)
	}
	if spend.IsNegative() {
		return Campaign{}, fmt.Errorf("spend_usd must be non-negative, got %s", spend)
	}
	revenue, err := parseNullDecimal(get("revenue_usd"))
	if err != nil {
		return Campaign{}, fmt.Errorf("invalid revenue_usd: %w", err)
	}

	return Campaign{
		ID:      id,
		Name:    get("campaign_name"),
		Spend:   spend,
		Revenue: revenue,
		Source:  get("source"),
	}, nil
}

func parseLeadRow(row []string, idx map[string]int) (Lead, error) {
	get := func(key string) string {
		pos := idx[key]
		if pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}

	timestamp, err := parseDate(get("timestamp"))
	if err != nil {
		return Lead{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	cost, err := parseNullDecimal(get("lead_cost"))
	if err != nil {
		return Lead{}, fmt.Errorf("invalid lead_cost: %w", err)
	}
	converted, err := parseConverted(get("converted"))
	if err != nil {
		return Lead{}, err
	}

	return Lead{
		ID:         get("lead_id"),
		CampaignID: get("campaign_id"),
		State:      get("state"),
		Cost:       cost,
		Timestamp:  timestamp,
		Converted:  converted,
	}, nil
}

// parseNullDecimal treats an empty cell as NULL rather than zero.
func parseNullDecimal(value string) (decimal.NullDecimal, error) {
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func parseConverted(value string) (int64, error) {
	switch value {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, fmt.Errorf("converted must be 0 or 1, got %q", value)
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}

	layouts := []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported format: %s", value)
}
