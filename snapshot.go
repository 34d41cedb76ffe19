package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// Campaign is one row of the campaigns CSV. Revenue is NULL for campaigns
// that have not been attributed yet.
type Campaign struct {
	ID      string
	Name    string
	Spend   decimal.Decimal
	Revenue decimal.NullDecimal
	Source  string
}

// Lead is one row of the leads CSV. ID and CampaignID may be empty, which
// the pipelines treat as NULL; Cost is NULL when acquisition cost is
// unknown. Converted is 0 or 1.
type Lead struct {
	ID         string
	CampaignID string
	State      string
	Cost       decimal.NullDecimal
	Timestamp  time.Time
	Converted  int64
}

// Snapshot is the immutable working set every report is computed from.
// Pipelines read it through campaignRows and leadRows and never write back,
// so one snapshot can serve any number of report runs.
type Snapshot struct {
	Campaigns []Campaign
	Leads     []Lead
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}

func campaignRows(s *Snapshot) []Row {
	rows := make([]Row, len(s.Campaigns))
	for i, c := range s.Campaigns {
		rows[i] = Row{
			"campaign_id":   nullableString(c.ID),
			"campaign_name": nullableString(c.Name),
			"spend_usd":     c.Spend,
			"revenue_usd":   nullableDecimal(c.Revenue),
			"source":        nullableString(c.Source),
		}
	}
	return rows
}

func leadRows(s *Snapshot) []Row {
	rows := make([]Row, len(s.Leads))
	for i, l := range s.Leads {
		rows[i] = Row{
			"lead_id":     nullableString(l.ID),
			"campaign_id": nullableString(l.CampaignID),
			"state":       nullableString(l.State),
			"lead_cost":   nullableDecimal(l.Cost),
			"timestamp":   l.Timestamp,
			"converted":   l.Converted,
		}
	}
	return rows
}
