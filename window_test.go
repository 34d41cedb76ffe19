package main

import (
	"testing"

	"github.com/shopspring/decimal"
)

func rankOf(t *testing.T, rows []Row, field string, key any, rankField string) int64 {
	t.Helper()
	r := findRow(rows, field, key)
	if r == nil {
		t.Fatalf("row %v not found", key)
	}
	n, ok := r.value(rankField).(int64)
	if !ok {
		t.Fatalf("row %v has no %s", key, rankField)
	}
	return n
}

func TestRankCompetitionTiesLeaveGaps(t *testing.T) {
	rows := []Row{
		{"id": "A", "score": dec("10")},
		{"id": "B", "score": dec("10")},
		{"id": "C", "score": dec("5")},
	}
	ranked := rankRows(rows, nil, "score", true, "rank")
	if got := rankOf(t, ranked, "id", "A", "rank"); got != 1 {
		t.Fatalf("expected A at rank 1, got %d", got)
	}
	if got := rankOf(t, ranked, "id", "B", "rank"); got != 1 {
		t.Fatalf("expected B at rank 1, got %d", got)
	}
	if got := rankOf(t, ranked, "id", "C", "rank"); got != 3 {
		t.Fatalf("expected C at rank 3 after a tie at 1, got %d", got)
	}
}

func TestRankNullOrderValuesRankLast(t *testing.T) {
	rows := []Row{
		{"id": "A", "score": dec("5")},
		{"id": "B", "score": nil},
		{"id": "C", "score": dec("7")},
	}
	ranked := rankRows(rows, nil, "score", true, "rank")
	if got := rankOf(t, ranked, "id", "C", "rank"); got != 1 {
		t.Fatalf("expected C first, got %d", got)
	}
	if got := rankOf(t, ranked, "id", "B", "rank"); got != 3 {
		t.Fatalf("expected NULL score ranked last, got %d", got)
	}
}

func TestRankResetsPerPartition(t *testing.T) {
	rows := []Row{
		{"p": "x", "id": "A", "score": dec("1")},
		{"p": "y", "id": "B", "score": dec("9")},
		{"p": "x", "id": "C", "score": dec("2")},
	}
	ranked := rankRows(rows, []string{"p"}, "score", true, "rank")
	if got := rankOf(t, ranked, "id", "C", "rank"); got != 1 {
		t.Fatalf("expected C to lead partition x, got %d", got)
	}
	if got := rankOf(t, ranked, "id", "B", "rank"); got != 1 {
		t.Fatalf("expected B to lead partition y, got %d", got)
	}
}

func TestRankPreservesRowCountAndInputOrder(t *testing.T) {
	rows := []Row{
		{"id": "A", "score": dec("1")},
		{"id": "B", "score": dec("2")},
	}
	ranked := rankRows(rows, nil, "score", false, "rank")
	if len(ranked) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(ranked))
	}
	if ranked[0].value("id") != "A" || ranked[1].value("id") != "B" {
		t.Fatalf("expected input order preserved")
	}
}

func TestRowNumberOrdersAscending(t *testing.T) {
	rows := []Row{
		{"camp": "1", "id": "late", "t": int64(2)},
		{"camp": "1", "id": "early", "t": int64(1)},
	}
	numbered := rowNumberRows(rows, []string{"camp"}, "t", "n")
	if got := rankOf(t, numbered, "id", "early", "n"); got != 1 {
		t.Fatalf("expected the smallest t to get row number 1, got %d", got)
	}
	if got := rankOf(t, numbered, "id", "late", "n"); got != 2 {
		t.Fatalf("expected the larger t to get row number 2, got %d", got)
	}
}

func TestRowNumberBreaksTiesByInputOrder(t *testing.T) {
	rows := []Row{
		{"camp": "1", "id": "first-in", "t": int64(1)},
		{"camp": "1", "id": "second-in", "t": int64(1)},
	}
	numbered := rowNumberRows(rows, []string{"camp"}, "t", "n")
	if got := rankOf(t, numbered, "id", "first-in", "n"); got != 1 {
		t.Fatalf("expected input order to decide ties, got %d", got)
	}
	if got := rankOf(t, numbered, "id", "second-in", "n"); got != 2 {
		t.Fatalf("expected the later input row to follow, got %d", got)
	}
}

func TestRunningSumOverOrderedFrame(t *testing.T) {
	rows := []Row{
		{"camp": "1", "t": int64(1), "converted": int64(1)},
		{"camp": "1", "t": int64(2), "converted": int64(0)},
		{"camp": "1", "t": int64(3), "converted": int64(1)},
	}
	summed := runningSumRows(rows, []string{"camp"}, "t", "converted", "running")
	want := []string{"1", "1", "2"}
	for i, r := range summed {
		total := r.value("running").(decimal.Decimal)
		if !total.Equal(dec(want[i])) {
			t.Fatalf("expected running totals [1 1 2], got %s at position %d", total, i)
		}
	}
}

func TestRunningSumResetsPerPartition(t *testing.T) {
	rows := []Row{
		{"camp": "1", "t": int64(1), "converted": int64(1)},
		{"camp": "2", "t": int64(1), "converted": int64(1)},
	}
	summed := runningSumRows(rows, []string{"camp"}, "t", "converted", "running")
	for i, r := range summed {
		total := r.value("running").(decimal.Decimal)
		if !total.Equal(dec("1")) {
			t.Fatalf("expected each partition to restart at 1, got %s at position %d", total, i)
		}
	}
}

// Tied order values may accumulate in either relative order; only the
// total after the tie group is fixed.
func TestRunningSumTieGroupTotal(t *testing.T) {
	rows := []Row{
		{"camp": "1", "t": int64(1), "converted": int64(1)},
		{"camp": "1", "t": int64(1), "converted": int64(1)},
		{"camp": "1", "t": int64(2), "converted": int64(0)},
	}
	summed := runningSumRows(rows, []string{"camp"}, "t", "converted", "running")
	last := summed[2].value("running").(decimal.Decimal)
	if !last.Equal(dec("2")) {
		t.Fatalf("expected the post-tie total to be 2, got %s", last)
	}
}

func TestRunningSumNullValuesAddNothing(t *testing.T) {
	rows := []Row{
		{"camp": "1", "t": int64(1), "v": dec("2")},
		{"camp": "1", "t": int64(2), "v": nil},
		{"camp": "1", "t": int64(3), "v": dec("3")},
	}
	summed := runningSumRows(rows, []string{"camp"}, "t", "v", "running")
	middle := summed[1].value("running").(decimal.Decimal)
	if !middle.Equal(dec("2")) {
		t.Fatalf("expected NULL to carry the prior total, got %s", middle)
	}
	last := summed[2].value("running").(decimal.Decimal)
	if !last.Equal(dec("5")) {
		t.Fatalf("expected 5 after the NULL row, got %s", last)
	}
}
