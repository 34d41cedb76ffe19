package main

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is a single record flowing through the report pipelines. Values are
// one of: nil (NULL), string, int64, decimal.Decimal or time.Time. A missing
// key reads the same as a nil value.
type Row map[string]any

func (r Row) value(field string) any {
	v, ok := r[field]
	if !ok {
		return nil
	}
	return v
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func mergeRows(base, extra Row) Row {
	out := base.clone()
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// compareValues orders two non-nil values of the same kind. Integers and
// decimals compare numerically against each other; everything else compares
// within its own type only.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0
		}
		return strings.Compare(av, bv)
	case int64:
		switch bv := b.(type) {
		case int64:
			if av < bv {
				return -1
			}
			if av > bv {
				return 1
			}
			return 0
		case decimal.Decimal:
			return decimal.NewFromInt(av).Cmp(bv)
		}
		return 0
	case decimal.Decimal:
		switch bv := b.(type) {
		case decimal.Decimal:
			return av.Cmp(bv)
		case int64:
			return av.Cmp(decimal.NewFromInt(bv))
		}
		return 0
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0
		}
		if av.Before(bv) {
			return -1
		}
		if av.After(bv) {
			return 1
		}
		return 0
	}
	return 0
}

// valuesEqual is the grouping and join-probe notion of equality: two NULLs
// are equal here, so NULL-keyed rows collapse into one group.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return compareValues(a, b) == 0
}

// canonicalKeyPart renders a value so that equal values always produce the
// same key string. Decimals are trimmed of trailing fraction zeros so that
// 1.50 and 1.5 land in the same group.
func canonicalKeyPart(v any) string {
	switch tv := v.(type) {
	case nil:
		return "\x00"
	case string:
		return "s\x01" + tv
	case int64:
		return "n\x01" + decimal.NewFromInt(tv).String()
	case decimal.Decimal:
		s := tv.String()
		if strings.Contains(s, ".") {
			s = strings.TrimRight(s, "0")
			s = strings.TrimRight(s, ".")
		}
		return "n\x01" + s
	case time.Time:
		return "t\x01" + tv.UTC().Format(time.RFC3339Nano)
	}
	return "\x00"
}

func groupKey(r Row, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = canonicalKeyPart(r.value(f))
	}
	return strings.Join(parts, "\x1f")
}

type sortKey struct {
	Field string
	Desc  bool
}

// sortRows sorts in place, stably, by the given keys. NULL values sort after
// every present value on each key regardless of direction, so descending
// rankings never promote rows that have no value.
func sortRows(rows []Row, keys ...sortKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a := rows[i].value(k.Field)
			b := rows[j].value(k.Field)
			if a == nil || b == nil {
				if a == nil && b == nil {
					continue
				}
				return b == nil
			}
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// deriveRows returns a copy of rows with one computed field added to each.
func deriveRows(rows []Row, field string, fn func(Row) any) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := r.clone()
		c[field] = fn(r)
		out[i] = c
	}
	return out
}

func filterRows(rows []Row, keep func(Row) bool) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// limitByRank keeps rows whose rank field is within top. Ties at the cutoff
// all survive, so the result can hold more than top rows.
func limitByRank(rows []Row, rankField string, top int) []Row {
	if top <= 0 {
		return rows
	}
	return filterRows(rows, func(r Row) bool {
		n, ok := r.value(rankField).(int64)
		return ok && n <= int64(top)
	})
}
