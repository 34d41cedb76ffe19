package main

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// errSchema marks structurally malformed input: a field the caller groups or
// loads by is absent from every record. Callers test with errors.Is.
var errSchema = errors.New("malformed input schema")

type reducerKind int

const (
	reduceCount reducerKind = iota
	reduceCountField
	reduceSum
	reduceMin
	reduceMax
	reduceMean
	reduceFirstBy
)

// reducer describes one output column of an aggregation. Field is the input
// column being reduced (unused for reduceCount); OrderBy applies only to
// reduceFirstBy and names the column whose minimum picks the winning row.
type reducer struct {
	Out     string
	Kind    reducerKind
	Field   string
	OrderBy string
}

func count(out string) reducer { return reducer{Out: out, Kind: reduceCount} }

func countField(out, field string) reducer {
	return reducer{Out: out, Kind: reduceCountField, Field: field}
}

func sum(out, field string) reducer { return reducer{Out: out, Kind: reduceSum, Field: field} }

func minOf(out, field string) reducer { return reducer{Out: out, Kind: reduceMin, Field: field} }

func maxOf(out, field string) reducer { return reducer{Out: out, Kind: reduceMax, Field: field} }

func mean(out, field string) reducer { return reducer{Out: out, Kind: reduceMean, Field: field} }

func firstBy(out, field, orderBy string) reducer {
	return reducer{Out: out, Kind: reduceFirstBy, Field: field, OrderBy: orderBy}
}

type group struct {
	key     Row
	indices []int
}

// aggregate groups rows by the groupBy fields and reduces each group to one
// output row carrying the group key plus one column per reducer. Groups keep
// first-seen input order. NULL group keys form a group of their own rather
// than being dropped. Empty input yields empty output; grouping by a field
// that no input row carries at all is a schema error.
func aggregate(rows []Row, groupBy []string, reducers []reducer) ([]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	for _, f := range groupBy {
		present := false
		for _, r := range rows {
			if _, ok := r[f]; ok {
				present = true
				break
			}
		}
		if !present {
			return nil, fmt.Errorf("aggregate: group field %q missing from every row: %w", f, errSchema)
		}
	}

	groups := make(map[string]*group)
	var order []string
	for i, r := range rows {
		k := groupKey(r, groupBy)
		g, ok := groups[k]
		if !ok {
			key := make(Row, len(groupBy))
			for _, f := range groupBy {
				key[f] = r.value(f)
			}
			g = &group{key: key}
			groups[k] = g
			order = append(order, k)
		}
		g.indices = append(g.indices, i)
	}

	out := make([]Row, 0, len(order))
	for _, k := range order {
		g := groups[k]
		res := g.key.clone()
		for _, red := range reducers {
			res[red.Out] = reduce(rows, g.indices, red)
		}
		out = append(out, res)
	}
	return out, nil
}

func reduce(rows []Row, indices []int, red reducer) any {
	switch red.Kind {
	case reduceCount:
		return int64(len(indices))
	case reduceCountField:
		var n int64
		for _, i := range indices {
			if rows[i].value(red.Field) != nil {
				n++
			}
		}
		return n
	case reduceSum:
		total := decimal.Zero
		seen := false
		for _, i := range indices {
			if v, ok := asDecimal(rows[i].value(red.Field)); ok {
				total = total.Add(v)
				seen = true
			}
		}
		if !seen {
			return nil
		}
		return total
	case reduceMin, reduceMax:
		var best any
		for _, i := range indices {
			v := rows[i].value(red.Field)
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := compareValues(v, best)
			if (red.Kind == reduceMin && c < 0) || (red.Kind == reduceMax && c > 0) {
				best = v
			}
		}
		return best
	case reduceMean:
		total := decimal.Zero
		var n int64
		for _, i := range indices {
			if v, ok := asDecimal(rows[i].value(red.Field)); ok {
				total = total.Add(v)
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return total.Div(decimal.NewFromInt(n))
	case reduceFirstBy:
		bestIdx := -1
		var bestOrd any
		for _, i := range indices {
			ord := rows[i].value(red.OrderBy)
			if bestIdx == -1 {
				bestIdx, bestOrd = i, ord
				continue
			}
			// NULL order values lose to any present value; among equal
			// order values the earlier input row wins.
			if ord == nil {
				continue
			}
			if bestOrd == nil || compareValues(ord, bestOrd) < 0 {
				bestIdx, bestOrd = i, ord
			}
		}
		if bestIdx == -1 {
			return nil
		}
		return rows[bestIdx].value(red.Field)
	}
	return nil
}
