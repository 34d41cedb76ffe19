package main

import (
	"errors"
	"fmt"
)

// errBroadcastArity marks a cross join whose broadcast side did not hold
// exactly one row. Callers test with errors.Is.
var errBroadcastArity = errors.New("broadcast side must hold exactly one row")

// innerJoin hash-joins left against right on equal key values. Unlike
// grouping, a NULL key never matches anything, including another NULL.
// Output keeps left order, and each left row repeats once per matching
// right row in right order. Shared field names take the right side's value.
func innerJoin(left, right []Row, leftKey, rightKey string) []Row {
	index := make(map[string][]Row)
	for _, r := range right {
		v := r.value(rightKey)
		if v == nil {
			continue
		}
		k := canonicalKeyPart(v)
		index[k] = append(index[k], r)
	}
	var out []Row
	for _, l := range left {
		v := l.value(leftKey)
		if v == nil {
			continue
		}
		for _, r := range index[canonicalKeyPart(v)] {
			out = append(out, mergeRows(l, r))
		}
	}
	return out
}

// crossJoin merges the fields of a single broadcast row into every left
// row. An empty or multi-row broadcast side is an error, never a silent pick.
func crossJoin(left, broadcast []Row) ([]Row, error) {
	if len(broadcast) != 1 {
		return nil, fmt.Errorf("cross join: got %d broadcast rows: %w", len(broadcast), errBroadcastArity)
	}
	out := make([]Row, len(left))
	for i, l := range left {
		out[i] = mergeRows(l, broadcast[0])
	}
	return out, nil
}
