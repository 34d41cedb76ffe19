package main

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Window functions annotate rows without changing the row count. Results
// come back in input order with the computed field attached; callers sort
// afterwards if they want partition order. Within a partition, rows whose
// ordering value is NULL sort after all rows that have one, and ties keep
// input order.

func partitionIndices(rows []Row, partitionBy []string) [][]int {
	if len(partitionBy) == 0 {
		all := make([]int, len(rows))
		for i := range rows {
			all[i] = i
		}
		return [][]int{all}
	}
	byKey := make(map[string]int)
	var parts [][]int
	for i, r := range rows {
		k := groupKey(r, partitionBy)
		p, ok := byKey[k]
		if !ok {
			p = len(parts)
			byKey[k] = p
			parts = append(parts, nil)
		}
		parts[p] = append(parts[p], i)
	}
	return parts
}

func sortPartition(rows []Row, idx []int, orderField string, desc bool) []int {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.SliceStable(sorted, func(a, b int) bool {
		va := rows[sorted[a]].value(orderField)
		vb := rows[sorted[b]].value(orderField)
		if va == nil || vb == nil {
			if va == nil && vb == nil {
				return false
			}
			return vb == nil
		}
		c := compareValues(va, vb)
		if desc {
			return c > 0
		}
		return c < 0
	})
	return sorted
}

// rankRows computes competition ranking over orderField within each
// partition: tied rows share a rank and the next distinct value's rank is
// one plus the number of strictly better rows, so ties leave gaps.
func rankRows(rows []Row, partitionBy []string, orderField string, desc bool, out string) []Row {
	ranks := make([]int64, len(rows))
	for _, part := range partitionIndices(rows, partitionBy) {
		sorted := sortPartition(rows, part, orderField, desc)
		for pos, idx := range sorted {
			if pos > 0 && valuesEqual(rows[idx].value(orderField), rows[sorted[pos-1]].value(orderField)) {
				ranks[idx] = ranks[sorted[pos-1]]
				continue
			}
			ranks[idx] = int64(pos + 1)
		}
	}
	return attach(rows, out, func(i int) any { return ranks[i] })
}

// rowNumberRows numbers rows 1..k per partition in ascending orderField
// order. The input-order tie-break makes the numbering deterministic for
// any fixed input sequence.
func rowNumberRows(rows []Row, partitionBy []string, orderField, out string) []Row {
	nums := make([]int64, len(rows))
	for _, part := range partitionIndices(rows, partitionBy) {
		sorted := sortPartition(rows, part, orderField, false)
		for pos, idx := range sorted {
			nums[idx] = int64(pos + 1)
		}
	}
	return attach(rows, out, func(i int) any { return nums[i] })
}

// runningSumRows computes the cumulative sum of valueField in ascending
// orderField order within each partition, from the partition start through
// the current row. NULL values add nothing but still receive the total so
// far. Tied rows accumulate in input order, so each carries a distinct
// prefix total rather than a shared group total.
func runningSumRows(rows []Row, partitionBy []string, orderField, valueField, out string) []Row {
	totals := make([]decimal.Decimal, len(rows))
	for _, part := range partitionIndices(rows, partitionBy) {
		sorted := sortPartition(rows, part, orderField, false)
		total := decimal.Zero
		for _, idx := range sorted {
			if v, ok := asDecimal(rows[idx].value(valueField)); ok {
				total = total.Add(v)
			}
			totals[idx] = total
		}
	}
	return attach(rows, out, func(i int) any { return totals[i] })
}

func attach(rows []Row, field string, value func(int) any) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := r.clone()
		c[field] = value(i)
		out[i] = c
	}
	return out
}
