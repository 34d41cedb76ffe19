package main

import "github.com/shopspring/decimal"

// asDecimal coerces a numeric row value to a decimal. NULLs and non-numeric
// values report false.
func asDecimal(v any) (decimal.Decimal, bool) {
	switch tv := v.(type) {
	case decimal.Decimal:
		return tv, true
	case int64:
		return decimal.NewFromInt(tv), true
	}
	return decimal.Decimal{}, false
}

// safeDiv divides two row values. The result is NULL when either operand is
// NULL or the denominator is zero; division never panics and never produces
// a float.
func safeDiv(num, den any) any {
	n, ok := asDecimal(num)
	if !ok {
		return nil
	}
	d, ok := asDecimal(den)
	if !ok || d.IsZero() {
		return nil
	}
	return n.Div(d)
}

// safeSub subtracts b from a, propagating NULL from either side.
func safeSub(a, b any) any {
	av, ok := asDecimal(a)
	if !ok {
		return nil
	}
	bv, ok := asDecimal(b)
	if !ok {
		return nil
	}
	return av.Sub(bv)
}

// safeAdd adds two row values, propagating NULL from either side.
func safeAdd(a, b any) any {
	av, ok := asDecimal(a)
	if !ok {
		return nil
	}
	bv, ok := asDecimal(b)
	if !ok {
		return nil
	}
	return av.Add(bv)
}

// safeMul multiplies two row values, propagating NULL from either side.
func safeMul(a, b any) any {
	av, ok := asDecimal(a)
	if !ok {
		return nil
	}
	bv, ok := asDecimal(b)
	if !ok {
		return nil
	}
	return av.Mul(bv)
}
