package core

import "github.com/shopspring/decimal"

// Percentage returns part as a percentage of whole, or 0 when whole is 0.
// The value is not rounded: comparisons must run on full precision.
func Percentage(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part * 100 / whole
}

// FormatPercent renders p with exactly 2 decimal places, eg. "66.67".
func FormatPercent(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(2)
}

func SumDecimals(ds ...decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range ds {
		sum = sum.Add(d)
	}
	return sum
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Apportion splits total across weights pro-rata, rounding each share to places.
// The last share absorbs the rounding remainder so that the shares always sum to total.
// When all weights are zero, total is split evenly.
func Apportion(total decimal.Decimal, weights []decimal.Decimal, places int32) []decimal.Decimal {
	n := len(weights)
	if n == 0 {
		return nil
	}

	shares := make([]decimal.Decimal, n)
	sumWeights := SumDecimals(weights...)
	remaining := total
	for i := 0; i < n-1; i++ {
		var share decimal.Decimal
		if sumWeights.IsZero() {
			share = total.Div(decimal.NewFromInt(int64(n)))
		} else {
			share = total.Mul(weights[i]).Div(sumWeights)
		}
		share = share.Round(places)
		// never hand out more than what is left
		if (total.IsPositive() && share.GreaterThan(remaining)) || (total.IsNegative() && share.LessThan(remaining)) {
			share = remaining
		}
		shares[i] = share
		remaining = remaining.Sub(share)
	}
	shares[n-1] = remaining
	return shares
}
