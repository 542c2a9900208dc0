package filing

import "github.com/shopspring/decimal"

// Statutory GST rate slabs, in percent. Every inferred rate collapses to
// one of these; explicit rates from the platform are passed through as-is.
var RateBuckets = []int64{0, 5, 12, 18, 28}

// Slab thresholds are the historical midpoints between adjacent GST rates
// (2.5 between 0 and 5, 7.5 between 5 and 10-era slabs, and so on). They
// are not evenly spaced, so a raw rate is mapped by threshold lookup: the
// first threshold the rate does not exceed wins. Nearest-value rounding
// would misclassify boundary values and must not be used here.
var rateThresholds = []struct {
	upper  decimal.Decimal
	bucket decimal.Decimal
}{
	{decimal.NewFromFloat(2.5), decimal.NewFromInt(0)},
	{decimal.NewFromFloat(7.5), decimal.NewFromInt(5)},
	{decimal.NewFromInt(15), decimal.NewFromInt(12)},
	{decimal.NewFromInt(21), decimal.NewFromInt(18)},
}

var topBucket = decimal.NewFromInt(28)

// InferRate derives the tax rate in percent for one unit of work.
//
// An explicit non-zero rate from the platform wins and is returned
// unbucketed. Otherwise, when the tax amount is positive and the taxable
// base (gross minus tax) is positive, the raw rate tax/(gross-tax)*100 is
// mapped onto the statutory slabs via the closed thresholds above.
// Degenerate inputs (no tax, or a non-positive base) infer rate 0.
func InferRate(gross, tax, explicitPct decimal.Decimal) decimal.Decimal {
	if !explicitPct.IsZero() {
		return explicitPct
	}
	if tax.IsPositive() && gross.IsPositive() {
		base := gross.Sub(tax)
		if base.IsPositive() {
			raw := tax.Div(base).Mul(decimal.NewFromInt(100))
			for _, th := range rateThresholds {
				if raw.LessThanOrEqual(th.upper) {
					return th.bucket
				}
			}
			return topBucket
		}
	}
	return decimal.Zero
}

// RateKey rounds a rate to the nearest whole percent for use in grouping
// keys. Two orders with raw rates 17.6 and 18.4 share the key 18 and merge
// into one summary row, even though the row's display rate keeps whichever
// value was computed last.
func RateKey(rate decimal.Decimal) int64 {
	return rate.Round(0).IntPart()
}
