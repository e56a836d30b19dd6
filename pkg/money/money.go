package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Scale is the number of fractional digits persisted for monetary columns.
const Scale = 2

// DefaultCommissionRate is the platform share withheld from vendor payouts.
var DefaultCommissionRate = decimal.RequireFromString("0.15")

// NPR is the settlement currency.
var NPR = currency.MustParseISO("NPR")

// ParseRate parses a commission fraction and rejects values outside [0, 1].
func ParseRate(value string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid commission rate %q: %w", value, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("commission rate %s out of range", rate)
	}
	return rate, nil
}

// Round rounds half away from zero to the persisted scale.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// LineAmount returns price × quantity.
func LineAmount(price decimal.Decimal, quantity int) decimal.Decimal {
	return Round(price.Mul(decimal.NewFromInt(int64(quantity))))
}

// Sum adds the amounts; an empty call returns zero.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	if len(amounts) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, amounts...)
}

// Commission returns total × rate.
func Commission(total, rate decimal.Decimal) decimal.Decimal {
	return Round(total.Mul(rate))
}

// Net returns total − commission, always derived from total and rate.
func Net(total, rate decimal.Decimal) decimal.Decimal {
	return Round(total).Sub(Commission(total, rate))
}

// Format renders an amount for notification context, e.g. "NPR 1,250.00".
func Format(amount decimal.Decimal) string {
	p := message.NewPrinter(language.English)
	f, _ := Round(amount).Float64()
	return p.Sprintf("%s %.2f", NPR.String(), f)
}
