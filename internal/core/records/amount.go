package records

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"voucher-service/internal/domain"
)

type amountState int

const (
	amountAbsent amountState = iota
	amountZero
	amountInvalid
	amountValid
)

var currencyReplacer = strings.NewReplacer(
	"NT$", "", "NTD", "", "TWD", "", "$", "", "元", "",
	",", "", " ", "", "\u00a0", "",
)

// maxAmount is the largest amount an int64 holds.
var maxAmount = decimal.NewFromInt(math.MaxInt64)

// parseAmount coerces a raw amount cell to whole currency units, truncating
// any fractional part. Negative, non-numeric and out-of-range values are
// invalid.
func parseAmount(v domain.CellValue, present bool) (int64, amountState) {
	if !present {
		return 0, amountAbsent
	}
	switch v.Kind {
	case domain.CellNumber:
		// float64(MaxInt64) rounds up to 2^63, itself out of range
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) || v.Number < 0 || v.Number >= math.MaxInt64 {
			return 0, amountInvalid
		}
		return classify(int64(math.Trunc(v.Number)))
	case domain.CellText:
		s := currencyReplacer.Replace(norm.NFKC.String(strings.TrimSpace(v.Text)))
		if s == "" || s == "-" || s == "—" {
			return 0, amountAbsent
		}
		d, err := decimal.NewFromString(s)
		if err != nil || d.IsNegative() {
			return 0, amountInvalid
		}
		d = d.Truncate(0)
		if d.GreaterThan(maxAmount) {
			return 0, amountInvalid
		}
		return classify(d.IntPart())
	}
	return 0, amountInvalid
}

func classify(n int64) (int64, amountState) {
	if n == 0 {
		return 0, amountZero
	}
	return n, amountValid
}
