// Package money formats amounts for people; storage and JSON keep decimals.
package money

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const CurrencySymbol = "Rs"

var printer = message.NewPrinter(language.English)

// Format renders d with thousands grouping and two decimals, e.g. "Rs 1,750.00".
func Format(d decimal.Decimal) string {
	return CurrencySymbol + " " + Amount(d)
}

// Amount is Format without the currency symbol. The digits come from the
// decimal itself, so no amount passes through a float.
func Amount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if rest, ok := strings.CutPrefix(fixed, "-"); ok {
		sign, fixed = "-", rest
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = printer.Sprintf("%d", n)
	} else {
		whole = groupThousands(whole)
	}
	return sign + whole + "." + frac
}

// groupThousands handles integer parts too long for int64.
func groupThousands(digits string) string {
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
