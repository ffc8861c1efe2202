package invoice

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.Japanese)

// FormatYen renders an amount with thousands separators and a yen sign,
// showing exactly places fraction digits. The digits come from the decimal
// itself, so amounts beyond float64 precision render exactly.
func FormatYen(amount decimal.Decimal, places int32) string {
	if places < 0 {
		places = 0
	}
	fixed := amount.StringFixed(places)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	if frac != "" {
		frac = "." + frac
	}
	return sign + "¥" + groupThousands(intPart) + frac
}

// groupThousands formats the integer digits with the printer's separators
// when they fit an int64 and falls back to plain three-digit grouping.
func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return printer.Sprint(number.Decimal(n))
	}
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
