// Money parsing and formatting.
//
// Amounts are decimal.Decimal values with two fractional digits. Statement
// files and form inputs use both the Brazilian (1.234,56) and the plain
// (1234.56) notation, so parsing accepts either.

package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a signed decimal string to an amount rounded half
// away from zero to cents.
//
// The rightmost of '.' or ',' is taken as the decimal separator when both
// appear; the other one is treated as a thousands separator. A lone ',' is
// always decimal. Several '.' without any ',' are thousands separators.
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34
//	ParseAmount("-12,34")    -> -12.34
//	ParseAmount("1.234,56")  -> 1234.56
//	ParseAmount("1,234.56")  -> 1234.56
//	ParseAmount("R$ 10,005") -> 10.01
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, invalid("amount", "is empty")
	}

	sign := ""
	if s[0] == '-' || s[0] == '+' {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}

	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, invalid("amount", "%q has more than one decimal separator", s)
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	if strings.Count(s, ".") > 1 || s == "" || s == "." {
		return decimal.Zero, invalid("amount", "%q is not a number", s)
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, invalid("amount", "%q is not a number", s)
		}
	}

	d, err := decimal.NewFromString(sign + s)
	if err != nil {
		return decimal.Zero, invalid("amount", "%q is not a number", s)
	}
	return d.Round(2), nil
}

// FormatBRL renders d as Brazilian currency, e.g. R$ -1.234,56.
func FormatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		out = "R$ -" + out[3:]
	}
	return out
}
