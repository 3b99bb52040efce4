package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	currencyPattern = regexp.MustCompile(`[A-Za-z]{3}|[^\d\s.,\-+()A-Za-z]`)
	itemCodePattern = regexp.MustCompile(`^([A-Z0-9]+(?:[-/][A-Z0-9]+)+|[A-Z]{2,}\d{2,})\s+`)
)

// dateLayouts lists the printed date formats recognised on documents.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2-Jan-2006",
}

// ParseAmount parses a printed amount such as "£1,234.56", "1.234,56 EUR"
// or "(12.00)". It never fails: unparseable input yields zero. The returned
// currency is the first 1-3 character code or symbol found, if any.
func ParseAmount(s string) (decimal.Decimal, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ""
	}

	currency := ""
	if m := currencyPattern.FindString(s); m != "" {
		currency = strings.ToUpper(m)
	}

	negative := strings.HasPrefix(s, "-") || (strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))

	var digits strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			digits.WriteRune(r)
		}
	}
	num := normalizeSeparators(digits.String())
	if num == "" {
		return decimal.Zero, currency
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, currency
	}
	if negative {
		d = d.Neg()
	}
	return d, currency
}

// normalizeSeparators rewrites a digit string with "." and "," into a plain
// decimal. With both separators present the right-most one is the decimal
// point. A lone comma is decimal only when followed by one or two digits; a
// lone dot is always decimal. Repeated separators are thousands groups.
func normalizeSeparators(s string) string {
	s = strings.Trim(s, ".,")
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	decimalSep := -1
	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimalSep = max(lastDot, lastComma)
	case lastComma >= 0:
		if tail := len(s) - lastComma - 1; tail <= 2 && strings.Count(s, ",") == 1 {
			decimalSep = lastComma
		}
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 {
			decimalSep = lastDot
		}
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case i == decimalSep:
			b.WriteByte('.')
		case r == '.' || r == ',':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseDate parses a printed date against the known layouts. It returns nil
// when nothing matches.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "."))
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ItemCodeFromDescription splits a leading item code such as "WID-001" or
// "AB1234" off a description. It returns an empty code when there is none.
func ItemCodeFromDescription(desc string) (code, rest string) {
	desc = strings.TrimSpace(desc)
	m := itemCodePattern.FindStringSubmatch(desc)
	if m == nil {
		return "", desc
	}
	return m[1], strings.TrimSpace(desc[len(m[0]):])
}
