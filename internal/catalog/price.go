package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// symbolAfter holds the languages that write the currency symbol after the
// amount, separated by a no-break space ("25,00 €"). x/text carries no
// currency patterns, so the placement is decided here.
var symbolAfter = map[string]bool{
	"cs": true, "da": true, "de": true, "es": true, "fi": true, "fr": true,
	"hu": true, "it": true, "nb": true, "pl": true, "ru": true, "sk": true,
	"sv": true, "uk": true,
}

// PlaceholderImage is used for products the upstream returned without images.
const PlaceholderImage = "https://images.unsplash.com/photo-1612036782180-6f0b6cd846fe?w=570&q=80"

// FormatPrice renders amount/divisor (upstream minor units) as a display
// string in the given ISO currency for locale, e.g. 2500/100 USD in en-US is
// "$25.00". A non-positive divisor is treated as 1 and an unknown currency
// code as USD.
func FormatPrice(amount, divisor int64, code string, locale language.Tag) string {
	if divisor <= 0 {
		divisor = 1
	}
	v := decimal.NewFromInt(amount).Div(decimal.NewFromInt(divisor))
	return FormatAmount(v, code, locale)
}

// FormatAmount renders v in the given ISO currency for locale, rounded to the
// currency's standard number of decimals. The sign leads ("-$5.00",
// "-5,00 €").
func FormatAmount(v decimal.Decimal, code string, locale language.Tag) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.USD
	}
	scale, _ := currency.Standard.Rounding(unit)
	v = v.Round(int32(scale))
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	f, _ := v.Abs().Float64()

	p := message.NewPrinter(locale)
	sym := strings.TrimSpace(p.Sprint(currency.Symbol(unit)))
	num := p.Sprint(number.Decimal(f, number.Scale(scale)))
	if base, _ := locale.Base(); symbolAfter[base.String()] {
		return sign + num + "\u00a0" + sym
	}
	return sign + sym + num
}

// ParseAmount parses a decimal string such as Printful's "24.99". It returns
// false for empty or malformed input.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
