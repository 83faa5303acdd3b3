// Package format renders prices for the compact feed display.
package format

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is shown when a price is unavailable.
const Placeholder = "…"

// maxPriceWidth keeps token prices short enough for the ticker display.
const maxPriceWidth = 7

var printer = message.NewPrinter(language.English)

// Price renders v with six fractional digits and thousand separators,
// truncated to at most seven characters: 1.02345 → "1.02345",
// 151.02345 → "151.023".
func Price(v float64) string {
	s := printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(6),
		number.MaxFractionDigits(6),
	))
	if len(s) > maxPriceWidth {
		s = s[:maxPriceWidth]
	}
	return s
}

// PriceUSD renders the truncated price with a dollar sign and two
// fractional digits: 151.02345 → "$151.02".
func PriceUSD(v float64) string {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSuffix(Price(v), ","), ",", ""), 64)
	if err != nil {
		f = v
	}
	s := printer.Sprint(number.Decimal(math.Abs(f),
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
	if f < 0 {
		return "-$" + s
	}
	return "$" + s
}

// SignedUSD is PriceUSD with an explicit plus sign for positive values,
// used for PnL display.
func SignedUSD(v float64) string {
	s := PriceUSD(v)
	if v > 0 {
		return "+" + s
	}
	return s
}

// PriceOrPlaceholder renders a fetched price, falling back to the
// placeholder when the fetch failed.
func PriceOrPlaceholder(v float64, err error) string {
	if err != nil {
		return Placeholder
	}
	return Price(v)
}
