// Package feed holds the price feed domain: quote types and the service
// that refreshes them from upstream sources and serves the latest values.
package feed

import (
	"time"

	"pricefeed/internal/format"
	"pricefeed/internal/registry"
)

// Kind tells what a quote is quoting.
type Kind string

// Quote kinds.
const (
	KindToken Kind = "token"
	KindPair  Kind = "pair"
	KindPerp  Kind = "perp"
)

// PriceInfo is one observed price. Price is nil when the last refresh
// failed; UIPrice then holds the placeholder.
type PriceInfo struct {
	Price     *float64
	UIPrice   string
	UpdatedAt time.Time
}

// Quote is a priced feed entry: a single token, a token pair, or the
// aggregate PnL of the perps wallet.
type Quote struct {
	ID     string
	Kind   Kind
	Tokens []registry.Token
	PriceInfo
}

// Label is the human-readable name of the quote: "SOL", "SOL/JLP" or
// "SOL🄿" for perps.
func (q Quote) Label() string {
	switch q.Kind {
	case KindPair:
		if len(q.Tokens) == 2 {
			return string(q.Tokens[0].Symbol) + "/" + string(q.Tokens[1].Symbol)
		}
	case KindPerp:
		if len(q.Tokens) == 1 {
			return string(q.Tokens[0].Symbol) + "\U0001F13F"
		}
	default:
		if len(q.Tokens) == 1 {
			return string(q.Tokens[0].Symbol)
		}
	}
	return q.ID
}

// uiPrice renders a price for the quote's kind: pairs show the raw ratio,
// tokens a dollar amount, perps a signed dollar amount.
func uiPrice(kind Kind, price float64) string {
	switch kind {
	case KindPair:
		return format.Price(price)
	case KindPerp:
		return format.SignedUSD(price)
	default:
		return format.PriceUSD(price)
	}
}

func newPriceInfo(kind Kind, price float64, err error, at time.Time) PriceInfo {
	if err != nil {
		return PriceInfo{UIPrice: format.Placeholder, UpdatedAt: at}
	}
	p := price
	return PriceInfo{Price: &p, UIPrice: uiPrice(kind, price), UpdatedAt: at}
}
