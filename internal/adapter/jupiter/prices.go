// Package jupiter contains clients for the Jupiter price and perps APIs.
// All requests go through the fetch layer, so retries, timeouts and error
// classification are uniform.
package jupiter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"pricefeed/internal/fetch"
	"pricefeed/internal/shared"
)

// DefaultPriceURL is the Jupiter price API v2 endpoint.
const DefaultPriceURL = "https://api.jup.ag/price/v2"

type tokenData struct {
	Price string `json:"price"`
	Type  string `json:"type"`
}

type priceResponse struct {
	Data      map[string]tokenData `json:"data"`
	TimeTaken float64              `json:"timeTaken"`
}

// PriceClient fetches spot prices from the Jupiter price API.
type PriceClient struct {
	fetcher *fetch.Fetcher
	baseURL string
}

// NewPriceClient creates a PriceClient. An empty baseURL selects the public
// endpoint.
func NewPriceClient(f *fetch.Fetcher, baseURL string) *PriceClient {
	if baseURL == "" {
		baseURL = DefaultPriceURL
	}
	return &PriceClient{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

// Price fetches the price of a single token by mint address.
func (c *PriceClient) Price(ctx context.Context, address string) (float64, error) {
	prices, err := c.prices(ctx, c.baseURL+"?ids="+url.QueryEscape(address))
	if err != nil {
		return 0, err
	}
	p, ok := prices[address]
	if !ok {
		return 0, fmt.Errorf("token %s not in price response: %w", address, shared.ErrNotFound)
	}
	return p, nil
}

// PairPrice fetches the price of base denominated in vs.
func (c *PriceClient) PairPrice(ctx context.Context, base, vs string) (float64, error) {
	u := c.baseURL + "?ids=" + url.QueryEscape(base) + "&vsToken=" + url.QueryEscape(vs)
	prices, err := c.prices(ctx, u)
	if err != nil {
		return 0, err
	}
	p, ok := prices[base]
	if !ok {
		return 0, fmt.Errorf("base token %s not in price response: %w", base, shared.ErrNotFound)
	}
	return p, nil
}

// ManyPrices fetches prices for multiple token addresses in one request.
func (c *PriceClient) ManyPrices(ctx context.Context, addresses []string) (map[string]float64, error) {
	u := c.baseURL + "?ids=" + url.QueryEscape(strings.Join(addresses, ","))
	return c.prices(ctx, u)
}

func (c *PriceClient) prices(ctx context.Context, u string) (map[string]float64, error) {
	resp, err := fetch.GetJSON[priceResponse](ctx, c.fetcher, u)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(resp.Data))
	for address, data := range resp.Data {
		p, err := strconv.ParseFloat(data.Price, 64)
		if err != nil {
			return nil, shared.Wrapf(err, "parse price for %s", address)
		}
		out[address] = p
	}
	return out, nil
}
