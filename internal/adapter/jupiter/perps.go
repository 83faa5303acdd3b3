package jupiter

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"pricefeed/internal/fetch"
	"pricefeed/internal/shared"
)

// DefaultPerpsURL is the Jupiter perps API v1 endpoint.
const DefaultPerpsURL = "https://perps-api.jup.ag/v1"

// Side is the direction of a perp position.
type Side string

// Position sides.
const (
	Long  Side = "long"
	Short Side = "short"
)

// Position is one open perp position. Monetary fields arrive as decimal
// strings from the API.
type Position struct {
	PositionPubkey        string `json:"positionPubkey"`
	Side                  Side   `json:"side"`
	MarketMint            string `json:"marketMint"`
	CollateralMint        string `json:"collateralMint"`
	Collateral            string `json:"collateral"`
	Size                  string `json:"size"`
	Leverage              string `json:"leverage"`
	EntryPrice            string `json:"entryPrice"`
	LiquidationPrice      string `json:"liquidationPrice"`
	PnLAfterFeesUSD       string `json:"pnlAfterFeesUsd"`
	PnLChangePctAfterFees string `json:"pnlChangePctAfterFees"`
	TotalFeesUSD          string `json:"totalFeesUsd"`
	Value                 string `json:"value"`
	CreatedTime           int64  `json:"createdTime"`
	UpdatedTime           int64  `json:"updatedTime"`
}

// PositionsResponse is the perps positions listing.
type PositionsResponse struct {
	Count    int        `json:"count"`
	DataList []Position `json:"dataList"`
}

// PositionPnL is the extracted PnL of one position.
type PositionPnL struct {
	PositionPubkey string
	Side           Side
	USD            float64
	Percent        float64
}

// PnLSummary aggregates PnL over all open positions of a wallet.
type PnLSummary struct {
	TotalUSD     float64
	TotalPercent float64
	Positions    []PositionPnL
}

// PerpsClient fetches perp positions from the Jupiter perps API.
type PerpsClient struct {
	fetcher *fetch.Fetcher
	baseURL string
}

// NewPerpsClient creates a PerpsClient. An empty baseURL selects the public
// endpoint.
func NewPerpsClient(f *fetch.Fetcher, baseURL string) *PerpsClient {
	if baseURL == "" {
		baseURL = DefaultPerpsURL
	}
	return &PerpsClient{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

// Positions fetches the open positions of a wallet.
func (c *PerpsClient) Positions(ctx context.Context, walletAddress string) (PositionsResponse, error) {
	u := c.baseURL + "/positions?walletAddress=" + url.QueryEscape(walletAddress)
	return fetch.GetJSON[PositionsResponse](ctx, c.fetcher, u)
}

// PositionsPnL fetches the open positions of a wallet and aggregates their
// PnL after fees.
func (c *PerpsClient) PositionsPnL(ctx context.Context, walletAddress string) (PnLSummary, error) {
	resp, err := c.Positions(ctx, walletAddress)
	if err != nil {
		return PnLSummary{}, err
	}

	var summary PnLSummary
	for _, pos := range resp.DataList {
		usd, err := strconv.ParseFloat(pos.PnLAfterFeesUSD, 64)
		if err != nil {
			return PnLSummary{}, shared.Wrapf(err, "parse pnlAfterFeesUsd for %s", pos.PositionPubkey)
		}
		pct, err := strconv.ParseFloat(pos.PnLChangePctAfterFees, 64)
		if err != nil {
			return PnLSummary{}, shared.Wrapf(err, "parse pnlChangePctAfterFees for %s", pos.PositionPubkey)
		}
		summary.TotalUSD += usd
		summary.TotalPercent += pct
		summary.Positions = append(summary.Positions, PositionPnL{
			PositionPubkey: pos.PositionPubkey,
			Side:           pos.Side,
			USD:            usd,
			Percent:        pct,
		})
	}
	return summary, nil
}

// TotalPnLUSD returns the summed PnL after fees of a wallet's open
// positions.
func (c *PerpsClient) TotalPnLUSD(ctx context.Context, walletAddress string) (float64, error) {
	summary, err := c.PositionsPnL(ctx, walletAddress)
	if err != nil {
		return 0, err
	}
	return summary.TotalUSD, nil
}
