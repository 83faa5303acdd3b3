// Package raydium contains a client for the Raydium v3 pools API. It serves
// as an alternative on-chain price source for pairs that trade in Raydium
// liquidity pools.
package raydium

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"pricefeed/internal/fetch"
	"pricefeed/internal/shared"
)

// DefaultBaseURL is the public Raydium v3 API endpoint.
const DefaultBaseURL = "https://api-v3.raydium.io"

// PoolID identifies a Raydium liquidity pool by its on-chain address.
type PoolID string

// Known pools.
const (
	PoolSOLJLP PoolID = "3d8ksMPuLpaQAUbuRr74tmovmyFFXgAsC3iE5NhsgvnH"
)

// Mint describes one side of a pool.
type Mint struct {
	ChainID  int    `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

// Pool is the subset of the v3 pool info we consume.
type Pool struct {
	Type        string  `json:"type"`
	ProgramID   string  `json:"programId"`
	ID          string  `json:"id"`
	MintA       Mint    `json:"mintA"`
	MintB       Mint    `json:"mintB"`
	Price       float64 `json:"price"`
	MintAmountA float64 `json:"mintAmountA"`
	MintAmountB float64 `json:"mintAmountB"`
	FeeRate     float64 `json:"feeRate"`
	TVL         float64 `json:"tvl"`
	BurnPercent float64 `json:"burnPercent"`
}

type poolInfoResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    []Pool `json:"data"`
}

// Client fetches pool info from the Raydium v3 API.
type Client struct {
	fetcher *fetch.Fetcher
	baseURL string
}

// NewClient creates a Client. An empty baseURL selects the public endpoint.
func NewClient(f *fetch.Fetcher, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

// PoolByID fetches info for a single pool.
func (c *Client) PoolByID(ctx context.Context, id PoolID) (Pool, error) {
	u := c.baseURL + "/pools/info/ids?ids=" + url.QueryEscape(string(id))
	resp, err := fetch.GetJSON[poolInfoResponse](ctx, c.fetcher, u)
	if err != nil {
		return Pool{}, err
	}
	if len(resp.Data) == 0 {
		return Pool{}, fmt.Errorf("pool %s not in response: %w", id, shared.ErrNotFound)
	}
	return resp.Data[0], nil
}

// PoolPrice fetches a pool and returns its current price, quoted as mintA
// denominated in mintB.
func (c *Client) PoolPrice(ctx context.Context, id PoolID) (float64, error) {
	pool, err := c.PoolByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return pool.Price, nil
}

// LogoURL returns the Raydium-hosted icon for a mint address.
func LogoURL(mintAddress string) string {
	return "https://img.raydium.io/icon/" + mintAddress + ".png"
}
