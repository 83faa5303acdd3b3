package feed

import (
	"context"
	"log/slog"
)

// PoolPriceFunc fetches a pair price from an on-chain liquidity pool.
type PoolPriceFunc func(ctx context.Context) (float64, error)

// PairFallback is a PriceSource that answers pair requests from the primary
// source first and falls back to a registered liquidity pool when the
// primary fails. Single-token and batch requests pass through unchanged.
type PairFallback struct {
	PriceSource
	pools map[string]PoolPriceFunc
	log   *slog.Logger
}

// NewPairFallback wraps the primary source.
func NewPairFallback(primary PriceSource, log *slog.Logger) *PairFallback {
	if log == nil {
		log = slog.Default()
	}
	return &PairFallback{PriceSource: primary, pools: make(map[string]PoolPriceFunc), log: log}
}

// RegisterPool adds a pool fallback for the pair base/vs. Not safe to call
// after the feed started refreshing.
func (f *PairFallback) RegisterPool(base, vs string, fn PoolPriceFunc) {
	f.pools[base+"_"+vs] = fn
}

// PairPrice asks the primary source, then the registered pool.
func (f *PairFallback) PairPrice(ctx context.Context, base, vs string) (float64, error) {
	price, err := f.PriceSource.PairPrice(ctx, base, vs)
	if err == nil {
		return price, nil
	}
	pool, ok := f.pools[base+"_"+vs]
	if !ok {
		return 0, err
	}
	f.log.Warn("primary pair source failed, trying pool", "base", base, "vs", vs, "error", err)
	return pool(ctx)
}
