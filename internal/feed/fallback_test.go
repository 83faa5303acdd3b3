package feed_test

import (
	"context"
	"errors"
	"testing"

	"pricefeed/internal/feed"

	"github.com/stretchr/testify/require"
)

func TestPairFallback_PrimaryWins(t *testing.T) {
	primary := &fakePrices{pairPrices: map[string]float64{"a_b": 33.107}}
	fb := feed.NewPairFallback(primary, quiet())
	fb.RegisterPool("a", "b", func(ctx context.Context) (float64, error) {
		t.Fatal("pool must not be called when primary succeeds")
		return 0, nil
	})

	p, err := fb.PairPrice(context.Background(), "a", "b")
	require.NoError(t, err)
	require.InDelta(t, 33.107, p, 1e-9)
}

func TestPairFallback_PoolOnPrimaryFailure(t *testing.T) {
	primary := &fakePrices{err: errors.New("primary down")}
	fb := feed.NewPairFallback(primary, quiet())
	fb.RegisterPool("a", "b", func(ctx context.Context) (float64, error) {
		return 33.2, nil
	})

	p, err := fb.PairPrice(context.Background(), "a", "b")
	require.NoError(t, err)
	require.InDelta(t, 33.2, p, 1e-9)
}

func TestPairFallback_NoPoolKeepsPrimaryError(t *testing.T) {
	primaryErr := errors.New("primary down")
	fb := feed.NewPairFallback(&fakePrices{err: primaryErr}, quiet())

	_, err := fb.PairPrice(context.Background(), "a", "b")
	require.ErrorIs(t, err, primaryErr)
}
