package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pricefeed/internal/platform/timer"
	"pricefeed/internal/registry"
	"pricefeed/internal/shared"
)

// PriceSource fetches spot prices by mint address.
type PriceSource interface {
	Price(ctx context.Context, address string) (float64, error)
	PairPrice(ctx context.Context, base, vs string) (float64, error)
	ManyPrices(ctx context.Context, addresses []string) (map[string]float64, error)
}

// PerpSource fetches the aggregate perps PnL of a wallet.
type PerpSource interface {
	TotalPnLUSD(ctx context.Context, walletAddress string) (float64, error)
}

// History persists refreshed quotes.
type History interface {
	InsertQuotes(ctx context.Context, quotes []Quote) error
}

// Service refreshes prices from the upstream sources and keeps the latest
// quote per feed id in memory. It is safe for concurrent use.
type Service struct {
	registry    *registry.Registry
	prices      PriceSource
	perps       PerpSource
	history     History
	timer       timer.Timer
	log         *slog.Logger
	perpsWallet string

	mu     sync.RWMutex
	latest map[string]Quote
}

// Option configures a Service.
type Option func(*Service)

// WithPerps enables the perps PnL quote for the given wallet.
func WithPerps(src PerpSource, walletAddress string) Option {
	return func(s *Service) {
		s.perps = src
		s.perpsWallet = walletAddress
	}
}

// WithHistory persists every refresh into the given store.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithTimer overrides the clock used to stamp quotes.
func WithTimer(tm timer.Timer) Option {
	return func(s *Service) { s.timer = tm }
}

// WithLogger overrides the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a Service over the given registry and price source.
func NewService(reg *registry.Registry, prices PriceSource, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		prices:   prices,
		timer:    timer.Wall(),
		log:      slog.Default(),
		latest:   make(map[string]Quote),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshAll fetches fresh prices for every tracked token, pair and, when
// configured, the perps wallet. Failed entries keep a placeholder quote so
// the feed never loses ids; the collected fetch errors are returned after
// all entries were attempted.
func (s *Service) RefreshAll(ctx context.Context) error {
	now := s.timer.Now()
	var quotes []Quote
	var errs []error

	tokens := s.registry.Tokens()
	if len(tokens) > 0 {
		addresses := make([]string, len(tokens))
		for i, t := range tokens {
			addresses[i] = t.Address
		}
		prices, err := s.prices.ManyPrices(ctx, addresses)
		if err != nil {
			s.log.Warn("token batch fetch failed", "count", len(addresses), "error", err)
			errs = append(errs, shared.Wrap(err, "fetch token prices"))
		}
		for _, t := range tokens {
			price, ok := prices[t.Address]
			fetchErr := err
			if err == nil && !ok {
				fetchErr = fmt.Errorf("token %s not in batch response: %w", t.Address, shared.ErrNotFound)
				errs = append(errs, fetchErr)
			}
			quotes = append(quotes, Quote{
				ID:        t.Address,
				Kind:      KindToken,
				Tokens:    []registry.Token{t},
				PriceInfo: newPriceInfo(KindToken, price, fetchErr, now),
			})
		}
	}

	for _, pair := range s.registry.Pairs() {
		price, err := s.prices.PairPrice(ctx, pair[0].Address, pair[1].Address)
		if err != nil {
			s.log.Warn("pair fetch failed",
				"base", pair[0].Symbol, "vs", pair[1].Symbol, "error", err)
			errs = append(errs, shared.Wrapf(err, "fetch pair %s/%s", pair[0].Symbol, pair[1].Symbol))
		}
		id := pair[0].Address + "_" + pair[1].Address
		quotes = append(quotes, Quote{
			ID:        id,
			Kind:      KindPair,
			Tokens:    pair[:],
			PriceInfo: newPriceInfo(KindPair, price, err, now),
		})
	}

	if s.perps != nil {
		pnl, err := s.perps.TotalPnLUSD(ctx, s.perpsWallet)
		if err != nil {
			s.log.Warn("perps fetch failed", "error", err)
			errs = append(errs, shared.Wrap(err, "fetch perps pnl"))
		}
		perpTokens, perr := s.registry.TokensForID(string(registry.SOLPerps))
		if perr == nil {
			quotes = append(quotes, Quote{
				ID:        string(registry.SOLPerps),
				Kind:      KindPerp,
				Tokens:    perpTokens,
				PriceInfo: newPriceInfo(KindPerp, pnl, err, now),
			})
		}
	}

	s.mu.Lock()
	for _, q := range quotes {
		s.latest[q.ID] = q
	}
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.InsertQuotes(ctx, quotes); err != nil {
			s.log.Error("persist quotes failed", "count", len(quotes), "error", err)
			errs = append(errs, shared.Wrap(err, "persist quotes"))
		}
	}

	s.log.Info("feed refreshed", "quotes", len(quotes), "failures", len(errs))
	return errors.Join(errs...)
}

// Latest returns the current quotes sorted into a fresh slice.
func (s *Service) Latest() []Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Quote, 0, len(s.latest))
	for _, q := range s.latest {
		out = append(out, q)
	}
	return out
}

// Lookup returns the latest quote for a feed id, fetching it on demand when
// the id is known to the registry but not yet refreshed.
func (s *Service) Lookup(ctx context.Context, id string) (Quote, error) {
	s.mu.RLock()
	q, ok := s.latest[id]
	s.mu.RUnlock()
	if ok {
		return q, nil
	}

	tokens, err := s.registry.TokensForID(id)
	if err != nil {
		return Quote{}, err
	}
	now := s.timer.Now()

	var kind Kind
	var price float64
	switch {
	case len(tokens) == 2:
		kind = KindPair
		price, err = s.prices.PairPrice(ctx, tokens[0].Address, tokens[1].Address)
	case tokens[0].Symbol == registry.SOLPerps:
		kind = KindPerp
		if s.perps == nil {
			return Quote{}, fmt.Errorf("perps source not configured: %w", shared.ErrNotFound)
		}
		price, err = s.perps.TotalPnLUSD(ctx, s.perpsWallet)
	default:
		kind = KindToken
		price, err = s.prices.Price(ctx, tokens[0].Address)
	}
	if err != nil {
		if shared.IsNotFound(err) {
			return Quote{}, err
		}
		return Quote{}, shared.MarkKind(err, shared.KindDependencyFailure)
	}

	q = Quote{ID: id, Kind: kind, Tokens: tokens, PriceInfo: newPriceInfo(kind, price, nil, now)}
	s.mu.Lock()
	s.latest[id] = q
	s.mu.Unlock()
	return q, nil
}
