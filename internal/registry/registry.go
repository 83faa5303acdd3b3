// Package registry holds the static token and pair lookup table. The table
// is compiled into the binary and loaded once at startup into an immutable
// Registry value that is passed to whoever needs it; there is no package
// level mutable state.
package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"pricefeed/internal/shared"
)

//go:embed tokens/default.json tokens/stable.json tokens/pairs.json
var tokensFS embed.FS

// Symbol is a token ticker symbol.
type Symbol string

// Known symbols.
const (
	SOL      Symbol = "SOL"
	JLP      Symbol = "JLP"
	JUP      Symbol = "JUP"
	USDC     Symbol = "USDC"
	JupSOL   Symbol = "JUPSOL"
	SOLPerps Symbol = "SOL_PERPS"
)

// perpsSuffix marks synthetic perp feed ids like "SOL_PERPS".
const perpsSuffix = "_PERPS"

// Token describes one tracked token.
type Token struct {
	Address  string `json:"address"`
	Symbol   Symbol `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// Registry is the immutable lookup table over tracked tokens, stable tokens
// and pairs. Construct it with Load; the zero value is empty but usable.
type Registry struct {
	tokens  []Token
	stables []Token
	pairs   [][2]Token
}

// Load parses the embedded token files and resolves pair addresses against
// the token list. It fails if a pair references an unknown token.
func Load() (*Registry, error) {
	tokens, err := loadTokens("tokens/default.json")
	if err != nil {
		return nil, err
	}
	stables, err := loadTokens("tokens/stable.json")
	if err != nil {
		return nil, err
	}

	raw, err := tokensFS.ReadFile("tokens/pairs.json")
	if err != nil {
		return nil, shared.Wrap(err, "read pairs.json")
	}
	var pairAddresses [][2]string
	if err := json.Unmarshal(raw, &pairAddresses); err != nil {
		return nil, shared.Wrap(err, "parse pairs.json")
	}

	r := &Registry{tokens: tokens, stables: stables}
	for _, pair := range pairAddresses {
		a, ok := r.ByAddress(pair[0])
		if !ok {
			return nil, fmt.Errorf("pair references unknown token %s: %w", pair[0], shared.ErrNotFound)
		}
		b, ok := r.ByAddress(pair[1])
		if !ok {
			return nil, fmt.Errorf("pair references unknown token %s: %w", pair[1], shared.ErrNotFound)
		}
		r.pairs = append(r.pairs, [2]Token{a, b})
	}
	return r, nil
}

func loadTokens(name string) ([]Token, error) {
	raw, err := tokensFS.ReadFile(name)
	if err != nil {
		return nil, shared.Wrapf(err, "read %s", name)
	}
	var tokens []Token
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, shared.Wrapf(err, "parse %s", name)
	}
	return tokens, nil
}

// Tokens returns a copy of the tracked token list.
func (r *Registry) Tokens() []Token {
	return append([]Token(nil), r.tokens...)
}

// Stables returns a copy of the stable token list.
func (r *Registry) Stables() []Token {
	return append([]Token(nil), r.stables...)
}

// Pairs returns a copy of the tracked pair list.
func (r *Registry) Pairs() [][2]Token {
	return append([][2]Token(nil), r.pairs...)
}

// ByAddress finds a token by mint address among tracked and stable tokens.
func (r *Registry) ByAddress(address string) (Token, bool) {
	for _, t := range r.tokens {
		if t.Address == address {
			return t, true
		}
	}
	for _, t := range r.stables {
		if t.Address == address {
			return t, true
		}
	}
	return Token{}, false
}

// BySymbol finds a token by symbol among tracked and stable tokens.
func (r *Registry) BySymbol(symbol Symbol) (Token, bool) {
	for _, t := range r.tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	for _, t := range r.stables {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Token{}, false
}

// ByPairAddress resolves a feed id of the form "addrA_addrB" into its two
// tokens.
func (r *Registry) ByPairAddress(id string) ([2]Token, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 2 {
		return [2]Token{}, fmt.Errorf("%q is not a pair id: %w", id, shared.ErrValidation)
	}
	a, ok := r.ByAddress(parts[0])
	if !ok {
		return [2]Token{}, fmt.Errorf("pair token %s: %w", parts[0], shared.ErrNotFound)
	}
	b, ok := r.ByAddress(parts[1])
	if !ok {
		return [2]Token{}, fmt.Errorf("pair token %s: %w", parts[1], shared.ErrNotFound)
	}
	return [2]Token{a, b}, nil
}

// TokensForID resolves a feed id — a single address, a pair id, or the
// synthetic perps id — into the tokens behind it.
func (r *Registry) TokensForID(id string) ([]Token, error) {
	switch {
	case strings.HasPrefix(id, string(SOLPerps)):
		return []Token{{
			Address:  "So11111111111111111111111111111111111111112" + perpsSuffix,
			Symbol:   SOLPerps,
			Name:     id,
			Decimals: 9,
		}}, nil
	case strings.Contains(id, "_"):
		pair, err := r.ByPairAddress(id)
		if err != nil {
			return nil, err
		}
		return pair[:], nil
	default:
		t, ok := r.ByAddress(id)
		if !ok {
			return nil, fmt.Errorf("token %s: %w", id, shared.ErrNotFound)
		}
		return []Token{t}, nil
	}
}

// FeedID builds the feed id for one token or a pair: the single address, or
// "addrA_addrB".
func FeedID(tokens []Token) (string, error) {
	switch len(tokens) {
	case 1:
		return tokens[0].Address, nil
	case 2:
		return tokens[0].Address + "_" + tokens[1].Address, nil
	default:
		return "", fmt.Errorf("feed id needs one or two tokens, got %d: %w", len(tokens), shared.ErrValidation)
	}
}
