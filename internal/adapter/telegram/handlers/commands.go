// Package handlers implements the bot commands over the price feed.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"pricefeed/internal/feed"
	"pricefeed/internal/registry"
	"pricefeed/internal/shared"
)

// Feed is the part of the feed service the bot consumes.
type Feed interface {
	Latest() []feed.Quote
	Lookup(ctx context.Context, id string) (feed.Quote, error)
}

// Handlers routes bot commands to the feed.
type Handlers struct {
	feed     Feed
	registry *registry.Registry
	log      *slog.Logger
}

// New creates command handlers over the feed service.
func New(f Feed, reg *registry.Registry, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{feed: f, registry: reg, log: log}
}

// Handle routes an update to its command handler.
func (h *Handlers) Handle(ctx context.Context, b *bot.Bot, upd *models.Update) {
	msg := upd.Message
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	parts := strings.SplitN(msg.Text, " ", 2)
	cmd := strings.TrimPrefix(parts[0], "/")
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "start":
		h.start(ctx, b, msg)
	case "prices":
		h.prices(ctx, b, msg)
	case "price":
		h.price(ctx, b, msg, arg)
	case "pnl":
		h.pnl(ctx, b, msg)
	}
}

func (h *Handlers) start(ctx context.Context, b *bot.Bot, msg *models.Message) {
	h.reply(ctx, b, msg,
		"price feed bot\n"+
			"/prices - all tracked prices\n"+
			"/price <SYMBOL> - one token, e.g. /price SOL or /price SOL/JLP\n"+
			"/pnl - perps PnL")
}

func (h *Handlers) prices(ctx context.Context, b *bot.Bot, msg *models.Message) {
	quotes := h.feed.Latest()
	if len(quotes) == 0 {
		h.reply(ctx, b, msg, "no prices yet, try again in a minute")
		return
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Label() < quotes[j].Label() })

	var sb strings.Builder
	for _, q := range quotes {
		fmt.Fprintf(&sb, "%s: %s\n", q.Label(), q.UIPrice)
	}
	h.reply(ctx, b, msg, sb.String())
}

func (h *Handlers) price(ctx context.Context, b *bot.Bot, msg *models.Message, arg string) {
	if arg == "" {
		h.reply(ctx, b, msg, "usage: /price <SYMBOL>, e.g. /price SOL or /price SOL/JLP")
		return
	}
	id, err := h.resolveID(arg)
	if err != nil {
		h.reply(ctx, b, msg, fmt.Sprintf("unknown symbol %q", arg))
		return
	}
	q, err := h.feed.Lookup(ctx, id)
	if err != nil {
		h.log.Warn("price lookup failed", "arg", arg, "error", err)
		h.reply(ctx, b, msg, "price is unavailable right now")
		return
	}
	h.reply(ctx, b, msg, fmt.Sprintf("%s: %s", q.Label(), q.UIPrice))
}

func (h *Handlers) pnl(ctx context.Context, b *bot.Bot, msg *models.Message) {
	q, err := h.feed.Lookup(ctx, string(registry.SOLPerps))
	if err != nil {
		h.log.Warn("pnl lookup failed", "error", err)
		h.reply(ctx, b, msg, "perps PnL is unavailable right now")
		return
	}
	h.reply(ctx, b, msg, fmt.Sprintf("%s: %s", q.Label(), q.UIPrice))
}

// resolveID turns a user-facing symbol ("SOL", "SOL/JLP") into a feed id.
func (h *Handlers) resolveID(arg string) (string, error) {
	arg = strings.ToUpper(arg)
	if arg == string(registry.SOLPerps) {
		return arg, nil
	}
	if base, vs, ok := strings.Cut(arg, "/"); ok {
		a, found := h.registry.BySymbol(registry.Symbol(base))
		if !found {
			return "", fmt.Errorf("symbol %s: %w", base, shared.ErrNotFound)
		}
		b, found := h.registry.BySymbol(registry.Symbol(vs))
		if !found {
			return "", fmt.Errorf("symbol %s: %w", vs, shared.ErrNotFound)
		}
		return registry.FeedID([]registry.Token{a, b})
	}
	t, found := h.registry.BySymbol(registry.Symbol(arg))
	if !found {
		return "", fmt.Errorf("symbol %s: %w", arg, shared.ErrNotFound)
	}
	return t.Address, nil
}

func (h *Handlers) reply(ctx context.Context, b *bot.Bot, msg *models.Message, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: msg.Chat.ID, Text: text}); err != nil {
		h.log.Warn("send message failed", "chat", msg.Chat.ID, "error", err)
	}
}
