package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"pricefeed/internal/adapter/telegram"
)

// ACL checks access against an allow-list of Telegram user IDs. An empty
// list allows everyone.
type ACL struct{ allowed map[int64]struct{} }

// NewACL creates an ACL from a list of user IDs.
func NewACL(ids []int64) *ACL {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &ACL{allowed: m}
}

// IsAllowed reports whether the user has access.
func (a *ACL) IsAllowed(id int64) bool {
	if len(a.allowed) == 0 {
		return true
	}
	_, ok := a.allowed[id]
	return ok
}

// Middleware blocks handlers for users outside the allow-list.
func (a *ACL) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, upd *models.Update) {
		var uid, chat int64
		if m := upd.Message; m != nil {
			chat = m.Chat.ID
			if m.From != nil {
				uid = m.From.ID
			}
		} else if cb := upd.CallbackQuery; cb != nil {
			chat = cb.Message.Message.Chat.ID
			uid = cb.From.ID
		}
		if uid == 0 || a.IsAllowed(uid) {
			next(ctx, b, upd)
			return
		}
		if chat != 0 && b != nil {
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: "access denied"})
		}
	}
}

// ParseAllowedIDs parses an ID list from a string, split on commas and
// whitespace. Malformed entries are skipped.
func ParseAllowedIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\t' || r == ' '
	})
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
