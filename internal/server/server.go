// Package server exposes the feed over HTTP: latest quotes, single-quote
// lookup and price history.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pricefeed/internal/feed"
	"pricefeed/internal/shared"
	"pricefeed/internal/store"
)

// Feed is the part of the feed service the server consumes.
type Feed interface {
	Latest() []feed.Quote
	Lookup(ctx context.Context, id string) (feed.Quote, error)
}

// Historian serves stored price history.
type Historian interface {
	History(ctx context.Context, feedID string, limit int) ([]store.Point, error)
}

// Server is the HTTP API over the feed.
type Server struct {
	feed    Feed
	history Historian
	log     *slog.Logger
	engine  *gin.Engine
}

type quoteResponse struct {
	ID        string    `json:"id"`
	Kind      feed.Kind `json:"kind"`
	Label     string    `json:"label"`
	Price     *float64  `json:"price"`
	UIPrice   string    `json:"uiPrice"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toQuoteResponse(q feed.Quote) quoteResponse {
	return quoteResponse{
		ID:        q.ID,
		Kind:      q.Kind,
		Label:     q.Label(),
		Price:     q.Price,
		UIPrice:   q.UIPrice,
		UpdatedAt: q.UpdatedAt,
	}
}

// New builds the server and its routes. The history endpoint is registered
// only when a Historian is provided.
func New(f Feed, h Historian, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{feed: f, history: h, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.handleHealth)

	v1 := r.Group("/v1")
	v1.GET("/prices", s.handlePrices)
	v1.GET("/prices/:id", s.handlePrice)
	if h != nil {
		v1.GET("/history/:id", s.handleHistory)
	}

	s.engine = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePrices(c *gin.Context) {
	quotes := s.feed.Latest()
	out := make([]quoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, toQuoteResponse(q))
	}
	c.JSON(http.StatusOK, gin.H{"quotes": out})
}

func (s *Server) handlePrice(c *gin.Context) {
	id := c.Param("id")
	q, err := s.feed.Lookup(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "lookup", id)
		return
	}
	c.JSON(http.StatusOK, toQuoteResponse(q))
}

func (s *Server) handleHistory(c *gin.Context) {
	id := c.Param("id")
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 10000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	points, err := s.history.History(c.Request.Context(), id, limit)
	if err != nil {
		s.fail(c, err, "history", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// fail writes an error response with a status derived from the error kind.
func (s *Server) fail(c *gin.Context, err error, op, id string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "op", op, "id", id, "error", err)
	} else {
		s.log.Debug("request rejected", "op", op, "id", id, "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindTimeout:
		return http.StatusGatewayTimeout
	case shared.KindDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
