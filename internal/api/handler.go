package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
)

// NewsLimit caps articles returned by the news endpoint.
const NewsLimit = 50

// Response is the JSON envelope of every endpoint.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, Response{Status: status, Message: http.StatusText(status), Data: data})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, Response{Status: status, Message: msg})
}

// Analyzer runs an on-demand analysis.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) *model.AnalysisResult
}

// Handler serves decisions, correlations and news.
type Handler struct {
	Engine       Analyzer
	Decisions    recorder.DecisionStore
	Correlations recorder.CorrelationStore
	Source       collector.Source
	Symbols      []string
	Status       any
	Stream       *Hub // optional live decision feed
}

// RegisterRoutes mounts the API on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)

	g := e.Group("/api")
	g.GET("/status", h.status)
	g.GET("/decisions", h.listDecisions)
	g.GET("/decisions/:symbol", h.getDecision)
	g.GET("/analyze/:symbol", h.analyze)
	g.GET("/correlations/:symbol", h.correlations)
	g.GET("/news/:symbol", h.news)
	if h.Stream != nil {
		g.GET("/stream", h.Stream.ServeWS)
	}
}

func symbolParam(c echo.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
}

func (h *Handler) health(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) status(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]any{
		"provider": h.Status,
		"symbols":  h.Symbols,
	})
}

func (h *Handler) listDecisions(c echo.Context) error {
	ctx := c.Request().Context()
	out := make([]*recorder.DecisionRecord, 0, len(h.Symbols))
	for _, sym := range h.Symbols {
		rec, err := h.Decisions.LatestDecision(ctx, sym)
		if errors.Is(err, recorder.ErrNotFound) {
			continue
		}
		if err != nil {
			return fail(c, http.StatusInternalServerError, err.Error())
		}
		out = append(out, rec)
	}
	return respond(c, http.StatusOK, out)
}

func (h *Handler) getDecision(c echo.Context) error {
	rec, err := h.Decisions.LatestDecision(c.Request().Context(), symbolParam(c))
	if errors.Is(err, recorder.ErrNotFound) {
		return fail(c, http.StatusNotFound, "no decision recorded for symbol")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, rec)
}

func (h *Handler) analyze(c echo.Context) error {
	sym := symbolParam(c)
	if _, ok := collector.LookupInstrument(sym); !ok {
		return fail(c, http.StatusBadRequest, "unsupported symbol")
	}
	return respond(c, http.StatusOK, h.Engine.Analyze(c.Request().Context(), sym))
}

func (h *Handler) correlations(c echo.Context) error {
	entries, err := h.Correlations.FindBySymbol(c.Request().Context(), symbolParam(c))
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []model.CorrelationEntry{}
	}
	return respond(c, http.StatusOK, entries)
}

func (h *Handler) news(c echo.Context) error {
	sym := symbolParam(c)
	if !collector.AssetClassOf(sym).IsEquity() {
		return fail(c, http.StatusBadRequest, "news sentiment is available for stocks only")
	}
	sentiment, err := h.Source.NewsSentiment(c.Request().Context(), []string{sym}, NewsLimit)
	if err != nil {
		return fail(c, http.StatusBadGateway, err.Error())
	}
	return respond(c, http.StatusOK, sentiment)
}
