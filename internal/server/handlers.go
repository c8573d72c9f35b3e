package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rickgao/marketwatch/internal/api"
	"github.com/rickgao/marketwatch/internal/controller"
	"github.com/rickgao/marketwatch/internal/model"
	"github.com/rickgao/marketwatch/internal/version"
)

const defaultHistoricalDays = 7

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     version.Get(),
		"state":       s.market.Snapshot().State,
		"connections": s.hub.Clients(),
	})
}

func (s *Server) postView(c *gin.Context) {
	var inst model.Instrument
	if err := c.ShouldBindJSON(&inst); err != nil {
		badRequest(c, "invalid instrument: "+err.Error())
		return
	}
	if inst.Symbol == "" {
		badRequest(c, "symbol is required")
		return
	}

	if err := s.market.ViewSymbol(c.Request.Context(), inst); err != nil {
		if errors.Is(err, controller.ErrStopped) || errors.Is(err, controller.ErrNotStarted) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		s.internalError(c, "view symbol", err)
		return
	}

	c.JSON(http.StatusAccepted, s.market.Snapshot())
}

func (s *Server) getMarketData(c *gin.Context) {
	c.JSON(http.StatusOK, s.market.Snapshot())
}

func (s *Server) getMarketDataWS(c *gin.Context) {
	s.hub.serveWS(s.ctx, c.Writer, c.Request)
}

func (s *Server) getTrades(c *gin.Context) {
	trades, err := s.trading.ListTrades(c.Request.Context())
	if err != nil {
		s.upstreamError(c, "list trades", err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	c.JSON(http.StatusOK, trades)
}

// tradeRequest accepts quantity and price as JSON numbers or numeric strings.
type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (s *Server) postTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid trade: "+err.Error())
		return
	}
	if req.Symbol == "" {
		badRequest(c, "symbol is required")
		return
	}
	if !req.Quantity.IsPositive() {
		badRequest(c, "quantity must be > 0")
		return
	}
	if !req.Price.IsPositive() {
		badRequest(c, "price must be > 0")
		return
	}

	trade := model.Trade{Symbol: req.Symbol, Quantity: req.Quantity, Price: req.Price}
	if err := s.trading.CreateTrade(c.Request.Context(), trade); err != nil {
		s.upstreamError(c, "create trade", err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (s *Server) getHistorical(c *gin.Context) {
	days := defaultHistoricalDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}

	timeframe := c.Param("timeframe")
	if !api.ValidTimeframe(timeframe) {
		badRequest(c, "invalid timeframe "+strconv.Quote(timeframe))
		return
	}

	bars, err := s.trading.GetHistorical(c.Request.Context(), api.HistoricalOptions{
		ConID:     c.Param("conid"),
		Timeframe: timeframe,
		Days:      days,
	})
	if err != nil {
		s.upstreamError(c, "get historical", err)
		return
	}
	if bars == nil {
		bars = []model.Bar{}
	}

	resp := gin.H{"bars": bars}
	if low, ok := model.LatestLow(bars); ok {
		resp["latestLow"] = low
	}
	c.JSON(http.StatusOK, resp)
}

type orderRequest struct {
	ConID    string            `json:"conid"`
	Quantity decimal.Decimal   `json:"quantity"`
	Price    decimal.Decimal   `json:"price"`
	Action   model.OrderAction `json:"action"`
}

func (s *Server) postOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid order: "+err.Error())
		return
	}
	switch {
	case req.ConID == "":
		badRequest(c, "conid is required")
		return
	case !req.Action.Valid():
		badRequest(c, "action must be BUY or SELL")
		return
	case !req.Quantity.IsPositive():
		badRequest(c, "quantity must be > 0")
		return
	case !req.Price.IsPositive():
		badRequest(c, "price must be > 0")
		return
	}

	order := model.Order{ConID: req.ConID, Quantity: req.Quantity, Price: req.Price, Action: req.Action}
	if err := s.trading.PlaceOrder(c.Request.Context(), order); err != nil {
		s.upstreamError(c, "place order", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "submitted"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// upstreamError maps a backend failure to a response. Backend 4xx errors
// pass through; anything else is a bad gateway.
func (s *Server) upstreamError(c *gin.Context, op string, err error) {
	s.logger.Warn("backend call failed", "op", op, "error", err)

	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": op + " failed"})
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}
