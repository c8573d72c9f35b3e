package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/marketwatch/internal/api"
	"github.com/rickgao/marketwatch/internal/controller"
	"github.com/rickgao/marketwatch/internal/model"
)

// MarketData is the controller surface the server drives.
type MarketData interface {
	ViewSymbol(ctx context.Context, inst model.Instrument) error
	Snapshot() controller.Snapshot
}

// Trading is the backend trading API the server proxies.
type Trading interface {
	ListTrades(ctx context.Context) ([]model.Trade, error)
	CreateTrade(ctx context.Context, t model.Trade) error
	GetHistorical(ctx context.Context, opts api.HistoricalOptions) ([]model.Bar, error)
	PlaceOrder(ctx context.Context, o model.Order) error
}

// Config holds server configuration.
type Config struct {
	Port int
	Mode string // gin mode: debug, release, test
}

// Server is the dashboard-facing HTTP server.
type Server struct {
	cfg     Config
	market  MarketData
	trading Trading
	hub     *Hub
	logger  *slog.Logger

	engine *gin.Engine
	http   *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Server. hub should also be registered as a controller
// observer so websocket clients see updates.
func New(cfg Config, market MarketData, trading Trading, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		cfg:     cfg,
		market:  market,
		trading: trading,
		hub:     hub,
		logger:  logger,
		engine:  gin.New(),
		ctx:     context.Background(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger(), cors())
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.getHealth)

	g := s.engine.Group("/api")
	g.POST("/view", s.postView)
	g.GET("/market-data", s.getMarketData)
	g.GET("/market-data/ws", s.getMarketDataWS)

	g.GET("/trades", s.getTrades)
	g.POST("/trades", s.postTrade)
	g.GET("/positions/:conid/historical/:timeframe", s.getHistorical)
	g.POST("/orders", s.postOrder)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the hub and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.hub.Run(s.ctx)
	}()

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("http server started", "port", s.cfg.Port)
	return nil
}

// Stop shuts the server down and waits for the hub to exit.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}

	err := s.http.Shutdown(ctx)
	s.cancel()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("http server stopped")
	return err
}

// requestLogger logs each request through slog.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// cors allows the dashboard dev server to call the API.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.Request.Header.Get("Origin"); origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
