// Package api serves the trade book over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradebook/internal/book"
	"tradebook/internal/metrics"
	"tradebook/internal/model"
	"tradebook/internal/pnl"
)

// Deps are the components the HTTP layer serves.
type Deps struct {
	Book   *book.Book
	PnL    *pnl.Calculator
	Prices model.PriceSource

	// Stream serves GET /ws when set.
	Stream http.Handler
	// Metrics records request latency and PnL timings when set.
	Metrics *metrics.Metrics
}

// Options tune the middleware stack.
type Options struct {
	CORSOrigin string
	// OTPSecret, when set, requires a valid TOTP code in the X-OTP header
	// on trade submissions.
	OTPSecret string
}

// Server holds the gin engine and its dependencies.
type Server struct {
	R *gin.Engine

	book    *book.Book
	pnl     *pnl.Calculator
	prices  model.PriceSource
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewServer wires the router, middleware and handlers.
func NewServer(deps Deps, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}

	g := gin.New()
	g.Use(requestLogger(log))
	g.Use(gin.Recovery())
	g.Use(cors(opts.CORSOrigin))
	if deps.Metrics != nil {
		g.Use(observeLatency(deps.Metrics.HTTPRequestDur))
	}

	s := &Server{
		R:       g,
		book:    deps.Book,
		pnl:     deps.PnL,
		prices:  deps.Prices,
		metrics: deps.Metrics,
		log:     log,
	}

	g.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	write := []gin.HandlerFunc{}
	if opts.OTPSecret != "" {
		write = append(write, requireOTP(opts.OTPSecret))
	}
	g.POST("/trades", append(write, s.addTrade)...)
	g.GET("/trades", s.getTrades)
	g.GET("/trades/:symbol", s.getSymbolTrades)
	g.GET("/portfolio", s.getPortfolio)
	g.GET("/pnl", s.getPnL)
	g.GET("/pnl/:symbol", s.getSymbolPnL)
	g.GET("/prices/:symbol", s.getPrice)
	if deps.Stream != nil {
		g.GET("/ws", gin.WrapH(deps.Stream))
	}
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.R }
