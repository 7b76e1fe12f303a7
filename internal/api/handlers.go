package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradebook/internal/model"
)

type tradesResponse struct {
	Trades []model.Trade `json:"trades"`
	Count  int           `json:"count"`
}

type portfolioResponse struct {
	Portfolio []model.Holding `json:"portfolio"`
	Count     int             `json:"count"`
}

func (s *Server) addTrade(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.writeError(c, "read body", fmt.Errorf("%w: %v", model.ErrInvalidJSON, err))
		return
	}
	req, err := model.DecodeTradeRequest(body)
	if err != nil {
		s.writeError(c, "decode", err)
		return
	}
	trade, err := s.book.Submit(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, "submit", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Trade added successfully",
		"trade":   trade,
	})
}

func (s *Server) getTrades(c *gin.Context) {
	trades := s.book.Trades()
	c.JSON(http.StatusOK, tradesResponse{Trades: trades, Count: len(trades)})
}

func (s *Server) getSymbolTrades(c *gin.Context) {
	var side *model.Side
	if raw := strings.TrimSpace(c.Query("side")); raw != "" {
		parsed, ok := model.ParseSide(raw)
		if !ok {
			verr := &model.ValidationError{}
			verr.Add("side", "Must be one of: buy, sell.")
			s.writeError(c, "side", verr)
			return
		}
		side = &parsed
	}
	trades := s.book.TradesFor(c.Param("symbol"), side)
	c.JSON(http.StatusOK, tradesResponse{Trades: trades, Count: len(trades)})
}

func (s *Server) getPortfolio(c *gin.Context) {
	holdings := s.book.Holdings()
	c.JSON(http.StatusOK, portfolioResponse{Portfolio: holdings, Count: len(holdings)})
}

func (s *Server) getPnL(c *gin.Context) {
	start := time.Now()
	summary, err := s.pnl.Summary(c.Request.Context(), s.book.Snapshot())
	s.observePnL(start)
	if err != nil {
		s.writeError(c, "pnl", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getSymbolPnL(c *gin.Context) {
	start := time.Now()
	row, err := s.pnl.ForSymbol(c.Request.Context(), s.book.Snapshot(), c.Param("symbol"))
	s.observePnL(start)
	if err != nil {
		s.writeError(c, "pnl symbol", fmt.Errorf("cannot calculate pnl: %w", err))
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) getPrice(c *gin.Context) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	price, err := s.prices.Price(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, model.ErrUnknownInstrument) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.writeError(c, "price", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": model.PresentNumber(price)})
}

func (s *Server) observePnL(start time.Time) {
	if s.metrics != nil {
		s.metrics.PnLComputeDur.Observe(time.Since(start).Seconds())
	}
}
