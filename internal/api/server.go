// Package api exposes the REST surface: quote board, price history, and
// alert management.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"metalpulse/internal/aggregator"
	"metalpulse/internal/alerting"
	"metalpulse/internal/metals"
	"metalpulse/internal/provider"
	"metalpulse/internal/series"
	"metalpulse/internal/storage"
)

// QuoteService is the read side the handlers consume. The aggregator
// satisfies it in production.
type QuoteService interface {
	GetAllQuotes(ctx context.Context) (map[string]provider.Quote, error)
	GetSeries(ctx context.Context, symbol string, days int) (series.Series, error)
}

// Server hosts the HTTP API.
type Server struct {
	quotes QuoteService
	store  storage.AlertStore
	logger zerolog.Logger
	engine *gin.Engine
}

// New assembles the router. A nil store disables the alert endpoints with
// 503 rather than panicking, so the API stays useful without a database.
func New(quotes QuoteService, store storage.AlertStore, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		quotes: quotes,
		store:  store,
		logger: logger.With().Str("component", "api").Logger(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/health", s.handleHealth)

	apiGroup := engine.Group("/api")
	{
		apiGroup.GET("/metals", s.handleListMetals)
		apiGroup.GET("/metals/:symbol/history", s.handleHistory)
		apiGroup.POST("/alerts", s.handleCreateAlert)
		apiGroup.GET("/alerts", s.handleListAlerts)
		apiGroup.DELETE("/alerts/:id", s.handleDeleteAlert)
	}

	s.engine = engine
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// metalDTO is the JSON shape of one quoted metal.
type metalDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High24h       float64 `json:"high24h"`
	Low24h        float64 `json:"low24h"`
	EffectiveDate string  `json:"effectiveDate,omitempty"`
}

func (s *Server) handleListMetals(c *gin.Context) {
	quotes, err := s.quotes.GetAllQuotes(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("quote snapshot unavailable")
		c.JSON(http.StatusBadGateway, gin.H{"error": "quotes unavailable"})
		return
	}

	out := make([]metalDTO, 0, len(metals.All))
	for _, m := range metals.All {
		q, ok := quotes[m.Symbol]
		if !ok {
			continue
		}
		out = append(out, metalDTO{
			ID:            m.ID,
			Name:          m.Name,
			Symbol:        m.Symbol,
			Price:         q.Price.InexactFloat64(),
			Change:        q.Change.InexactFloat64(),
			ChangePercent: q.ChangePercent.InexactFloat64(),
			High24h:       q.High.InexactFloat64(),
			Low24h:        q.Low.InexactFloat64(),
			EffectiveDate: q.EffectiveDate,
		})
	}

	c.JSON(http.StatusOK, out)
}

type historyPointDTO struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

func (s *Server) handleHistory(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if _, ok := metals.Lookup(symbol); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}

	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
			return
		}
		days = parsed
	}

	points, err := s.quotes.GetSeries(c.Request.Context(), symbol, days)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("history unavailable")
		c.JSON(http.StatusBadGateway, gin.H{"error": "history unavailable"})
		return
	}

	out := make([]historyPointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, historyPointDTO{Date: p.Date, Price: p.Close.InexactFloat64()})
	}
	c.JSON(http.StatusOK, out)
}

type createAlertRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	AssetSymbol string  `json:"assetSymbol" binding:"required"`
	Direction   string  `json:"direction" binding:"required"`
	TargetPrice float64 `json:"targetPrice" binding:"required,gt=0"`
}

type alertDTO struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	AssetType   string  `json:"assetType"`
	AssetSymbol string  `json:"assetSymbol"`
	Direction   string  `json:"direction"`
	TargetPrice float64 `json:"targetPrice"`
	IsActive    bool    `json:"isActive"`
	CreatedAt   string  `json:"createdAt"`
}

func toAlertDTO(rec storage.AlertRecord) alertDTO {
	return alertDTO{
		ID:          rec.ID,
		Email:       rec.Email,
		AssetType:   rec.AssetType,
		AssetSymbol: rec.AssetSymbol,
		Direction:   rec.Direction,
		TargetPrice: rec.TargetPrice.InexactFloat64(),
		IsActive:    rec.IsActive,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) alertsEnabled(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alerts require a database"})
		return false
	}
	return true
}

func (s *Server) handleCreateAlert(c *gin.Context) {
	if !s.alertsEnabled(c) {
		return
	}

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := strings.ToUpper(req.AssetSymbol)
	if _, ok := metals.Lookup(symbol); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown symbol"})
		return
	}
	if req.Direction != alerting.DirectionAbove && req.Direction != alerting.DirectionBelow {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be above or below"})
		return
	}

	rec, err := s.store.CreateAlert(c.Request.Context(), storage.NewAlert{
		Email:       req.Email,
		AssetType:   storage.AssetTypeMetal,
		AssetSymbol: symbol,
		Direction:   req.Direction,
		TargetPrice: decimal.NewFromFloat(req.TargetPrice),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("create alert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create alert failed"})
		return
	}

	c.JSON(http.StatusCreated, toAlertDTO(rec))
}

func (s *Server) handleListAlerts(c *gin.Context) {
	if !s.alertsEnabled(c) {
		return
	}

	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is required"})
		return
	}

	records, err := s.store.ListAlertsByEmail(c.Request.Context(), email)
	if err != nil {
		s.logger.Error().Err(err).Msg("list alerts failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list alerts failed"})
		return
	}

	out := make([]alertDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toAlertDTO(rec))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeleteAlert(c *gin.Context) {
	if !s.alertsEnabled(c) {
		return
	}

	id := c.Param("id")
	if err := s.store.DeactivateAlert(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		s.logger.Error().Err(err).Str("alert_id", id).Msg("deactivate alert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate alert failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

var _ QuoteService = (*aggregator.Aggregator)(nil)
