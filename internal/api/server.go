// Package api exposes the demo trading account over HTTP: a JSON API under
// /api/demo, a WebSocket event stream, Prometheus metrics and a health
// check.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"demo-trader/internal/demo"
	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/logging"
	"demo-trader/internal/metrics"
	"demo-trader/internal/resilience"
	"demo-trader/internal/stream"
)

var errPanic = apperrors.New("handler panicked")

// Options are the optional collaborators of a Server.
type Options struct {
	Hub     *stream.Hub
	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
	// Debug switches gin to debug mode.
	Debug bool

	// Health checks extra components on /healthz. The database is always
	// checked.
	Health *resilience.HealthChecker

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server routes HTTP requests to a demo.Service.
type Server struct {
	svc           *demo.Service
	hub           *stream.Hub
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	engine        *gin.Engine
	upgrader      websocket.Upgrader
	healthChecker *resilience.HealthChecker
	timeouts      [2]time.Duration
}

// NewServer builds the router.
func NewServer(svc *demo.Service, opts Options) *Server {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		svc:           svc,
		hub:           opts.Hub,
		metrics:       opts.Metrics,
		logger:        logging.WithComponent(logger, "api"),
		engine:        gin.New(),
		healthChecker: opts.Health,
		timeouts:      [2]time.Duration{opts.ReadTimeout, opts.WriteTimeout},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if s.healthChecker == nil {
		s.healthChecker = resilience.NewHealthChecker(5 * time.Second)
	}
	s.healthChecker.Register("database", resilience.DatabaseHealthCheck(svc.Ping))
	s.engine.Use(RequestID(s.logger), Recovery(), AccessLog())
	s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	g := s.engine.Group("/api/demo")
	{
		g.GET("/funds", s.getFunds)
		g.POST("/funds/adjust", s.adjustFunds)
		g.POST("/funds/transfer", s.transferFunds)
		g.POST("/funds/reconcile", s.reconcile)

		g.GET("/holdings", s.getHoldings)
		g.GET("/ledger", s.getLedger)

		g.GET("/orders", s.getOrders)
		g.POST("/orders", s.placeOrder)
		g.GET("/orders/:id", s.getOrder)
		g.POST("/orders/:id/execute", s.executeOrder)
		g.POST("/orders/:id/cancel", s.cancelOrder)

		g.GET("/export/:table", s.export)
		g.GET("/summary", s.summary)

		g.GET("/watch", s.getWatch)
		g.POST("/watch", s.addWatch)
		g.DELETE("/watch", s.removeWatch)

		g.GET("/stream", s.stream)
	}
}

// Run serves addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.timeouts[0],
		WriteTimeout:      s.timeouts[1],
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return apperrors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	health := s.healthChecker.Check(c.Request.Context())
	code, status := http.StatusOK, "ok"
	switch health.Status {
	case resilience.HealthStatusDegraded:
		status = "degraded"
	case resilience.HealthStatusUnhealthy:
		code, status = http.StatusServiceUnavailable, "unhealthy"
	}
	c.JSON(code, gin.H{
		"status":    status,
		"read_only": s.svc.ReadOnly(),
		"time":      time.Now().UTC().Format(time.RFC3339),
		"checks":    health,
	})
}

func (s *Server) getFunds(c *gin.Context) {
	funds, err := s.svc.Funds(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, funds)
}

func (s *Server) adjustFunds(c *gin.Context) {
	var req demo.FundsAdjustment
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	entry, err := s.svc.AdjustFunds(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, entry)
}

type transferRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) transferFunds(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	funds, err := s.svc.TransferFunds(c.Request.Context(), req.From, req.To, req.Amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, funds)
}

func (s *Server) reconcile(c *gin.Context) {
	report, err := s.svc.Reconcile(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, report)
}

func (s *Server) getHoldings(c *gin.Context) {
	holdings, err := s.svc.Holdings(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, holdings)
}

func (s *Server) getLedger(c *gin.Context) {
	var q demo.LedgerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, err.Error())
		return
	}
	entries, err := s.svc.Ledger(c.Request.Context(), q)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, entries)
}

func (s *Server) getOrders(c *gin.Context) {
	var q demo.OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, err.Error())
		return
	}
	orders, err := s.svc.Orders(c.Request.Context(), q)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, orders)
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := s.svc.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

func (s *Server) placeOrder(c *gin.Context) {
	var req demo.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	result, err := s.svc.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

type executeRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (s *Server) executeOrder(c *gin.Context) {
	var req executeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}
	order, err := s.svc.ExecuteOrder(c.Request.Context(), c.Param("id"), req.Price)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

func (s *Server) cancelOrder(c *gin.Context) {
	order, err := s.svc.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

func (s *Server) export(c *gin.Context) {
	table := strings.ToLower(c.Param("table"))
	out, err := s.svc.Export(c.Request.Context(), table)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=demo_"+table+".csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

func (s *Server) summary(c *gin.Context) {
	summary, err := s.svc.PortfolioSummary(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, summary)
}

type watchRequest struct {
	Exchange string `json:"exchange" form:"exchange"`
	Symbol   string `json:"symbol" form:"symbol"`
}

func (s *Server) getWatch(c *gin.Context) {
	items, err := s.svc.WatchList(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

func (s *Server) addWatch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := s.svc.AddToWatch(c.Request.Context(), req.Exchange, req.Symbol); err != nil {
		Fail(c, err)
		return
	}
	s.getWatch(c)
}

func (s *Server) removeWatch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	removed, err := s.svc.RemoveFromWatch(c.Request.Context(), req.Exchange, req.Symbol)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"removed": removed})
}
