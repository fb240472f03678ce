// Package demo implements the simulated trading account: an order state
// machine, per-segment virtual funds kept in step with an append-only
// ledger, and holdings aggregated from executions.
package demo

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"demo-trader/internal/broker"
	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/logging"
	"demo-trader/internal/metrics"
	"demo-trader/internal/models"
	"demo-trader/internal/security"
	"demo-trader/internal/store"
	"demo-trader/internal/stream"
)

// Config holds the account policy.
type Config struct {
	SeedCash           decimal.Decimal
	QuoteTimeout       time.Duration
	AllowShort         bool
	EnforceMarketHours bool
	DefaultExchange    models.Exchange
}

// DefaultConfig returns the default account policy.
func DefaultConfig() Config {
	return Config{
		SeedCash:        decimal.NewFromInt(1000000),
		QuoteTimeout:    2 * time.Second,
		DefaultExchange: models.NSE,
	}
}

// Deps are the collaborators of the service. Quotes and Instruments are
// required; the rest may be nil.
type Deps struct {
	Quotes      broker.QuoteSource
	Instruments broker.InstrumentLookup
	Access      *security.AccessController
	Audit       *security.AuditLogger
	Metrics     *metrics.Metrics
	Hub         *stream.Hub
	Logger      *zerolog.Logger
	Now         func() time.Time
}

// DefaultWatchList is added to an empty market watch the first time the
// account is opened.
var DefaultWatchList = []models.WatchItem{
	{Symbol: "RELIANCE", Exchange: models.NSE},
	{Symbol: "TCS", Exchange: models.NSE},
	{Symbol: "INFY", Exchange: models.NSE},
	{Symbol: "HDFC", Exchange: models.NSE},
	{Symbol: "ICICIBANK", Exchange: models.NSE},
}

// Service is the demo trading facade. Mutations are serialized by a single
// writer lock and run inside one store transaction each; reads share the
// lock and see a consistent snapshot.
type Service struct {
	store       *store.SQLiteStore
	quotes      broker.QuoteSource
	instruments broker.InstrumentLookup
	access      *security.AccessController
	audit       *security.AuditLogger
	metrics     *metrics.Metrics
	hub         *stream.Hub
	logger      zerolog.Logger
	validate    *validator.Validate
	cfg         Config
	now         func() time.Time

	mu sync.RWMutex
}

// NewService wires a service over an open store without touching its state.
func NewService(st *store.SQLiteStore, cfg Config, deps Deps) (*Service, error) {
	if st == nil {
		return nil, apperrors.New("demo: store is required")
	}
	if deps.Quotes == nil || deps.Instruments == nil {
		return nil, apperrors.New("demo: quote source and instrument lookup are required")
	}
	if cfg.SeedCash.IsNegative() {
		return nil, apperrors.Wrapf(apperrors.ErrConfigInvalid, "seed cash %s is negative", cfg.SeedCash)
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = DefaultConfig().QuoteTimeout
	}
	if cfg.DefaultExchange == "" {
		cfg.DefaultExchange = models.NSE
	}

	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:       st,
		quotes:      deps.Quotes,
		instruments: deps.Instruments,
		access:      deps.Access,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		hub:         deps.Hub,
		logger:      logging.WithComponent(logger, "demo"),
		validate:    newValidator(),
		cfg:         cfg,
		now:         now,
	}, nil
}

// Open wires a service and brings the account to a usable state: funds
// are seeded and the default watch list is added, each at most once.
func Open(ctx context.Context, st *store.SQLiteStore, cfg Config, deps Deps) (*Service, error) {
	s, err := NewService(st, cfg, deps)
	if err != nil {
		return nil, err
	}
	if _, err := s.Seed(ctx); err != nil {
		return nil, err
	}
	if err := s.seedWatchList(ctx); err != nil {
		return nil, err
	}
	funds, err := s.Funds(ctx)
	if err != nil {
		return nil, err
	}
	for _, seg := range models.Segments() {
		s.metrics.SetBalance(string(seg), funds.Balance(seg))
	}
	return s, nil
}

// Close releases the store.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Close()
}

// Config returns the account policy.
func (s *Service) Config() Config {
	return s.cfg
}

// ReadOnly reports whether mutations are blocked.
func (s *Service) ReadOnly() bool {
	return s.access != nil && s.access.IsReadOnly()
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and reports the first failure
// as a ValidationError.
func (s *Service) validateStruct(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if apperrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return apperrors.NewValidationError(fe.Field(), fe.Value(), msg)
	}
	return apperrors.Wrap(apperrors.ErrValidation, err.Error())
}

// quote fetches a live price bounded by the configured timeout.
func (s *Service) quote(ctx context.Context, exchange models.Exchange, symbol string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	defer cancel()

	start := time.Now()
	price, err := s.quotes.LTP(ctx, exchange, symbol)
	elapsed := time.Since(start).Seconds()
	if err == nil && !price.IsPositive() {
		err = apperrors.NewDataError("quote", symbol, fmt.Sprintf("non-positive price %s", price), apperrors.ErrQuoteUnavailable)
	}
	if err != nil {
		s.metrics.QuoteLookup("unavailable", elapsed)
		s.logger.Debug().Err(err).Str("symbol", symbol).Str("exchange", string(exchange)).Msg("Quote lookup failed")
		return decimal.Zero, err
	}
	s.metrics.QuoteLookup("ok", elapsed)
	return price, nil
}

// effects collects what a committed transaction changed so it can be
// reported after commit.
type effects struct {
	entries  []postedEntry
	balances map[models.Segment]decimal.Decimal
	events   []stream.Event
}

type postedEntry struct {
	entry   models.LedgerEntry
	balance decimal.Decimal
}

func (fx *effects) posted(e models.LedgerEntry, balance decimal.Decimal) {
	fx.entries = append(fx.entries, postedEntry{entry: e, balance: balance})
	fx.balance(e.Segment, balance)
	fx.events = append(fx.events, stream.Event{Type: stream.EventLedgerAppended, Topic: string(e.Segment), Payload: e})
}

func (fx *effects) balance(seg models.Segment, balance decimal.Decimal) {
	if fx.balances == nil {
		fx.balances = make(map[models.Segment]decimal.Decimal)
	}
	fx.balances[seg] = balance
}

func (fx *effects) ordered(t stream.EventType, o models.Order) {
	fx.events = append(fx.events, stream.Event{Type: t, Topic: o.Symbol, Payload: o})
}

// commit reports the effects of a committed transaction.
func (s *Service) commit(fx effects) {
	for _, p := range fx.entries {
		e := p.entry
		logging.LogLedger(s.logger, e.TransactionID, string(e.Segment), e.Amount.String(), p.balance.String())
		s.metrics.LedgerAppended(string(e.Type), string(e.Segment))
	}
	for seg, bal := range fx.balances {
		s.metrics.SetBalance(string(seg), bal)
		s.publish(stream.Event{
			Type:    stream.EventFundsUpdated,
			Topic:   string(seg),
			Payload: map[string]string{"segment": string(seg), "balance": bal.String()},
		})
	}
	for _, ev := range fx.events {
		s.publish(ev)
	}
}

func (s *Service) publish(ev stream.Event) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(ev)
}

// PortfolioSummary combines balances with the live value of holdings.
func (s *Service) PortfolioSummary(ctx context.Context) (*models.PortfolioSummary, error) {
	var funds models.Funds
	var holdings []models.Holding
	var pending int
	s.mu.RLock()
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		if funds, err = tx.GetFunds(ctx); err != nil {
			return err
		}
		if holdings, err = tx.ListHoldings(ctx); err != nil {
			return err
		}
		pending, err = tx.CountOrders(ctx, models.OrderPending)
		return err
	})
	s.mu.RUnlock()
	if err != nil {
		return nil, apperrors.Wrap(err, "portfolio summary")
	}
	s.enrich(ctx, holdings)

	summary := &models.PortfolioSummary{
		Funds:              funds,
		HoldingsValue:      decimal.Zero,
		InvestedValue:      decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
		HoldingsCount:      len(holdings),
		PendingOrders:      pending,
		Timestamp:          s.now(),
	}
	for _, h := range holdings {
		summary.HoldingsValue = summary.HoldingsValue.Add(h.MarketValue)
		summary.InvestedValue = summary.InvestedValue.Add(h.InvestedValue())
		summary.TotalUnrealizedPnL = summary.TotalUnrealizedPnL.Add(h.UnrealizedPnL)
	}
	summary.NetWorth = funds.Total.Add(summary.HoldingsValue)
	s.metrics.SetHoldings(len(holdings))
	return summary, nil
}
