package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"demo-trader/internal/broker"
	"demo-trader/internal/config"
	"demo-trader/internal/demo"
	"demo-trader/internal/logging"
	"demo-trader/internal/metrics"
	"demo-trader/internal/models"
	"demo-trader/internal/resilience"
	"demo-trader/internal/security"
	"demo-trader/internal/store"
	"demo-trader/internal/stream"
)

// App holds the application dependencies. The demo service is opened on
// first use so that commands like version and config work without a
// database.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Hub     *stream.Hub

	svc     *demo.Service
	audit   *security.AuditLogger
	breaker *resilience.CircuitBreaker
	closers []func() error
}

// Service opens the demo account, seeding it on first run.
func (a *App) Service(ctx context.Context) (*demo.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	if a.Config == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	cfg := a.Config

	st, err := store.NewSQLiteStore(cfg.Demo.DBPath)
	if err != nil {
		return nil, err
	}

	if cfg.Security.AuditEnabled {
		auditCfg := security.DefaultAuditConfig()
		auditCfg.LogDir = cfg.Security.AuditDir
		audit, err := security.NewAuditLogger(auditCfg)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Audit log unavailable")
		} else {
			a.audit = audit
			a.closers = append(a.closers, audit.Close)
		}
	}

	if a.Metrics == nil {
		a.Metrics = metrics.New()
	}
	quotes, instruments := a.marketData()

	svc, err := demo.Open(ctx, st, demo.Config{
		SeedCash:           decimal.NewFromFloat(cfg.Demo.SeedCash),
		QuoteTimeout:       cfg.Demo.QuoteTimeout,
		AllowShort:         cfg.Demo.AllowShort,
		EnforceMarketHours: cfg.Demo.EnforceMarketHours,
		DefaultExchange:    models.Exchange(cfg.Demo.DefaultExchange),
	}, demo.Deps{
		Quotes:      quotes,
		Instruments: instruments,
		Access:      security.NewAccessController(cfg.Security.ReadOnlyMode, a.audit),
		Audit:       a.audit,
		Metrics:     a.Metrics,
		Hub:         a.Hub,
		Logger:      &a.Logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	a.svc = svc
	a.closers = append(a.closers, svc.Close)
	return svc, nil
}

// marketData builds the quote and instrument sources: Kite when
// credentials are configured, backed by the offline price table.
func (a *App) marketData() (broker.QuoteSource, broker.InstrumentLookup) {
	cfg := a.Config
	book := broker.NewQuoteBook(cfg.Demo.Quotes)
	static := broker.NewStaticInstruments(cfg.Demo.LotSizes)
	if !cfg.HasZerodha() {
		a.Logger.Debug().Int("prices", book.Len()).Msg("Using offline quote book")
		return book, static
	}

	kite := broker.NewZerodhaClient(broker.ZerodhaConfig{
		APIKey:      cfg.Credentials.Zerodha.APIKey,
		AccessToken: cfg.Credentials.Zerodha.AccessToken,
	})
	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	m := a.Metrics
	logger := a.Logger
	breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
		logger.Warn().Str("breaker", name).Str("from", string(from)).Str("to", string(to)).Msg("Quote feed circuit changed state")
		m.SetBreakerOpen(name, to == resilience.CircuitOpen)
	}
	a.breaker = resilience.NewCircuitBreaker("kite-quotes", breakerCfg)
	a.Logger.Debug().Msg("Using Kite quotes with offline fallback")

	return broker.QuoteChain{broker.NewGuardedQuotes(kite, a.breaker), book},
		broker.InstrumentChain{kite, static}
}

// Close releases everything opened by Service.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	a.svc = nil
	return first
}

// newLogger builds the process logger. Console output is reserved for the
// server and --debug so that command output stays clean.
func newLogger(cfg *config.Config, debug, console bool) zerolog.Logger {
	logCfg := logging.DefaultConfig(cfg.Dir)
	logCfg.Level = cfg.Log.Level
	logCfg.Console = console
	logCfg.File = cfg.Log.File
	logCfg.FilePath = cfg.Log.Path
	if cfg.Log.MaxSize > 0 {
		logCfg.MaxSize = cfg.Log.MaxSize
	}
	if debug {
		logCfg.Level = "debug"
	}
	return logging.New(logCfg)
}
