package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
	"demo-trader/pkg/utils"
)

// ZerodhaClient reads live prices and the instrument master from Kite
// Connect. It never places orders.
type ZerodhaClient struct {
	client      *kiteconnect.Client
	accessToken string
	tokenPath   string
	retry       utils.RetryConfig

	instruments map[models.Exchange]map[string][]models.Instrument // exchange -> tradingsymbol and name -> instruments
	loadedAt    map[models.Exchange]time.Time
	mu          sync.RWMutex
}

// ZerodhaConfig holds configuration for the Kite client.
type ZerodhaConfig struct {
	APIKey      string
	AccessToken string
	TokenPath   string // session.json written by the login flow
	BaseURI     string // overrides the Kite API root
	Retry       *utils.RetryConfig
}

// instrumentTTL bounds how long a downloaded instrument master is reused.
const instrumentTTL = 12 * time.Hour

// NewZerodhaClient creates a Kite client. When no access token is given the
// saved session is loaded from disk if present.
func NewZerodhaClient(cfg ZerodhaConfig) *ZerodhaClient {
	client := kiteconnect.New(cfg.APIKey)
	if cfg.BaseURI != "" {
		client.SetBaseURI(cfg.BaseURI)
	}

	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		homeDir, _ := os.UserHomeDir()
		tokenPath = filepath.Join(homeDir, ".config", "demo-trader", "session.json")
	}

	retry := utils.DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	z := &ZerodhaClient{
		client:      client,
		tokenPath:   tokenPath,
		retry:       retry,
		instruments: make(map[models.Exchange]map[string][]models.Instrument),
		loadedAt:    make(map[models.Exchange]time.Time),
	}

	if cfg.AccessToken != "" {
		z.setAccessToken(cfg.AccessToken)
	} else {
		_ = z.loadSession()
	}

	return z
}

// sessionData represents a persisted Kite session.
type sessionData struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (z *ZerodhaClient) loadSession() error {
	data, err := os.ReadFile(z.tokenPath)
	if err != nil {
		return err
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}

	// Kite tokens expire at 6 AM IST the next day
	if time.Now().After(session.ExpiresAt) {
		return fmt.Errorf("session expired")
	}

	z.setAccessToken(session.AccessToken)
	return nil
}

func (z *ZerodhaClient) setAccessToken(token string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.accessToken = token
	z.client.SetAccessToken(token)
}

// IsAuthenticated reports whether an access token is available.
func (z *ZerodhaClient) IsAuthenticated() bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.accessToken != ""
}

// LTP fetches the last traded price for EXCHANGE:SYMBOL.
func (z *ZerodhaClient) LTP(ctx context.Context, exchange models.Exchange, symbol string) (decimal.Decimal, error) {
	if !z.IsAuthenticated() {
		return decimal.Zero, apperrors.NewDataError("quote", symbol, "kite session missing", apperrors.ErrNotAuthenticated)
	}

	key := Key(exchange, symbol)
	ltp, err := utils.RetryWithResult(ctx, z.retry, func() (kiteconnect.QuoteLTP, error) {
		return z.client.GetLTP(key)
	})
	if err != nil {
		return decimal.Zero, apperrors.NewDataError("quote", symbol, "kite ltp failed", err)
	}

	q, ok := ltp[key]
	if !ok || q.LastPrice <= 0 {
		return decimal.Zero, apperrors.NewDataError("quote", symbol, "no ltp returned", apperrors.ErrQuoteUnavailable)
	}
	return decimal.NewFromFloat(q.LastPrice), nil
}

// Lookup finds an instrument in the exchange's instrument master, downloading
// it when missing or older than a trading day.
func (z *ZerodhaClient) Lookup(ctx context.Context, q InstrumentQuery) (*models.Instrument, error) {
	if !z.IsAuthenticated() {
		return nil, apperrors.NewDataError("instrument", q.Symbol, "kite session missing", apperrors.ErrNotAuthenticated)
	}

	byName, err := z.exchangeInstruments(ctx, q.Exchange)
	if err != nil {
		return nil, err
	}

	inst, ok := matchInstrument(byName, q)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInstrumentNotFound, "%s", Key(q.Exchange, q.Symbol))
	}
	return &inst, nil
}

func (z *ZerodhaClient) exchangeInstruments(ctx context.Context, exchange models.Exchange) (map[string][]models.Instrument, error) {
	z.mu.RLock()
	byName, ok := z.instruments[exchange]
	fresh := time.Since(z.loadedAt[exchange]) < instrumentTTL
	z.mu.RUnlock()
	if ok && fresh {
		return byName, nil
	}

	raw, err := utils.RetryWithResult(ctx, z.retry, func() (kiteconnect.Instruments, error) {
		return z.client.GetInstrumentsByExchange(string(exchange))
	})
	if err != nil {
		return nil, apperrors.NewDataError("instrument", string(exchange), "failed to get instruments", err)
	}

	byName = indexInstruments(raw)

	z.mu.Lock()
	z.instruments[exchange] = byName
	z.loadedAt[exchange] = time.Now()
	z.mu.Unlock()

	return byName, nil
}

// indexInstruments keys instruments by trading symbol and by underlying name.
func indexInstruments(raw []kiteconnect.Instrument) map[string][]models.Instrument {
	byName := make(map[string][]models.Instrument, len(raw))
	for _, inst := range raw {
		m := models.Instrument{
			Token:     uint32(inst.InstrumentToken),
			Symbol:    inst.Tradingsymbol,
			Name:      inst.Name,
			Exchange:  models.Exchange(inst.Exchange),
			Segment:   inst.Segment,
			LotSize:   int(inst.LotSize),
			TickSize:  inst.TickSize,
			Expiry:    inst.Expiry.Time,
			Strike:    inst.StrikePrice,
			InstrType: inst.InstrumentType,
		}
		if m.InstrType == "CE" || m.InstrType == "PE" {
			m.OptionType = m.InstrType
		}
		ts := strings.ToUpper(inst.Tradingsymbol)
		byName[ts] = append(byName[ts], m)
		if name := strings.ToUpper(inst.Name); name != "" && name != ts {
			byName[name] = append(byName[name], m)
		}
	}
	return byName
}

// matchInstrument picks the instrument for q. An exact trading symbol wins;
// otherwise derivatives are matched on underlying name, expiry day, strike
// and option type.
func matchInstrument(byName map[string][]models.Instrument, q InstrumentQuery) (models.Instrument, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
	candidates := byName[symbol]

	for _, c := range candidates {
		if strings.EqualFold(c.Symbol, symbol) && (!q.Product.IsDerivative() || q.Expiry == nil) {
			return c, true
		}
	}

	for _, c := range candidates {
		switch q.Product {
		case models.ProductFutures:
			if c.InstrType != "FUT" {
				continue
			}
		case models.ProductOptions:
			if c.OptionType == "" || !strings.EqualFold(c.OptionType, q.OptionType) {
				continue
			}
			if q.Strike != nil && !decimal.NewFromFloat(c.Strike).Equal(*q.Strike) {
				continue
			}
		default:
			continue
		}
		if q.Expiry != nil && !sameDay(c.Expiry, *q.Expiry) {
			continue
		}
		return c, true
	}
	return models.Instrument{}, false
}

func sameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
