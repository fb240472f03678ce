package broker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	kitemodels "github.com/zerodha/gokiteconnect/v4/models"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
	"demo-trader/internal/resilience"
	"demo-trader/pkg/utils"
)

func TestQuoteBook(t *testing.T) {
	qb := NewQuoteBook(map[string]float64{"RELIANCE": 2500, "bse:tcs": 3500.5})
	ctx := context.Background()

	p, err := qb.LTP(ctx, models.NSE, "RELIANCE")
	require.NoError(t, err)
	assert.Equal(t, "2500", p.String())

	p, err = qb.LTP(ctx, models.BSE, "TCS")
	require.NoError(t, err)
	assert.Equal(t, "3500.5", p.String())

	_, err = qb.LTP(ctx, models.NSE, "TCS")
	assert.True(t, apperrors.Is(err, apperrors.ErrQuoteUnavailable))

	qb.UpdatePrice(models.NSE, "TCS", decimal.NewFromInt(3400))
	p, err = qb.LTP(ctx, models.NSE, "tcs")
	require.NoError(t, err)
	assert.Equal(t, "3400", p.String())
}

func TestQuoteChain_FallsThrough(t *testing.T) {
	down := QuoteFunc(func(ctx context.Context, ex models.Exchange, sym string) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("feed down")
	})
	chain := QuoteChain{down, NewQuoteBook(map[string]float64{"INFY": 1500})}

	p, err := chain.LTP(context.Background(), models.NSE, "INFY")
	require.NoError(t, err)
	assert.Equal(t, "1500", p.String())

	_, err = chain.LTP(context.Background(), models.NSE, "HDFC")
	assert.True(t, apperrors.Is(err, apperrors.ErrQuoteUnavailable))

	_, err = QuoteChain{}.LTP(context.Background(), models.NSE, "HDFC")
	assert.True(t, apperrors.Is(err, apperrors.ErrQuoteUnavailable))
}

func TestStaticInstruments(t *testing.T) {
	si := NewStaticInstruments(map[string]int{"NFO:NIFTY": 75, "BANKNIFTY": 30})
	ctx := context.Background()

	inst, err := si.Lookup(ctx, InstrumentQuery{Symbol: "reliance", Exchange: models.NSE, Product: models.ProductCash})
	require.NoError(t, err)
	assert.Equal(t, 1, inst.LotSize)
	assert.Equal(t, "RELIANCE", inst.Symbol)

	inst, err = si.Lookup(ctx, InstrumentQuery{Symbol: "NIFTY", Exchange: models.NFO, Product: models.ProductFutures})
	require.NoError(t, err)
	assert.Equal(t, 75, inst.LotSize)
	assert.Equal(t, "FUT", inst.InstrType)

	inst, err = si.Lookup(ctx, InstrumentQuery{Symbol: "BANKNIFTY", Exchange: models.NFO, Product: models.ProductOptions, OptionType: "CE"})
	require.NoError(t, err)
	assert.Equal(t, 30, inst.LotSize)

	_, err = si.Lookup(ctx, InstrumentQuery{Symbol: "FINNIFTY", Exchange: models.NFO, Product: models.ProductFutures})
	assert.Equal(t, apperrors.KindValidation, apperrors.Kind(err))

	_, err = si.Lookup(ctx, InstrumentQuery{Symbol: " ", Exchange: models.NSE})
	assert.True(t, apperrors.Is(err, apperrors.ErrInstrumentNotFound))
}

type lookupFunc func(ctx context.Context, q InstrumentQuery) (*models.Instrument, error)

func (f lookupFunc) Lookup(ctx context.Context, q InstrumentQuery) (*models.Instrument, error) {
	return f(ctx, q)
}

func TestInstrumentChain_FallsThrough(t *testing.T) {
	down := lookupFunc(func(ctx context.Context, q InstrumentQuery) (*models.Instrument, error) {
		return nil, errors.New("instrument master unavailable")
	})
	chain := InstrumentChain{down, NewStaticInstruments(map[string]int{"NFO:NIFTY": 75})}

	inst, err := chain.Lookup(context.Background(), InstrumentQuery{Symbol: "NIFTY", Exchange: models.NFO, Product: models.ProductFutures})
	require.NoError(t, err)
	assert.Equal(t, 75, inst.LotSize)

	_, err = chain.Lookup(context.Background(), InstrumentQuery{Symbol: "FINNIFTY", Exchange: models.NFO, Product: models.ProductFutures})
	assert.True(t, apperrors.Is(err, apperrors.ErrInstrumentNotFound))

	_, err = InstrumentChain{}.Lookup(context.Background(), InstrumentQuery{Symbol: "TCS", Exchange: models.NSE})
	assert.True(t, apperrors.Is(err, apperrors.ErrInstrumentNotFound))
}

func TestGuardedQuotes_OpensAndReportsUnavailable(t *testing.T) {
	calls := 0
	down := QuoteFunc(func(ctx context.Context, ex models.Exchange, sym string) (decimal.Decimal, error) {
		calls++
		return decimal.Zero, errors.New("connection refused")
	})
	cb := resilience.NewCircuitBreaker("quotes", resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	g := NewGuardedQuotes(down, cb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := g.LTP(ctx, models.NSE, "RELIANCE")
		assert.True(t, apperrors.Is(err, apperrors.ErrQuoteUnavailable))
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, resilience.CircuitOpen, g.Breaker().State())
}

func TestZerodhaClient_LTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"NSE:RELIANCE":{"instrument_token":738561,"last_price":2500.5}}}`))
	}))
	defer srv.Close()

	z := NewZerodhaClient(ZerodhaConfig{
		APIKey:      "key",
		AccessToken: "token",
		BaseURI:     srv.URL,
		TokenPath:   t.TempDir() + "/session.json",
	})
	p, err := z.LTP(context.Background(), models.NSE, "RELIANCE")
	require.NoError(t, err)
	assert.Equal(t, "2500.5", p.String())
}

func TestZerodhaClient_NotAuthenticated(t *testing.T) {
	z := NewZerodhaClient(ZerodhaConfig{
		APIKey:    "key",
		TokenPath: t.TempDir() + "/missing.json",
		Retry:     &utils.RetryConfig{MaxAttempts: 1},
	})
	assert.False(t, z.IsAuthenticated())

	_, err := z.LTP(context.Background(), models.NSE, "RELIANCE")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthenticated))

	_, err = z.Lookup(context.Background(), InstrumentQuery{Symbol: "RELIANCE", Exchange: models.NSE})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthenticated))
}

func TestMatchInstrument(t *testing.T) {
	expiry := time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC)
	raw := []kiteconnect.Instrument{
		{InstrumentToken: 1, Tradingsymbol: "RELIANCE", Name: "RELIANCE INDUSTRIES", Exchange: "NSE", LotSize: 1, InstrumentType: "EQ"},
		{InstrumentToken: 2, Tradingsymbol: "NIFTY24DECFUT", Name: "NIFTY", Exchange: "NFO", LotSize: 25, InstrumentType: "FUT", Expiry: kitemodels.Time{Time: expiry}},
		{InstrumentToken: 3, Tradingsymbol: "NIFTY24DEC24000CE", Name: "NIFTY", Exchange: "NFO", LotSize: 25, InstrumentType: "CE", StrikePrice: 24000, Expiry: kitemodels.Time{Time: expiry}},
		{InstrumentToken: 4, Tradingsymbol: "NIFTY24DEC24000PE", Name: "NIFTY", Exchange: "NFO", LotSize: 25, InstrumentType: "PE", StrikePrice: 24000, Expiry: kitemodels.Time{Time: expiry}},
	}
	byName := indexInstruments(raw)

	inst, ok := matchInstrument(byName, InstrumentQuery{Symbol: "reliance", Product: models.ProductCash})
	require.True(t, ok)
	assert.Equal(t, uint32(1), inst.Token)

	inst, ok = matchInstrument(byName, InstrumentQuery{Symbol: "NIFTY", Product: models.ProductFutures, Expiry: &expiry})
	require.True(t, ok)
	assert.Equal(t, uint32(2), inst.Token)
	assert.Equal(t, 25, inst.LotSize)

	strike := decimal.NewFromInt(24000)
	inst, ok = matchInstrument(byName, InstrumentQuery{Symbol: "NIFTY", Product: models.ProductOptions, Expiry: &expiry, Strike: &strike, OptionType: "pe"})
	require.True(t, ok)
	assert.Equal(t, uint32(4), inst.Token)

	other := decimal.NewFromInt(25000)
	_, ok = matchInstrument(byName, InstrumentQuery{Symbol: "NIFTY", Product: models.ProductOptions, Expiry: &expiry, Strike: &other, OptionType: "CE"})
	assert.False(t, ok)

	inst, ok = matchInstrument(byName, InstrumentQuery{Symbol: "NIFTY24DEC24000CE", Product: models.ProductOptions})
	require.True(t, ok)
	assert.Equal(t, uint32(3), inst.Token)
}
