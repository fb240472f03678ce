package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demo-trader/internal/broker"
	"demo-trader/internal/demo"
	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/metrics"
	"demo-trader/internal/models"
	"demo-trader/internal/store"
	"demo-trader/internal/stream"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *Error          `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *stream.Hub) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)

	hub := stream.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	hub.Start(ctx)

	m := metrics.New()
	cfg := demo.DefaultConfig()
	cfg.QuoteTimeout = 200 * time.Millisecond
	svc, err := demo.Open(context.Background(), st, cfg, demo.Deps{
		Quotes:      broker.NewQuoteBook(map[string]float64{"NSE:RELIANCE": 2500}),
		Instruments: broker.NewStaticInstruments(nil),
		Metrics:     m,
		Hub:         hub,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		hub.Stop()
		cancel()
		svc.Close()
	})
	return NewServer(svc, Options{Hub: hub, Metrics: m}), hub
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestAPI_PlaceOrderAndFunds(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/demo/orders", map[string]interface{}{
		"symbol": "RELIANCE", "exchange": "NSE", "action": "BUY", "order_type": "MARKET", "quantity": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, env.Success)

	var result models.OrderResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, models.OrderExecuted, result.Status)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec, env = do(t, s, http.MethodGet, "/api/demo/funds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var funds models.Funds
	require.NoError(t, json.Unmarshal(env.Data, &funds))
	assert.Equal(t, "750000", funds.Cash.String())

	rec, env = do(t, s, http.MethodGet, "/api/demo/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holdings []models.Holding
	require.NoError(t, json.Unmarshal(env.Data, &holdings))
	require.Len(t, holdings, 1)
	assert.Equal(t, 100, holdings[0].Quantity)
}

func TestAPI_ErrorEnvelope(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{
			name:   "insufficient funds",
			method: http.MethodPost,
			path:   "/api/demo/orders",
			body: map[string]interface{}{
				"symbol": "RELIANCE", "action": "BUY", "order_type": "LIMIT", "quantity": 1000, "price": 2500,
			},
			status: http.StatusUnprocessableEntity,
			code:   apperrors.KindInsufficientFunds,
		},
		{
			name:   "zero quantity",
			method: http.MethodPost,
			path:   "/api/demo/orders",
			body:   map[string]interface{}{"symbol": "RELIANCE", "action": "BUY", "order_type": "MARKET", "quantity": 0},
			status: http.StatusBadRequest,
			code:   apperrors.KindInvalidQuantity,
		},
		{
			name:   "unknown order",
			method: http.MethodPost,
			path:   "/api/demo/orders/DEMO_MISSING/cancel",
			status: http.StatusNotFound,
			code:   apperrors.KindOrderNotFound,
		},
		{
			name:   "unknown export table",
			method: http.MethodGet,
			path:   "/api/demo/export/positions",
			status: http.StatusBadRequest,
			code:   apperrors.KindValidation,
		},
		{
			name:   "bad ledger segment",
			method: http.MethodGet,
			path:   "/api/demo/ledger?segment=crypto",
			status: http.StatusBadRequest,
			code:   apperrors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestAPI_OrderLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/demo/orders", map[string]interface{}{
		"symbol": "TCS", "action": "BUY", "order_type": "LIMIT", "quantity": 2, "price": "3500",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var placed models.OrderResult
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	require.Equal(t, models.OrderPending, placed.Status)

	rec, env = do(t, s, http.MethodPost, "/api/demo/orders/"+placed.OrderID+"/execute", map[string]interface{}{"price": "3400"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order models.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, models.OrderExecuted, order.Status)
	require.NotNil(t, order.ExecutionPrice)
	assert.Equal(t, "3400", order.ExecutionPrice.String())

	rec, env = do(t, s, http.MethodPost, "/api/demo/orders/"+placed.OrderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.KindInvalidState, env.Error.Code)

	rec, env = do(t, s, http.MethodGet, "/api/demo/ledger?type=ORDER_EXECUTED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.LedgerEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, placed.OrderID+"_EXEC", entries[0].TransactionID)
	assert.Equal(t, "-6800", entries[0].Amount.String())
}

func TestAPI_FundsAdjustAndTransfer(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, http.MethodPost, "/api/demo/funds/adjust", map[string]interface{}{
		"segment": "cash", "kind": "CREDIT", "amount": "5000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := do(t, s, http.MethodPost, "/api/demo/funds/transfer", map[string]interface{}{
		"from": "cash", "to": "fno", "amount": "105000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var funds models.Funds
	require.NoError(t, json.Unmarshal(env.Data, &funds))
	assert.Equal(t, "900000", funds.Cash.String())
	assert.Equal(t, "105000", funds.FNO.String())

	rec, env = do(t, s, http.MethodPost, "/api/demo/funds/reconcile", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var report demo.ReconcileReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.True(t, report.Balanced())
}

func TestAPI_ExportAndWatch(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/api/demo/export/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "order_id,symbol,action,quantity,price,total_amount,status,timestamp"))

	rec, env := do(t, s, http.MethodPost, "/api/demo/watch", map[string]string{"symbol": "sbin"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var items []models.WatchItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	var symbols []string
	for _, it := range items {
		symbols = append(symbols, it.Symbol)
	}
	assert.Contains(t, symbols, "SBIN")

	rec, env = do(t, s, http.MethodDelete, "/api/demo/watch?symbol=SBIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":true}`, string(env.Data))
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "demo_trader_segment_balance")
}

func TestAPI_RequestIDIsEchoed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/demo/summary", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
}

func TestAPI_StreamDeliversEvents(t *testing.T) {
	s, hub := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/demo/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait until the handler has subscribed.
	require.Eventually(t, func() bool { return hub.GetTotalSubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec, _ := do(t, s, http.MethodPost, "/api/demo/orders", map[string]interface{}{
		"symbol": "RELIANCE", "action": "BUY", "order_type": "MARKET", "quantity": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := map[stream.EventType]bool{}
	for !seen[stream.EventOrderExecuted] {
		var ev stream.Event
		require.NoError(t, conn.ReadJSON(&ev))
		seen[ev.Type] = true
	}
	assert.True(t, seen[stream.EventOrderPlaced])
}

func TestStreamTopic(t *testing.T) {
	assert.Equal(t, stream.TopicAll, streamTopic(""))
	assert.Equal(t, "cash", streamTopic("CASH"))
	assert.Equal(t, "RELIANCE", streamTopic("reliance"))
}
