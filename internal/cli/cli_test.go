package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demo-trader/internal/config"
	apperrors "demo-trader/internal/errors"
)

const testConfig = `[demo]
seed_cash = 500000.0

[demo.quotes]
RELIANCE = 2500.0
`

func newConfigDir(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(testConfig+extra), 0644))
	return dir
}

// runCLI executes one command in JSON mode against the config in dir.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	app := &App{}
	root := NewRootCmd(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", dir, "--json"}, args...))
	err := root.Execute()
	require.NoError(t, app.Close())
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, args...)
	require.NoError(t, err, "%v: %s", args, out)
	return out
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

type jsonObject = map[string]interface{}

func TestCLI_VersionAndConfig(t *testing.T) {
	dir := newConfigDir(t, "")

	v := decode[map[string]string](t, mustRun(t, dir, "version"))
	assert.Equal(t, Version, v["version"])

	valid := decode[map[string]bool](t, mustRun(t, dir, "config", "validate"))
	assert.True(t, valid["valid"])

	path := decode[map[string]string](t, mustRun(t, dir, "config", "path"))
	assert.Equal(t, dir, path["path"])

	assert.Contains(t, mustRun(t, dir, "config", "show"), "Demo")
	assert.FileExists(t, filepath.Join(dir, "credentials.toml"))
}

func TestMaskedConfig_LeavesOriginalIntact(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Credentials.Zerodha.APIKey = "abcdefghijklmnop"
	cfg.Credentials.Zerodha.AccessToken = "tok123"

	masked := maskedConfig(cfg)
	assert.Equal(t, "abcd********mnop", masked.Credentials.Zerodha.APIKey)
	assert.Equal(t, "to****", masked.Credentials.Zerodha.AccessToken)
	assert.Equal(t, "abcdefghijklmnop", cfg.Credentials.Zerodha.APIKey)
}

func TestCLI_TradingFlow(t *testing.T) {
	dir := newConfigDir(t, "")

	res := decode[jsonObject](t, mustRun(t, dir, "buy", "RELIANCE", "10"))
	assert.Equal(t, "EXECUTED", res["status"])
	assert.Equal(t, "2500", res["execution_price"])
	assert.Equal(t, "quote", res["price_source"])

	funds := decode[jsonObject](t, mustRun(t, dir, "funds"))
	assert.Equal(t, "475000", funds["cash_balance"])

	res = decode[jsonObject](t, mustRun(t, dir, "buy", "TCS", "2", "--price", "3500"))
	assert.Equal(t, "PENDING", res["status"])
	id := res["order_id"].(string)

	pending := decode[[]jsonObject](t, mustRun(t, dir, "orders", "--status", "pending"))
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0]["order_id"])

	order := decode[jsonObject](t, mustRun(t, dir, "order", "execute", id, "--price", "3400"))
	assert.Equal(t, "EXECUTED", order["status"])
	assert.Equal(t, "3400", order["execution_price"])

	holdings := decode[[]jsonObject](t, mustRun(t, dir, "holdings"))
	require.Len(t, holdings, 2)
	assert.Equal(t, "RELIANCE", holdings[0]["symbol"])
	assert.Equal(t, "TCS", holdings[1]["symbol"])

	ledger := decode[[]jsonObject](t, mustRun(t, dir, "ledger", "--segment", "cash"))
	require.Len(t, ledger, 2)
	assert.Equal(t, "-25000", ledger[0]["total_amount"])
	assert.Equal(t, "-6800", ledger[1]["total_amount"])

	export := decode[map[string]string](t, mustRun(t, dir, "export", "orders"))
	assert.Contains(t, export["csv"], "order_id,symbol,action")
	assert.Contains(t, export["csv"], id)

	out := filepath.Join(t.TempDir(), "ledger.csv")
	mustRun(t, dir, "export", "ledger", "--out", out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "_EXEC")

	report := decode[jsonObject](t, mustRun(t, dir, "funds", "reconcile"))
	assert.Equal(t, false, report["repaired"])

	summary := decode[jsonObject](t, mustRun(t, dir, "summary"))
	assert.EqualValues(t, 2, summary["holdings_count"])
	assert.EqualValues(t, 0, summary["pending_orders"])
}

func TestCLI_FundsCommands(t *testing.T) {
	dir := newConfigDir(t, "")

	res := decode[jsonObject](t, mustRun(t, dir, "funds", "add", "5,000", "--remarks", "bonus"))
	entry := res["entry"].(jsonObject)
	assert.Equal(t, "MANUAL_CREDIT", entry["transaction_type"])
	assert.Equal(t, "bonus", entry["remarks"])
	assert.Equal(t, "505000", res["funds"].(jsonObject)["cash_balance"])

	_, err := runCLI(t, dir, "funds", "withdraw", "10000", "--segment", "equity")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientFunds, apperrors.Kind(err))

	funds := decode[jsonObject](t, mustRun(t, dir, "funds", "transfer", "cash", "fno", "100000"))
	assert.Equal(t, "405000", funds["cash_balance"])
	assert.Equal(t, "100000", funds["fno_balance"])

	res = decode[jsonObject](t, mustRun(t, dir, "funds", "adjust", "--segment", "fno", "--", "-2500"))
	assert.Equal(t, "97500", res["funds"].(jsonObject)["fno_balance"])
}

func TestCLI_ErrorKinds(t *testing.T) {
	dir := newConfigDir(t, "")

	tests := []struct {
		name string
		args []string
		kind string
	}{
		{"zero quantity", []string{"buy", "RELIANCE", "0"}, apperrors.KindInvalidQuantity},
		{"non-numeric quantity", []string{"buy", "RELIANCE", "ten"}, apperrors.KindValidation},
		{"bad symbol", []string{"buy", "BAD SYMBOL", "1"}, apperrors.KindValidation},
		{"sell without holdings", []string{"sell", "RELIANCE", "5", "--price", "2600"}, apperrors.KindInsufficientFunds},
		{"no quote for market order", []string{"buy", "INFY", "1"}, apperrors.KindQuoteUnavailable},
		{"unknown order", []string{"order", "cancel", "DEMO_20240101000000_deadbeef"}, apperrors.KindOrderNotFound},
		{"unknown export table", []string{"export", "positions"}, apperrors.KindValidation},
		{"transfer to same segment", []string{"funds", "transfer", "cash", "cash", "10"}, apperrors.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, dir, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.Kind(err), err.Error())
		})
	}
}

func TestCLI_CancelTwiceIsInvalidState(t *testing.T) {
	dir := newConfigDir(t, "")

	res := decode[jsonObject](t, mustRun(t, dir, "buy", "RELIANCE", "1", "--price", "2400"))
	id := res["order_id"].(string)

	order := decode[jsonObject](t, mustRun(t, dir, "order", "cancel", id))
	assert.Equal(t, "CANCELLED", order["status"])

	_, err := runCLI(t, dir, "order", "cancel", id)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.Kind(err))
}

func TestCLI_WatchCommands(t *testing.T) {
	dir := newConfigDir(t, "")

	items := decode[[]jsonObject](t, mustRun(t, dir, "watch", "add", "sbin"))
	var symbols []string
	for _, it := range items {
		symbols = append(symbols, it["symbol"].(string))
	}
	assert.Contains(t, symbols, "SBIN")

	removed := decode[map[string]bool](t, mustRun(t, dir, "watch", "remove", "SBIN"))
	assert.True(t, removed["removed"])
	removed = decode[map[string]bool](t, mustRun(t, dir, "watch", "rm", "SBIN"))
	assert.False(t, removed["removed"])
}

func TestCLI_ReadOnlyBlocksWrites(t *testing.T) {
	dir := newConfigDir(t, "\n[security]\nread_only_mode = true\n")

	_, err := runCLI(t, dir, "buy", "RELIANCE", "1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindReadOnly, apperrors.Kind(err))

	funds := decode[jsonObject](t, mustRun(t, dir, "funds"))
	assert.Equal(t, "500000", funds["cash_balance"])
}

func TestReportError_JSONEnvelope(t *testing.T) {
	root := NewRootCmd(&App{})
	var out bytes.Buffer
	root.SetOut(&out)
	require.NoError(t, root.PersistentFlags().Set("json", "true"))

	reportError(root, apperrors.ErrOrderNotFound)

	env := decode[jsonObject](t, out.String())
	assert.Equal(t, false, env["success"])
	e := env["error"].(jsonObject)
	assert.Equal(t, apperrors.KindOrderNotFound, e["code"])
	assert.Equal(t, "order not found", e["message"])
}

func TestParseAmount(t *testing.T) {
	for in, want := range map[string]string{
		"5000":      "5000",
		"1,00,000":  "100000",
		"₹2,500.50": "2500.5",
		" -2500 ":   "-2500",
	} {
		got, err := parseAmount("amount", in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}

	_, err := parseAmount("amount", "lots")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.Kind(err))
}
