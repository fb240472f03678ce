// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", apperrors.ErrDatabaseError, dbPath, err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %w", apperrors.ErrDatabaseError, err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
// Money columns are TEXT so decimal values round-trip exactly.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Simulated orders
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		product TEXT NOT NULL,
		action TEXT NOT NULL,
		order_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at DATETIME NOT NULL,
		executed_at DATETIME,
		execution_price TEXT,
		expiry DATETIME,
		strike TEXT,
		option_type TEXT NOT NULL DEFAULT '',
		remarks TEXT NOT NULL DEFAULT ''
	);

	-- Append-only funds ledger
	CREATE TABLE IF NOT EXISTS ledger (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id TEXT NOT NULL UNIQUE,
		transaction_type TEXT NOT NULL,
		order_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL DEFAULT '',
		exchange TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 0,
		price TEXT NOT NULL DEFAULT '0',
		amount TEXT NOT NULL,
		segment TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'COMPLETED',
		timestamp DATETIME NOT NULL,
		remarks TEXT NOT NULL DEFAULT ''
	);

	-- Segment balances
	CREATE TABLE IF NOT EXISTS funds (
		segment TEXT PRIMARY KEY,
		balance TEXT NOT NULL DEFAULT '0',
		seed TEXT NOT NULL DEFAULT '0',
		updated_at DATETIME NOT NULL
	);

	-- Aggregated positions
	CREATE TABLE IF NOT EXISTS holdings (
		exchange TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		average_price TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (exchange, symbol)
	);

	-- Market watch list
	CREATE TABLE IF NOT EXISTS market_watch (
		exchange TEXT NOT NULL,
		symbol TEXT NOT NULL,
		added_at DATETIME NOT NULL,
		PRIMARY KEY (exchange, symbol)
	);

	-- One-time initialization markers
	CREATE TABLE IF NOT EXISTS system_flags (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at);
	CREATE INDEX IF NOT EXISTS idx_ledger_segment ON ledger(segment);
	CREATE INDEX IF NOT EXISTS idx_ledger_symbol ON ledger(symbol);
	CREATE INDEX IF NOT EXISTS idx_ledger_order ON ledger(order_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Every segment has a row from the start.
	now := time.Now().UTC()
	for _, seg := range models.Segments() {
		if _, err := s.db.Exec(`
			INSERT OR IGNORE INTO funds (segment, balance, seed, updated_at) VALUES (?, '0', '0', ?)
		`, string(seg), now); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================================================
// Transactions
// ============================================================================

// Tx is a unit of work over the store. Every method runs inside the
// enclosing database transaction.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn in a read-write transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", apperrors.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %w", apperrors.ErrDatabaseError, err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back, giving fn a
// consistent snapshot across several reads.
func (s *SQLiteStore) View(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", apperrors.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	return fn(&Tx{tx: tx})
}

// ============================================================================
// Orders Methods
// ============================================================================

const orderColumns = `order_id, symbol, exchange, product, action, order_type, quantity, price, status,
	created_at, executed_at, execution_price, expiry, strike, option_type, remarks`

// InsertOrder saves a new order.
func (t *Tx) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.Symbol, string(o.Exchange), string(o.Product), string(o.Action), string(o.Type), o.Quantity,
		o.Price.String(), string(o.Status), o.CreatedAt.UTC(), nullTime(o.ExecutedAt), nullDecimal(o.ExecutionPrice),
		nullTime(o.Expiry), nullDecimal(o.Strike), o.OptionType, o.Remarks)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID.
func (t *Tx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrapf(apperrors.ErrOrderNotFound, "order %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// UpdateOrder persists the lifecycle fields of an order. Only a pending
// order can be updated.
func (t *Tx) UpdateOrder(ctx context.Context, o *models.Order) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, executed_at = ?, execution_price = ?, remarks = ?
		WHERE order_id = ? AND status = ?
	`, string(o.Status), nullTime(o.ExecutedAt), nullDecimal(o.ExecutionPrice), o.Remarks, o.ID, string(models.OrderPending))
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n == 0 {
		return apperrors.Wrapf(apperrors.ErrInvalidState, "order %s is not pending", o.ID)
	}
	return nil
}

// ListOrders retrieves orders, newest first.
func (t *Tx) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE 1=1"
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Exchange != "" {
		query += " AND exchange = ?"
		args = append(args, string(filter.Exchange))
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, string(filter.Action))
	}
	if !filter.From.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, filter.To.UTC())
	}

	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

// CountOrders returns the number of orders with the given status.
func (t *Tx) CountOrders(ctx context.Context, status models.OrderStatus) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE status = ?`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(r rowScanner) (*models.Order, error) {
	var o models.Order
	var exchange, product, action, orderType, status string
	var executedAt, expiry sql.NullTime
	var execPrice, strike decimal.NullDecimal

	if err := r.Scan(&o.ID, &o.Symbol, &exchange, &product, &action, &orderType, &o.Quantity, &o.Price, &status,
		&o.CreatedAt, &executedAt, &execPrice, &expiry, &strike, &o.OptionType, &o.Remarks); err != nil {
		return nil, err
	}

	o.Exchange = models.Exchange(exchange)
	o.Product = models.ProductType(product)
	o.Action = models.Action(action)
	o.Type = models.OrderType(orderType)
	o.Status = models.OrderStatus(status)
	if executedAt.Valid {
		ts := executedAt.Time
		o.ExecutedAt = &ts
	}
	if execPrice.Valid {
		p := execPrice.Decimal
		o.ExecutionPrice = &p
	}
	if expiry.Valid {
		ts := expiry.Time
		o.Expiry = &ts
	}
	if strike.Valid {
		k := strike.Decimal
		o.Strike = &k
	}
	return &o, nil
}

// ============================================================================
// Ledger Methods
// ============================================================================

const ledgerColumns = `seq, transaction_id, transaction_type, order_id, symbol, exchange, action, quantity,
	price, amount, segment, status, timestamp, remarks`

// AppendLedger inserts a ledger entry and sets its sequence number.
// Entries are never updated or deleted.
func (t *Tx) AppendLedger(ctx context.Context, e *models.LedgerEntry) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger (transaction_id, transaction_type, order_id, symbol, exchange, action, quantity,
			price, amount, segment, status, timestamp, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.TransactionID, string(e.Type), e.OrderID, e.Symbol, string(e.Exchange), string(e.Action), e.Quantity,
		e.Price.String(), e.Amount.String(), string(e.Segment), e.Status, e.Timestamp.UTC(), e.Remarks)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ledger sequence: %w", err)
	}
	e.Seq = seq
	return nil
}

// ListLedger retrieves ledger entries in chronological order. With a limit,
// the most recent entries are returned, still oldest first.
func (t *Tx) ListLedger(ctx context.Context, filter LedgerFilter) ([]models.LedgerEntry, error) {
	query := "SELECT " + ledgerColumns + " FROM ledger WHERE 1=1"
	args := []interface{}{}

	if filter.Segment != "" {
		query += " AND segment = ?"
		args = append(args, string(filter.Segment))
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Type != "" {
		query += " AND transaction_type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.OrderID != "" {
		query += " AND order_id = ?"
		args = append(args, filter.OrderID)
	}
	if !filter.From.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.To.UTC())
	}

	if filter.Limit > 0 {
		query += " ORDER BY seq DESC LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " ORDER BY seq ASC"
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var txnType, exchange, action, segment string
		if err := rows.Scan(&e.Seq, &e.TransactionID, &txnType, &e.OrderID, &e.Symbol, &exchange, &action, &e.Quantity,
			&e.Price, &e.Amount, &segment, &e.Status, &e.Timestamp, &e.Remarks); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Type = models.TransactionType(txnType)
		e.Exchange = models.Exchange(exchange)
		e.Action = models.Action(action)
		e.Segment = models.Segment(segment)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger: %w", err)
	}

	if filter.Limit > 0 {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return entries, nil
}

// LedgerTotals returns the signed sum of ledger amounts per segment.
// Amounts are summed as decimals rather than in SQL to stay exact.
func (t *Tx) LedgerTotals(ctx context.Context) (map[models.Segment]decimal.Decimal, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT segment, amount FROM ledger`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[models.Segment]decimal.Decimal)
	for _, seg := range models.Segments() {
		totals[seg] = decimal.Zero
	}
	for rows.Next() {
		var segment string
		var amount decimal.Decimal
		if err := rows.Scan(&segment, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan ledger amount: %w", err)
		}
		seg := models.Segment(segment)
		totals[seg] = totals[seg].Add(amount)
	}
	return totals, rows.Err()
}

// ============================================================================
// Funds Methods
// ============================================================================

// GetFunds returns the current balance of every segment.
func (t *Tx) GetFunds(ctx context.Context) (models.Funds, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT segment, balance, seed, updated_at FROM funds`)
	if err != nil {
		return models.Funds{}, fmt.Errorf("failed to query funds: %w", err)
	}
	defer rows.Close()

	funds := models.Funds{
		Cash:   decimal.Zero,
		Equity: decimal.Zero,
		FNO:    decimal.Zero,
		Seed:   decimal.Zero,
	}
	for rows.Next() {
		var segment string
		var balance, seed decimal.Decimal
		var updatedAt time.Time
		if err := rows.Scan(&segment, &balance, &seed, &updatedAt); err != nil {
			return models.Funds{}, fmt.Errorf("failed to scan funds: %w", err)
		}
		funds = funds.WithBalance(models.Segment(segment), balance)
		funds.Seed = funds.Seed.Add(seed)
		if updatedAt.After(funds.UpdatedAt) {
			funds.UpdatedAt = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return models.Funds{}, fmt.Errorf("error iterating funds: %w", err)
	}
	funds.Total = funds.Cash.Add(funds.Equity).Add(funds.FNO)
	return funds, nil
}

// GetSeeds returns the seed amount of every segment.
func (t *Tx) GetSeeds(ctx context.Context) (map[models.Segment]decimal.Decimal, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT segment, seed FROM funds`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seeds: %w", err)
	}
	defer rows.Close()

	seeds := make(map[models.Segment]decimal.Decimal)
	for rows.Next() {
		var segment string
		var seed decimal.Decimal
		if err := rows.Scan(&segment, &seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds[models.Segment(segment)] = seed
	}
	return seeds, rows.Err()
}

// SetBalance overwrites the balance of one segment.
func (t *Tx) SetBalance(ctx context.Context, seg models.Segment, balance decimal.Decimal, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE funds SET balance = ?, updated_at = ? WHERE segment = ?
	`, balance.String(), at.UTC(), string(seg))
	if err != nil {
		return fmt.Errorf("failed to set %s balance: %w", seg, err)
	}
	return nil
}

// SetSeed records the seed amount of one segment.
func (t *Tx) SetSeed(ctx context.Context, seg models.Segment, seed decimal.Decimal, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE funds SET seed = ?, updated_at = ? WHERE segment = ?
	`, seed.String(), at.UTC(), string(seg))
	if err != nil {
		return fmt.Errorf("failed to set %s seed: %w", seg, err)
	}
	return nil
}

// ============================================================================
// Holdings Methods
// ============================================================================

// GetHolding returns the holding for a symbol, or nil when none exists.
func (t *Tx) GetHolding(ctx context.Context, exchange models.Exchange, symbol string) (*models.Holding, error) {
	var h models.Holding
	var ex string
	err := t.tx.QueryRowContext(ctx, `
		SELECT exchange, symbol, quantity, average_price, updated_at FROM holdings WHERE exchange = ? AND symbol = ?
	`, string(exchange), symbol).Scan(&ex, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	h.Exchange = models.Exchange(ex)
	return &h, nil
}

// SaveHolding inserts or replaces a holding. A zero quantity removes it.
func (t *Tx) SaveHolding(ctx context.Context, h models.Holding) error {
	if h.Quantity == 0 {
		return t.DeleteHolding(ctx, h.Exchange, h.Symbol)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO holdings (exchange, symbol, quantity, average_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(h.Exchange), h.Symbol, h.Quantity, h.AveragePrice.String(), h.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save holding: %w", err)
	}
	return nil
}

// DeleteHolding removes a holding.
func (t *Tx) DeleteHolding(ctx context.Context, exchange models.Exchange, symbol string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM holdings WHERE exchange = ? AND symbol = ?`, string(exchange), symbol)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

// ListHoldings returns all holdings ordered by symbol.
func (t *Tx) ListHoldings(ctx context.Context) ([]models.Holding, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT exchange, symbol, quantity, average_price, updated_at FROM holdings ORDER BY symbol, exchange
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		var ex string
		if err := rows.Scan(&ex, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.Exchange = models.Exchange(ex)
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// ReplaceHoldings swaps the whole holdings table for the given set.
func (t *Tx) ReplaceHoldings(ctx context.Context, holdings []models.Holding) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}
	for _, h := range holdings {
		if err := t.SaveHolding(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Market Watch Methods
// ============================================================================

// AddToWatch adds a symbol to the market watch list. Adding an existing
// symbol is a no-op.
func (t *Tx) AddToWatch(ctx context.Context, exchange models.Exchange, symbol string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO market_watch (exchange, symbol, added_at) VALUES (?, ?, ?)
	`, string(exchange), symbol, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to add to market watch: %w", err)
	}
	return nil
}

// RemoveFromWatch removes a symbol and reports whether it was present.
func (t *Tx) RemoveFromWatch(ctx context.Context, exchange models.Exchange, symbol string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM market_watch WHERE exchange = ? AND symbol = ?
	`, string(exchange), symbol)
	if err != nil {
		return false, fmt.Errorf("failed to remove from market watch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove from market watch: %w", err)
	}
	return n > 0, nil
}

// ListWatch returns the market watch list in insertion order.
func (t *Tx) ListWatch(ctx context.Context) ([]models.WatchItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT exchange, symbol, added_at FROM market_watch ORDER BY added_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query market watch: %w", err)
	}
	defer rows.Close()

	var items []models.WatchItem
	for rows.Next() {
		var w models.WatchItem
		var ex string
		if err := rows.Scan(&ex, &w.Symbol, &w.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan market watch: %w", err)
		}
		w.Exchange = models.Exchange(ex)
		items = append(items, w)
	}
	return items, rows.Err()
}

// ============================================================================
// System Flags
// ============================================================================

// GetFlag returns the value of a system flag and whether it is set.
func (t *Tx) GetFlag(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := t.tx.QueryRowContext(ctx, `SELECT value FROM system_flags WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get flag %s: %w", name, err)
	}
	return value, true, nil
}

// SetFlag sets a system flag.
func (t *Tx) SetFlag(ctx context.Context, name, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO system_flags (name, value, updated_at) VALUES (?, ?, ?)
	`, name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set flag %s: %w", name, err)
	}
	return nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}
