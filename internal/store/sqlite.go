package store

import (
	"database/sql"
	"fmt"
	"time"

	"papertrade/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	venue         TEXT NOT NULL,
	direction     TEXT NOT NULL,
	"offset"      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	price         REAL NOT NULL,
	volume        INTEGER NOT NULL,
	traded_volume INTEGER NOT NULL,
	status        TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id, created_at);

CREATE TABLE IF NOT EXISTS trades (
	id         TEXT PRIMARY KEY,
	order_id   TEXT NOT NULL,
	account_id TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	venue      TEXT NOT NULL,
	direction  TEXT NOT NULL,
	"offset"   TEXT NOT NULL,
	price      REAL NOT NULL,
	volume     INTEGER NOT NULL,
	commission REAL NOT NULL,
	profit     REAL NOT NULL,
	ts         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id, ts);
`

// SQLiteStore is the execution audit trail: every order and trade the
// engine produces is written here. It satisfies the engine's Recorder
// interface.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and applies
// the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveOrder inserts or updates an order. Orders are re-saved whenever their
// status changes, so upsert semantics apply.
func (s *SQLiteStore) SaveOrder(o *domain.Order) error {
	_, err := s.db.Exec(`
		INSERT INTO orders (id, account_id, symbol, venue, direction, "offset", kind, price, volume, traded_volume, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			traded_volume = excluded.traded_volume,
			status        = excluded.status,
			updated_at    = excluded.updated_at`,
		o.ID, o.AccountID, o.Symbol, string(o.Venue), string(o.Direction), string(o.Offset), string(o.Kind),
		o.Price, o.Volume, o.TradedVolume, string(o.Status), o.CreatedAt.UnixMilli(), o.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving order %s: %w", o.ID, err)
	}
	return nil
}

// SaveTrade inserts a trade. Trades are immutable; a duplicate ID is an
// error.
func (s *SQLiteStore) SaveTrade(t *domain.Trade) error {
	_, err := s.db.Exec(`
		INSERT INTO trades (id, order_id, account_id, symbol, venue, direction, "offset", price, volume, commission, profit, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrderID, t.AccountID, t.Symbol, string(t.Venue), string(t.Direction), string(t.Offset),
		t.Price, t.Volume, t.Commission, t.Profit, t.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving trade %s: %w", t.ID, err)
	}
	return nil
}

// Order retrieves a single order by ID.
func (s *SQLiteStore) Order(id string) (*domain.Order, error) {
	row := s.db.QueryRow(`
		SELECT id, account_id, symbol, venue, direction, "offset", kind, price, volume, traded_volume, status, created_at, updated_at
		FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", id, err)
	}
	return o, nil
}

// Orders returns all orders for an account, oldest first.
func (s *SQLiteStore) Orders(accountID string) ([]domain.Order, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, symbol, venue, direction, "offset", kind, price, volume, traded_volume, status, created_at, updated_at
		FROM orders WHERE account_id = ? ORDER BY created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Trades returns all trades for an account in execution order.
func (s *SQLiteStore) Trades(accountID string) ([]domain.Trade, error) {
	rows, err := s.db.Query(`
		SELECT id, order_id, account_id, symbol, venue, direction, "offset", price, volume, commission, profit, ts
		FROM trades WHERE account_id = ? ORDER BY ts`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing trades for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var venue, direction, offset string
		var ts int64
		if err := rows.Scan(&t.ID, &t.OrderID, &t.AccountID, &t.Symbol, &venue, &direction, &offset,
			&t.Price, &t.Volume, &t.Commission, &t.Profit, &ts); err != nil {
			return nil, err
		}
		t.Venue = domain.Venue(venue)
		t.Direction = domain.Direction(direction)
		t.Offset = domain.Offset(offset)
		t.Timestamp = time.UnixMilli(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*domain.Order, error) {
	var o domain.Order
	var venue, direction, offset, kind, status string
	var createdAt, updatedAt int64
	if err := r.Scan(&o.ID, &o.AccountID, &o.Symbol, &venue, &direction, &offset, &kind,
		&o.Price, &o.Volume, &o.TradedVolume, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.Venue = domain.Venue(venue)
	o.Direction = domain.Direction(direction)
	o.Offset = domain.Offset(offset)
	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = time.UnixMilli(createdAt)
	o.UpdatedAt = time.UnixMilli(updatedAt)
	return &o, nil
}
