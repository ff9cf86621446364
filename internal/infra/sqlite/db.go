// Package sqlite persists the credit ledger in a pure-Go SQLite database.
//
// The pool holds a single connection and every write transaction begins
// IMMEDIATE, so ledger mutations are serialized: a balance check and the
// debit that depends on it can never interleave with another writer.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the ledger database.
type DB struct {
	db *sql.DB
}

// Open creates (or opens) dir/credits.db and applies the schema.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, "credits.db")
	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_txlock=immediate"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) migrate() error {
	for _, stmt := range LedgerMigrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\n%s", err, stmt)
		}
	}
	return nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// LedgerMigrations returns the schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
// Winc amounts are TEXT so arbitrarily large integers survive round trips.
func LedgerMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS balances (
			address    TEXT PRIMARY KEY,
			winc       TEXT NOT NULL DEFAULT '0',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		// Audit log of every balance change
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   TEXT NOT NULL,
			tx_type     TEXT NOT NULL,
			entry_type  TEXT NOT NULL,
			address     TEXT NOT NULL,
			amount      TEXT NOT NULL,
			reference   TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			balance     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_address ON ledger_entries(address, id)`,

		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id        TEXT PRIMARY KEY,
			paying_address     TEXT NOT NULL,
			approved_address   TEXT NOT NULL,
			approved_winc      TEXT NOT NULL,
			used_winc          TEXT NOT NULL DEFAULT '0',
			creation_date      TEXT NOT NULL,
			expiration_date    TEXT,
			scope_data_item_id TEXT NOT NULL DEFAULT '',
			revoked_date       TEXT,
			consumed           INTEGER NOT NULL DEFAULT 0,
			returned           INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_pair ON approvals(paying_address, approved_address)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_approved ON approvals(approved_address)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_expiry ON approvals(returned, expiration_date)`,

		// A data item has at most one live (pending or finalized) reservation;
		// refunded rows stay for audit and do not block a retry.
		`CREATE TABLE IF NOT EXISTS reservations (
			reservation_id TEXT PRIMARY KEY,
			data_item_id   TEXT NOT NULL,
			signer_address TEXT NOT NULL,
			byte_count     INTEGER NOT NULL,
			reserved_winc  TEXT NOT NULL,
			network_winc   TEXT NOT NULL,
			signer_winc    TEXT NOT NULL DEFAULT '0',
			adjustments    TEXT NOT NULL DEFAULT '[]',
			payers         TEXT NOT NULL DEFAULT '[]',
			status         TEXT NOT NULL,
			created_at     TEXT NOT NULL,
			resolved_at    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_signer ON reservations(signer_address, status)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_live ON reservations(data_item_id) WHERE status != 'refunded'`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_item ON reservations(data_item_id)`,

		`CREATE TABLE IF NOT EXISTS crypto_payments (
			transaction_id    TEXT PRIMARY KEY,
			token             TEXT NOT NULL,
			sender_address    TEXT NOT NULL,
			recipient_address TEXT NOT NULL,
			quantity          TEXT NOT NULL,
			winc              TEXT NOT NULL,
			status            TEXT NOT NULL,
			block_height      INTEGER NOT NULL DEFAULT 0,
			failed_reason     TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL,
			resolved_at       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crypto_status ON crypto_payments(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_crypto_sender ON crypto_payments(sender_address, status)`,

		`CREATE TABLE IF NOT EXISTS payment_receipts (
			receipt_id     TEXT PRIMARY KEY,
			address        TEXT NOT NULL,
			winc           TEXT NOT NULL,
			payment_amount INTEGER NOT NULL,
			currency       TEXT NOT NULL,
			promo_codes    TEXT NOT NULL DEFAULT '[]',
			created_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_address ON payment_receipts(address)`,
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// inTx runs fn in one write transaction, rolling back on any error.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
