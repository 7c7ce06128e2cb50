// Package repository persists swap records to SQLite, giving the nursery
// and musig signer a durable store they can recover from after a
// restart. It never mutates status itself; callers own the status DAG.
package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/klingon-exchange/swapcore/internal/nursery"
)

// Repository is the SQLite-backed SwapRepository.
type Repository struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config configures where the repository's database file lives.
type Config struct {
	DataDir string
}

// Open opens (creating if needed) the swap database under cfg.DataDir.
func Open(cfg Config) (*Repository, error) {
	dataDir := expandPath(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("repository: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "swaps.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("repository: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: ping database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	r := &Repository{db: db, dbPath: dbPath}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: init schema: %w", err)
	}
	return r, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submarine_swaps (
		id TEXT PRIMARY KEY,
		pair TEXT NOT NULL,
		order_side TEXT NOT NULL,
		version TEXT NOT NULL,
		status TEXT NOT NULL,
		fee INTEGER NOT NULL,
		preimage_hash TEXT NOT NULL UNIQUE,
		preimage TEXT,
		invoice TEXT NOT NULL UNIQUE,
		invoice_amount INTEGER NOT NULL,
		expected_amount INTEGER NOT NULL,
		accept_zero_conf INTEGER NOT NULL DEFAULT 0,
		lockup_address TEXT NOT NULL,
		redeem_script TEXT NOT NULL,
		key_index INTEGER NOT NULL,
		refund_public_key TEXT NOT NULL,
		timeout_block_height INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submarine_status ON submarine_swaps(status);

	CREATE TABLE IF NOT EXISTS reverse_swaps (
		id TEXT PRIMARY KEY,
		pair TEXT NOT NULL,
		order_side TEXT NOT NULL,
		version TEXT NOT NULL,
		status TEXT NOT NULL,
		fee INTEGER NOT NULL,
		preimage_hash TEXT NOT NULL UNIQUE,
		preimage TEXT,
		invoice TEXT NOT NULL,
		onchain_amount INTEGER NOT NULL,
		miner_fee INTEGER NOT NULL,
		claim_public_key TEXT NOT NULL,
		lockup_address TEXT NOT NULL,
		redeem_script TEXT NOT NULL,
		key_index INTEGER NOT NULL,
		transaction_id TEXT,
		timeout_block_height INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reverse_status ON reverse_swaps(status);

	CREATE TABLE IF NOT EXISTS chain_swap_legs (
		trade_id TEXT NOT NULL,
		leg TEXT NOT NULL CHECK (leg IN ('sending', 'receiving')),
		pair TEXT NOT NULL,
		order_side TEXT NOT NULL,
		version TEXT NOT NULL,
		status TEXT NOT NULL,
		fee INTEGER NOT NULL,
		preimage_hash TEXT NOT NULL,
		preimage TEXT,
		symbol TEXT NOT NULL,
		accept_zero_conf INTEGER NOT NULL DEFAULT 0,
		lockup_address TEXT NOT NULL,
		expected_amount INTEGER NOT NULL,
		redeem_script TEXT NOT NULL,
		key_index INTEGER NOT NULL,
		counterparty_public_key TEXT NOT NULL,
		timeout_block_height INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (trade_id, leg)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_chain_preimage_hash ON chain_swap_legs(preimage_hash, leg);
	CREATE INDEX IF NOT EXISTS idx_chain_status ON chain_swap_legs(status);
	`
	_, err := r.db.Exec(schema)
	return err
}

func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

// ErrNotFound is returned when a lookup by id/hash/invoice finds nothing.
var ErrNotFound = fmt.Errorf("repository: not found")

// nullableString converts a possibly-empty string into the right form for
// a nullable TEXT column.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func stringOrEmpty(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
