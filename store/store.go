// Package store provides the sqlite persistence layer.
// All database operations go through this package.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"hedgegrid/logger"
)

// Store is the unified storage entry point
type Store struct {
	db *sql.DB

	// Sub-stores (lazy initialization)
	trade *TradeStore

	mu sync.Mutex
}

// New opens (or creates) the sqlite database at dbPath
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes; one connection avoids lock churn
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize tables: %w", err)
	}

	logger.Infof("✅ database ready at %s", dbPath)
	return s, nil
}

func (s *Store) initTables() error {
	if err := s.Trade().initTables(); err != nil {
		return fmt.Errorf("trade tables: %w", err)
	}
	return nil
}

// Trade gets the trade record storage
func (s *Store) Trade() *TradeStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trade == nil {
		s.trade = &TradeStore{db: s.db}
	}
	return s.trade
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
