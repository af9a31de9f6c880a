package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the snapshot in a key-value table, one row per
// collection.
type SQLiteStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens the database, migrates its schema and returns the store.
func NewSQLiteStore(dataSourceName string, logger *logrus.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if err := RunMigrations(dataSourceName); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// A single connection keeps writers serialised.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	logger.WithField("path", dataSourceName).Info("Database connection established and schema migrated")
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Load reads every collection. Rows that fail to decode come back empty.
func (s *SQLiteStore) Load() (models.Snapshot, error) {
	rows, err := s.db.Query(`SELECT key, value FROM ledger_kv`)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to load ledger: %w", err)
	}
	defer rows.Close()

	raw := make(map[string][]byte, len(Keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Snapshot{}, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		raw[key] = []byte(value)
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, fmt.Errorf("error during rows iteration: %w", err)
	}

	return Decode(raw, s.logger), nil
}

// Save writes all collections in one transaction.
func (s *SQLiteStore) Save(snapshot models.Snapshot) error {
	values, err := Encode(snapshot)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, key := range Keys {
		_, err := tx.Exec(
			`INSERT INTO ledger_kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(values[key]), now,
		)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
