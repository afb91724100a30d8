package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Chart of accounts and transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					company_id TEXT NOT NULL,
					code TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('ASSET', 'LIABILITY', 'EQUITY', 'REVENUE', 'EXPENSE')),
					parent_id INTEGER REFERENCES accounts(id),
					description TEXT NOT NULL DEFAULT '',
					is_group INTEGER NOT NULL DEFAULT 0,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					UNIQUE (company_id, code)
				)`,
				`CREATE INDEX idx_accounts_company_type ON accounts(company_id, type)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					company_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					normalized_description TEXT NOT NULL,
					counterparty TEXT NOT NULL DEFAULT '',
					amount TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'UNCLASSIFIED'
						CHECK (status IN ('UNCLASSIFIED', 'SUGGESTED', 'CONFIRMED', 'CORRECTED')),
					suggested_account_id INTEGER REFERENCES accounts(id),
					confidence REAL,
					prediction_reason TEXT,
					prediction_source TEXT,
					alternates TEXT,
					classified_at DATETIME,
					account_id INTEGER REFERENCES accounts(id),
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_transactions_company_status ON transactions(company_id, status)`,
				`CREATE INDEX idx_transactions_company_normalized ON transactions(company_id, normalized_description)`,
				`CREATE INDEX idx_transactions_company_confidence ON transactions(company_id, confidence)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Transaction embeddings",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE transactions ADD COLUMN embedding BLOB`,
				`ALTER TABLE transactions ADD COLUMN embedding_stale INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE transactions ADD COLUMN embedded_at DATETIME`,
				`CREATE INDEX idx_transactions_embedding_pending
					ON transactions(company_id, created_at)
					WHERE embedding IS NULL OR embedding_stale = 1`,
			)
		},
	},
	{
		Version:     3,
		Description: "Feedback ledger, prediction metrics and retraining events",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS feedback (
					id TEXT PRIMARY KEY,
					company_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL REFERENCES transactions(id),
					predicted_account_id INTEGER NOT NULL REFERENCES accounts(id),
					correct_account_id INTEGER NOT NULL REFERENCES accounts(id),
					confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
					kind TEXT NOT NULL CHECK (kind IN ('CORRECTION', 'CONFIRMATION')),
					reason TEXT NOT NULL DEFAULT '',
					user_id TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					CHECK ((kind = 'CONFIRMATION') = (predicted_account_id = correct_account_id))
				)`,
				`CREATE INDEX idx_feedback_transaction ON feedback(transaction_id)`,
				`CREATE INDEX idx_feedback_company_created ON feedback(company_id, created_at)`,
				`CREATE TRIGGER feedback_no_update BEFORE UPDATE ON feedback
					BEGIN SELECT RAISE(ABORT, 'feedback entries are immutable'); END`,
				`CREATE TRIGGER feedback_no_delete BEFORE DELETE ON feedback
					BEGIN SELECT RAISE(ABORT, 'feedback entries are immutable'); END`,

				`CREATE TABLE IF NOT EXISTS prediction_metrics (
					company_id TEXT NOT NULL,
					date TEXT NOT NULL,
					total INTEGER NOT NULL DEFAULT 0,
					correct INTEGER NOT NULL DEFAULT 0,
					incorrect INTEGER NOT NULL DEFAULT 0,
					high_conf_correct INTEGER NOT NULL DEFAULT 0,
					high_conf_incorrect INTEGER NOT NULL DEFAULT 0,
					low_conf_correct INTEGER NOT NULL DEFAULT 0,
					low_conf_incorrect INTEGER NOT NULL DEFAULT 0,
					confidence_sum REAL NOT NULL DEFAULT 0,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (company_id, date),
					CHECK (total = correct + incorrect)
				)`,

				`CREATE TABLE IF NOT EXISTS retraining_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					company_id TEXT NOT NULL,
					retrained_at DATETIME NOT NULL,
					note TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_retraining_company ON retraining_events(company_id, retrained_at)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate applies all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the current schema version of the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
