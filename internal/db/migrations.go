package db

import (
	"database/sql"
	"fmt"
)

// RunMigrations executes all database migrations
func RunMigrations(db *DB) error {
	var tableExists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if !tableExists {
		// First time initialization
		if err := initializeSchema(db); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	}

	var currentVersion int
	err = db.QueryRow(`
		SELECT version FROM schema_version
		ORDER BY applied_at DESC LIMIT 1
	`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Currently only version 1 exists
	if currentVersion < 1 {
		return fmt.Errorf("invalid schema version: %d", currentVersion)
	}

	return nil
}

// initializeSchema creates all tables for a new database
func initializeSchema(db *DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := execSQL(tx, schemaVersionTable); err != nil {
		return err
	}

	if err := execSQL(tx, usersTable); err != nil {
		return err
	}
	if err := execSQL(tx, usersIndexes); err != nil {
		return err
	}

	if err := execSQL(tx, `INSERT INTO schema_version (version) VALUES (1)`); err != nil {
		return err
	}

	return tx.Commit()
}

// execSQL executes a SQL statement
func execSQL(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

// Schema definitions
const (
	schemaVersionTable = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	usersTable = `
CREATE TABLE users (
    id             TEXT PRIMARY KEY,
    email          TEXT NOT NULL,
    password_hash  TEXT,
    totp_secret    TEXT,
    mfa_enabled    INTEGER NOT NULL DEFAULT 0,
    login_attempts INTEGER NOT NULL DEFAULT 0,
    last_attempt   DATETIME,
    last_login     DATETIME,
    oidc_provider  TEXT,
    oidc_subject   TEXT,
    auth_method    TEXT NOT NULL DEFAULT 'local',
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	usersIndexes = `
CREATE UNIQUE INDEX idx_users_email ON users(LOWER(email));
CREATE INDEX idx_users_oidc_subject ON users(oidc_subject)`
)
