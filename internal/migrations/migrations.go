package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"medinv/m/internal/database"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL DEFAULT '',
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS inventory (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            lot TEXT NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity >= 0),
            expiry_date TEXT NOT NULL,
            status TEXT NOT NULL,
            warehouse TEXT NOT NULL,
            code TEXT NOT NULL DEFAULT '',
            origin TEXT NOT NULL DEFAULT '',
            created_by TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_name ON inventory(name);`,
	`CREATE TABLE IF NOT EXISTS activities (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            type TEXT NOT NULL,
            action TEXT NOT NULL,
            medication TEXT,
            quantity INTEGER,
            warehouse TEXT,
            details TEXT,
            changes TEXT,
            created_at TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at);`,
}

// Timestamps stay textual in both dialects so rows scan into the same structs.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL DEFAULT '',
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS inventory (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            lot TEXT NOT NULL,
            quantity BIGINT NOT NULL CHECK (quantity >= 0),
            expiry_date TEXT NOT NULL,
            status TEXT NOT NULL,
            warehouse TEXT NOT NULL,
            code TEXT NOT NULL DEFAULT '',
            origin TEXT NOT NULL DEFAULT '',
            created_by TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_name ON inventory(name);`,
	`CREATE TABLE IF NOT EXISTS activities (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            type TEXT NOT NULL,
            action TEXT NOT NULL,
            medication TEXT,
            quantity BIGINT,
            warehouse TEXT,
            details TEXT,
            changes TEXT,
            created_at TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at);`,
}

// Run creates the users, inventory and activities tables for db's dialect.
func Run(db *sqlx.DB) error {
	schema := sqliteSchema
	if database.IsPostgres(db) {
		schema = postgresSchema
	}
	for i, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
