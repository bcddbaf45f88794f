package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/platinummonkey/basekeeper/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// columnTypes holds the type names that differ between dialects
type columnTypes struct {
	Timestamp string
	JSON      string
	Money     string
	Now       string
}

func typesFor(d Dialect) columnTypes {
	if d == DialectSQLite {
		return columnTypes{Timestamp: "TIMESTAMP", JSON: "TEXT", Money: "REAL", Now: "CURRENT_TIMESTAMP"}
	}
	return columnTypes{Timestamp: "TIMESTAMPTZ", JSON: "JSONB", Money: "NUMERIC(12,2)", Now: "NOW()"}
}

func render(sqlText string, t columnTypes) string {
	return strings.NewReplacer(
		"{{timestamp}}", t.Timestamp,
		"{{json}}", t.JSON,
		"{{money}}", t.Money,
		"{{now}}", t.Now,
	).Replace(sqlText)
}

// GetMigrations returns the schema migrations for the dialect
func GetMigrations(d Dialect) []Migration {
	types := typesFor(d)
	migrations := []Migration{
		{
			Version:     1,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					tenant_id VARCHAR(255) PRIMARY KEY,
					plan VARCHAR(32) NOT NULL,
					status VARCHAR(32) NOT NULL,
					member_limit INTEGER NOT NULL DEFAULT 0 CHECK (member_limit >= 0),
					start_date {{timestamp}} NOT NULL,
					end_date {{timestamp}} NOT NULL,
					amount {{money}} NOT NULL DEFAULT 0,
					created_at {{timestamp}} NOT NULL DEFAULT {{now}},
					updated_at {{timestamp}} NOT NULL DEFAULT {{now}},
					CHECK (end_date >= start_date)
				);

				CREATE INDEX IF NOT EXISTS idx_subscriptions_end_date ON subscriptions(end_date);
			`,
		},
		{
			Version:     2,
			Description: "Create payments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS payments (
					id VARCHAR(64) PRIMARY KEY,
					tenant_id VARCHAR(255) NOT NULL,
					type VARCHAR(32) NOT NULL,
					status VARCHAR(32) NOT NULL,
					amount {{money}} NOT NULL DEFAULT 0,
					description TEXT NOT NULL DEFAULT '',
					payment_method VARCHAR(64) NOT NULL DEFAULT '',
					metadata {{json}} NOT NULL,
					created_at {{timestamp}} NOT NULL DEFAULT {{now}},
					updated_at {{timestamp}} NOT NULL DEFAULT {{now}},
					confirmed_at {{timestamp}},
					confirmed_by VARCHAR(255) NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_payments_tenant_id ON payments(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
				CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at);
			`,
		},
		{
			Version:     3,
			Description: "Create members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS members (
					id VARCHAR(64) PRIMARY KEY,
					tenant_id VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL DEFAULT '',
					status VARCHAR(32) NOT NULL,
					created_at {{timestamp}} NOT NULL DEFAULT {{now}}
				);

				CREATE INDEX IF NOT EXISTS idx_members_tenant_status ON members(tenant_id, status);
			`,
		},
	}

	for i := range migrations {
		migrations[i].SQL = render(migrations[i].SQL, types)
	}
	return migrations
}

// RunMigrations applies pending migrations in version order
func RunMigrations(ctx context.Context, db *sql.DB, d Dialect, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	// Create migration tracking table
	_, err := db.ExecContext(ctx, render(`
		CREATE TABLE IF NOT EXISTS basekeeper_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at {{timestamp}} NOT NULL DEFAULT {{now}}
		)
	`, typesFor(d)))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	rows, err := db.QueryContext(ctx, "SELECT version FROM basekeeper_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations(d) {
		if appliedVersions[migration.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO basekeeper_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Info("migration completed")
	}

	return nil
}
