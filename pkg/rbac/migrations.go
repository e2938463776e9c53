package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all identity and permission migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenant_management.tenants table",
			SQL: `
				CREATE SCHEMA IF NOT EXISTS tenant_management;

				CREATE TABLE IF NOT EXISTS tenant_management.tenants (
					tenant_id VARCHAR(255) PRIMARY KEY,
					tenant_name VARCHAR(255) NOT NULL,
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					settings JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					tenant_id VARCHAR(255) NOT NULL REFERENCES tenant_management.tenants(tenant_id) ON DELETE CASCADE,
					username VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					first_name VARCHAR(255),
					last_name VARCHAR(255),
					role VARCHAR(50) NOT NULL DEFAULT 'user',
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					last_login TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, username)
				);

				CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
			`,
		},
		{
			Version:     3,
			Description: "Create permissions and role_permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id VARCHAR(255) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					resource VARCHAR(255) NOT NULL,
					action VARCHAR(255) NOT NULL,
					description TEXT,
					UNIQUE(resource, action)
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role VARCHAR(50) NOT NULL,
					permission_id VARCHAR(255) NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role, permission_id)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create user_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_permissions (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					tenant_id VARCHAR(255) NOT NULL,
					permission_id VARCHAR(255) NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, tenant_id, permission_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_permissions_tenant ON user_permissions(tenant_id, user_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, one transaction each
func RunMigrations(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
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

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		log := logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Info("Migration completed")
	}

	return nil
}
