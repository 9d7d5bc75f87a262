package db

import (
	"database/sql"
	"fmt"
	"slices"
)

// Migration is one versioned schema change
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version int
	Name    string
	Applied bool
}

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`

// migrator applies one driver's migration list, ordered by version
type migrator struct {
	conn       *sql.DB
	driver     string
	migrations []Migration
}

func newMigrator(conn *sql.DB, driver string) (*migrator, error) {
	var list []Migration
	switch driver {
	case DriverPostgres:
		list = postgresMigrations
	case DriverSQLite:
		list = sqliteMigrations
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}

	sorted := slices.Clone(list)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })

	if _, err := conn.Exec(migrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return &migrator{conn: conn, driver: driver, migrations: sorted}, nil
}

func (m *migrator) version() (int, error) {
	var v int
	if err := m.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}

// apply runs one statement and its bookkeeping query in a transaction
func (m *migrator) apply(schemaSQL, bookkeeping string, args ...any) error {
	tx, err := m.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec(rebind(m.driver, bookkeeping), args...); err != nil {
		return fmt.Errorf("failed to update schema_migrations: %w", err)
	}
	return tx.Commit()
}

// Migrate runs all pending migrations for driver
func Migrate(conn *sql.DB, driver string) error {
	m, err := newMigrator(conn, driver)
	if err != nil {
		return err
	}
	current, err := m.version()
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(mig.Up, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mig.Version, mig.Name); err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration
func Rollback(conn *sql.DB, driver string) error {
	m, err := newMigrator(conn, driver)
	if err != nil {
		return err
	}
	current, err := m.version()
	if err != nil {
		return err
	}
	if current == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	i := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == current })
	if i < 0 {
		return fmt.Errorf("migration %d not found", current)
	}
	return m.apply(m.migrations[i].Down, "DELETE FROM schema_migrations WHERE version = ?", current)
}

// GetMigrationStatus lists every known migration in version order
func GetMigrationStatus(conn *sql.DB, driver string) ([]MigrationStatus, error) {
	m, err := newMigrator(conn, driver)
	if err != nil {
		return nil, err
	}
	current, err := m.version()
	if err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		status = append(status, MigrationStatus{
			Version: mig.Version,
			Name:    mig.Name,
			Applied: mig.Version <= current,
		})
	}
	return status, nil
}
