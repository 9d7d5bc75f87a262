package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scholarscout/scraper/models"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrDuplicate is returned when a record with the same source_url exists
var ErrDuplicate = errors.New("record with this source_url already exists")

// DB wraps the database connection and provides data access methods
type DB struct {
	conn   *sql.DB
	driver string
}

// Config contains database configuration
type Config struct {
	Driver string // postgres (default) or sqlite
	DSN    string // PostgreSQL connection string or SQLite file path
}

// New creates a new database connection and runs migrations
func New(config Config) (*DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	dsn := config.DSN
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		// one writer at a time avoids SQLITE_BUSY under concurrent ingestion
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	db := &DB{conn: conn, driver: driver}

	if err := Migrate(conn, driver); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// Driver returns the configured driver name
func (db *DB) Driver() string {
	return db.driver
}

// rebind converts ? placeholders to $N for postgres
func (db *DB) rebind(query string) string {
	return rebind(db.driver, query)
}

func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const recordColumns = "id, title, source_url, description, amount, deadline, platform, raw_text, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec         models.Record
		description sql.NullString
		amount      sql.NullString
		deadline    sql.NullString
		platform    string
		rawText     sql.NullString
		updatedAt   sql.NullTime
	)

	if err := row.Scan(&rec.ID, &rec.Title, &rec.SourceURL, &description, &amount, &deadline, &platform, &rawText, &rec.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}

	rec.Platform = models.Platform(platform)
	rec.Description = nullableString(description)
	rec.Amount = nullableString(amount)
	rec.Deadline = nullableString(deadline)
	rec.RawText = nullableString(rawText)
	if updatedAt.Valid {
		t := updatedAt.Time
		rec.UpdatedAt = &t
	}
	return &rec, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// GetByID retrieves a record by ID, nil if absent
func (db *DB) GetByID(ctx context.Context, id int64) (*models.Record, error) {
	query := db.rebind("SELECT " + recordColumns + " FROM scholarships WHERE id = ?")

	rec, err := scanRecord(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return rec, nil
}

// GetByURL retrieves a record by exact source_url, nil if absent
func (db *DB) GetByURL(ctx context.Context, sourceURL string) (*models.Record, error) {
	query := db.rebind("SELECT " + recordColumns + " FROM scholarships WHERE source_url = ?")

	rec, err := scanRecord(db.conn.QueryRowContext(ctx, query, sourceURL))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return rec, nil
}

// URLExists checks if a source_url already exists in the database
func (db *DB) URLExists(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	query := db.rebind("SELECT EXISTS(SELECT 1 FROM scholarships WHERE source_url = ?)")
	if err := db.conn.QueryRowContext(ctx, query, sourceURL).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check URL existence: %w", err)
	}
	return exists, nil
}

// InsertRecord inserts rec inside tx and returns its new ID. A conflicting
// source_url yields ErrDuplicate and leaves the existing row untouched.
func (db *DB) InsertRecord(ctx context.Context, tx *sql.Tx, rec *models.Record) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := db.rebind(`
		INSERT INTO scholarships (title, source_url, description, amount, deadline, platform, raw_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_url) DO NOTHING
		RETURNING id
	`)

	var id int64
	err := tx.QueryRowContext(ctx, query,
		rec.Title,
		rec.SourceURL,
		rec.Description,
		rec.Amount,
		rec.Deadline,
		string(rec.Platform),
		rec.RawText,
		rec.CreatedAt,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	rec.ID = id
	return id, nil
}

// CreateRecord inserts rec in its own transaction
func (db *DB) CreateRecord(ctx context.Context, rec *models.Record) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := db.InsertRecord(ctx, tx, rec)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// List returns records newest first
func (db *DB) List(ctx context.Context, limit, offset int) ([]*models.Record, error) {
	query := db.rebind("SELECT " + recordColumns + " FROM scholarships ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	return db.queryRecords(ctx, query, limit, offset)
}

// ListMissingAmount returns records whose amount is null. limit <= 0 returns all.
func (db *DB) ListMissingAmount(ctx context.Context, limit int) ([]*models.Record, error) {
	if limit <= 0 {
		return db.queryRecords(ctx, "SELECT "+recordColumns+" FROM scholarships WHERE amount IS NULL ORDER BY id")
	}
	query := db.rebind("SELECT " + recordColumns + " FROM scholarships WHERE amount IS NULL ORDER BY id LIMIT ?")
	return db.queryRecords(ctx, query, limit)
}

func (db *DB) queryRecords(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var results []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// Count returns the total number of records
func (db *DB) Count(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM scholarships").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// CountMissingAmount returns the number of records without an amount
func (db *DB) CountMissingAmount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM scholarships WHERE amount IS NULL").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// MinUsefulDescription is the description length below which enrichment
// may replace it
const MinUsefulDescription = 100

// ApplyEnrichment fills null columns from update. Populated amount and
// deadline values are never overwritten, even if another writer filled
// them after the caller read the record. Reports whether a column changed;
// an update COALESCE would discard leaves the row and updated_at untouched.
func (db *DB) ApplyEnrichment(ctx context.Context, id int64, update models.RecordUpdate) (bool, error) {
	if update.IsEmpty() {
		return false, nil
	}

	query := db.rebind(`
		UPDATE scholarships SET
			amount = COALESCE(amount, CAST(? AS TEXT)),
			deadline = COALESCE(deadline, CAST(? AS TEXT)),
			description = CASE
				WHEN CAST(? AS TEXT) IS NOT NULL AND (description IS NULL OR LENGTH(description) < ?)
				THEN CAST(? AS TEXT)
				ELSE description
			END,
			updated_at = ?
		WHERE id = ? AND (
			(amount IS NULL AND CAST(? AS TEXT) IS NOT NULL)
			OR (deadline IS NULL AND CAST(? AS TEXT) IS NOT NULL)
			OR (CAST(? AS TEXT) IS NOT NULL
				AND (description IS NULL OR LENGTH(description) < ?)
				AND (description IS NULL OR description <> CAST(? AS TEXT)))
		)
	`)

	result, err := db.conn.ExecContext(ctx, query,
		update.Amount,
		update.Deadline,
		update.Description,
		MinUsefulDescription,
		update.Description,
		time.Now().UTC(),
		id,
		update.Amount,
		update.Deadline,
		update.Description,
		MinUsefulDescription,
		update.Description,
	)
	if err != nil {
		return false, fmt.Errorf("failed to apply enrichment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// RecordURL is the id/source_url pair used for retroactive URL filtering
type RecordURL struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
}

// ListAllURLs returns every record's id, title and source_url
func (db *DB) ListAllURLs(ctx context.Context) ([]RecordURL, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT id, title, source_url FROM scholarships ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query URLs: %w", err)
	}
	defer rows.Close()

	var urls []RecordURL
	for rows.Next() {
		var u RecordURL
		if err := rows.Scan(&u.ID, &u.Title, &u.SourceURL); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return urls, nil
}

// DeleteByIDs deletes the given records in one transaction and returns how
// many rows were removed
func (db *DB) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind("DELETE FROM scholarships WHERE id = ?"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	var deleted int64
	for _, id := range ids {
		result, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete record %d: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get affected rows: %w", err)
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}
