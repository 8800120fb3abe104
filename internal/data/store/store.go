package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// ErrNotFound is returned by conditional updates and lookups when the
// addressed row does not exist.
var ErrNotFound = errors.New("record not found")

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps whatsmeow's sqlstore and adds the session scoped tables.
// A Store returned by WithTx shares everything but routes queries through
// the transaction.
type Store struct {
	db        *sql.DB
	q         Querier
	driver    string
	container *sqlstore.Container
	log       waLog.Logger
}

// New opens the database, upgrades the whatsmeow schema and creates the
// gateway tables.
func New(ctx context.Context, driver, dsn string, log waLog.Logger) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite && strings.Contains(dsn, "mode=memory") {
		// every connection to a private in-memory database is a new database
		db.SetMaxOpenConns(1)
	}

	container := sqlstore.NewWithDB(db, containerDialect(driver), log.Sub("whatsmeow"))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to upgrade whatsmeow schema: %w", err)
	}

	s := &Store{
		db:        db,
		q:         db,
		driver:    driver,
		container: container,
		log:       log.Sub("Store"),
	}

	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create gateway tables: %w", err)
	}

	return s, nil
}

// sqliteDSN makes every transaction take the write lock on BEGIN. A
// deferred transaction that read first gets SQLITE_BUSY at once when it
// later writes, without waiting out the busy timeout.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_txlock=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_txlock=immediate"
	if !strings.Contains(dsn, "_busy_timeout=") {
		dsn += "&_busy_timeout=5000"
	}
	return dsn
}

func containerDialect(driver string) string {
	if driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Container returns the whatsmeow sqlstore container.
func (s *Store) Container() *sqlstore.Container {
	return s.container
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// WithTx runs fn inside a transaction. fn receives a Store bound to the
// transaction; sub-stores built from it take part in the same commit.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	bound := *s
	bound.q = tx
	if err := fn(&bound); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warnf("Rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Exec executes a query without returning rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, query, args...)
}

// Page selects a window of rows ordered by pk_id.
type Page struct {
	Cursor int64
	Limit  int
}

// DefaultPageLimit is used when a Page carries no limit.
const DefaultPageLimit = 25

func (p Page) limit() int {
	if p.Limit <= 0 {
		return DefaultPageLimit
	}
	return p.Limit
}

// NextCursor returns the cursor for the page after rows, or nil when the
// page was short.
func NextCursor(pkIDs []int64, p Page) *int64 {
	if len(pkIDs) == 0 || len(pkIDs) != p.limit() {
		return nil
	}
	last := pkIDs[len(pkIDs)-1]
	return &last
}
