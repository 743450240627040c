package bunx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"
)

// Backend names the database engine behind a DSN.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// BackendFor picks the engine from the DSN scheme. Anything that is not a
// postgres URL is treated as a SQLite path or file: URI.
func BackendFor(dsn string) Backend {
	for _, prefix := range []string{"postgres://", "postgresql://", "unix://"} {
		if strings.HasPrefix(dsn, prefix) {
			return BackendPostgres
		}
	}
	return BackendSQLite
}

// Options tunes the connection pool. The zero value is usable.
type Options struct {
	// MaxOpenConns applies to postgres only; SQLite always gets one writer.
	MaxOpenConns int
	// BusyTimeout lets the access CLI and a running gate share a SQLite file.
	BusyTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	return o
}

// Open connects to the policy database and checks it answers.
func Open(ctx context.Context, dsn string, opts Options) (*bun.DB, error) {
	opts = opts.withDefaults()

	var (
		sqldb   *sql.DB
		dialect schema.Dialect
		setup   []string
	)
	switch BackendFor(dsn) {
	case BackendPostgres:
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		sqldb.SetMaxOpenConns(opts.MaxOpenConns)
		sqldb.SetMaxIdleConns(opts.MaxOpenConns)
		dialect = pgdialect.New()
	default:
		var err error
		if sqldb, err = sql.Open("sqlite", dsn); err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
		}
		sqldb.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
		setup = sqlitePragmas(dsn, opts)
	}

	db := bun.NewDB(sqldb, dialect)
	for _, stmt := range setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", stmt, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", BackendFor(dsn), err)
	}
	return db, nil
}

func sqlitePragmas(dsn string, opts Options) []string {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
	}
	// WAL needs a real file.
	if !strings.Contains(dsn, ":memory:") && !strings.Contains(dsn, "mode=memory") {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	return pragmas
}

// Close is nil-safe.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
