/*
Package sqlstore provides the SQL-backed implementation of ledger.Store and
inventory.Store.

PURPOSE:
  Persists the ledger (transactions + balances) and the inventory (batches,
  items, operational costs) in one database, so a composite operation is a
  single database transaction. SQLite is the default; PostgreSQL uses the
  same queries through sqlx.Rebind.

INTERFACES IMPLEMENTED:
  ledger.Store:    WithTx, balances and transactions
  inventory.Store: WithInventoryTx, batches/items/costs

APPEND-ONLY ENFORCEMENT:
  - ledger_transactions rows are never UPDATEd except for reference_id
    (attached once after batch creation) and deleted_at (corrections)
  - amounts are never rewritten
  - inventory rows are soft-deleted, never DELETEd

LOCKING:
  A balance row is locked by LockBalance before it is read for a check:
  - postgres: INSERT ... ON CONFLICT DO NOTHING, then SELECT ... FOR UPDATE
  - sqlite:   transactions start with BEGIN IMMEDIATE (_txlock=immediate),
              which takes the database write lock up front
  The ledger engine additionally serializes each user in-process.

AMOUNTS:
  Stored as TEXT on sqlite (exact decimal strings) and NUMERIC on postgres.
  Sums are computed in Go with shopspring/decimal, never in SQL.

MIGRATION:
  Versioned schema under migrations/<driver>, embedded and applied by
  golang-migrate on Open.

USAGE:
  store, err := sqlstore.Open(sqlstore.DriverSQLite, "./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store)
  coordinator := inventory.NewCoordinator(engine, store)

SEE ALSO:
  - ledger/store.go: ledger interfaces
  - inventory/store.go: inventory interfaces
  - ledger/store/memory.go: in-memory ledger store for tests
*/
package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/resale-ledger/inventory"
	"github.com/warp/resale-ledger/ledger"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store implements ledger.Store and inventory.Store.
type Store struct {
	queries
	db  *sqlx.DB
	dsn string
}

var (
	_ ledger.Store    = (*Store)(nil)
	_ inventory.Store = (*Store)(nil)
	_ inventory.Tx    = (*tx)(nil)
)

// Open connects to the database and applies pending migrations.
// For sqlite, dsn is a file path or ":memory:".
func Open(driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == DriverSQLite {
		// One writer at a time; ":memory:" databases also exist per connection.
		db.SetMaxOpenConns(1)
	}

	store := &Store{queries: queries{q: db, dialect: d}, db: db, dsn: dsn}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// New wraps an already-open, already-migrated handle.
func New(db *sqlx.DB) (*Store, error) {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	return &Store{queries: queries{q: db, dialect: d}, db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// WithTx executes fn within a database transaction.
// If fn returns error, the transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	return s.withTx(ctx, func(t *tx) error { return fn(t) })
}

// WithInventoryTx is WithTx with the inventory tables in scope.
func (s *Store) WithInventoryTx(ctx context.Context, fn func(inventory.Tx) error) error {
	return s.withTx(ctx, func(t *tx) error { return fn(t) })
}

func (s *Store) withTx(ctx context.Context, fn func(*tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{queries: queries{q: sqlTx, dialect: s.dialect}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// tx carries every write. Reads inside a unit of work go through the same
// *sqlx.Tx so they see uncommitted writes and never wait on the pool.
type tx struct {
	queries
}

// =============================================================================
// DIALECT
// =============================================================================

type dialect struct {
	name string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
		return dialect{name: driver}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (d dialect) dsn(dsn string) string {
	if d.name != DriverSQLite || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
}

// forUpdate is appended to a SELECT that must lock its row until commit.
func (d dialect) forUpdate() string {
	if d.name == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// pagination renders LIMIT/OFFSET. limit 0 means no limit.
func (d dialect) pagination(limit, offset int) (string, []any) {
	switch {
	case limit > 0:
		return " LIMIT ? OFFSET ?", []any{limit, offset}
	case offset > 0 && d.name == DriverSQLite:
		return " LIMIT -1 OFFSET ?", []any{offset}
	case offset > 0:
		return " OFFSET ?", []any{offset}
	default:
		return "", nil
	}
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

type queries struct {
	q       sqlx.ExtContext
	dialect dialect
}

func (qs queries) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, qs.q, dest, qs.q.Rebind(query), args...)
}

func (qs queries) list(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, qs.q, dest, qs.q.Rebind(query), args...)
}

func (qs queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := qs.q.ExecContext(ctx, qs.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (qs queries) namedExec(ctx context.Context, query string, arg any) (int64, error) {
	res, err := sqlx.NamedExecContext(ctx, qs.q, query, arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	return " WHERE " + strings.Join(w.conds, " AND ")
}
