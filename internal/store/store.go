// Package store persists refreshed quotes into an embedded SQLite database
// and serves price history queries. The schema is managed by embedded
// golang-migrate migrations, so a fresh database file is ready after Open.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"pricefeed/internal/feed"
	"pricefeed/internal/shared"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	pingTimeout = 5 * time.Second
	busyTimeout = 5 * time.Second

	// SQLite allows one writer; keep the pool small.
	maxOpenConns = 4
	maxIdleConns = 1
)

// Point is one historical observation of a feed id.
type Point struct {
	FeedID    string    `json:"feedId"`
	Kind      feed.Kind `json:"kind"`
	Label     string    `json:"label"`
	Price     *float64  `json:"price"`
	UIPrice   string    `json:"uiPrice"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a SQLite-backed quote history. It implements feed.History.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, shared.Wrapf(err, "create directory %s", dir)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, shared.Wrap(err, "open sqlite database")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, shared.Wrap(err, "ping sqlite database")
	}

	if err := applyPragmas(ctx, db, path != ":memory:"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func applyPragmas(ctx context.Context, db *sql.DB, wal bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
	}
	if wal {
		// WAL is not supported for in-memory databases.
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return shared.Wrapf(err, "execute %s", pragma)
		}
	}
	return nil
}

// applyMigrations runs all embedded migrations. Safe to call repeatedly:
// an already migrated database is not an error.
func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return shared.Wrap(err, "load embedded migrations")
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return shared.Wrap(err, "create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return shared.Wrap(err, "create migrate instance")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return shared.Wrap(err, "apply migrations")
	}
	return nil
}

// InsertQuotes stores one refresh batch in a single transaction.
func (s *Store) InsertQuotes(ctx context.Context, quotes []feed.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return shared.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quotes (feed_id, kind, label, price, ui_price, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return shared.Wrap(err, "prepare insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, q := range quotes {
		var price sql.NullFloat64
		if q.Price != nil {
			price = sql.NullFloat64{Float64: *q.Price, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			q.ID, string(q.Kind), q.Label(), price, q.UIPrice, q.UpdatedAt.Unix(),
		); err != nil {
			return shared.Wrapf(err, "insert quote %s", q.ID)
		}
	}
	return tx.Commit()
}

// History returns up to limit observations of a feed id, newest first.
func (s *Store) History(ctx context.Context, feedID string, limit int) ([]Point, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT feed_id, kind, label, price, ui_price, updated_at
		 FROM quotes
		 WHERE feed_id = ?
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ?`, feedID, limit)
	if err != nil {
		return nil, shared.Wrap(err, "query history")
	}
	defer func() { _ = rows.Close() }()

	var points []Point
	for rows.Next() {
		var (
			p     Point
			kind  string
			price sql.NullFloat64
			unix  int64
		)
		if err := rows.Scan(&p.FeedID, &kind, &p.Label, &price, &p.UIPrice, &unix); err != nil {
			return nil, shared.Wrap(err, "scan history row")
		}
		p.Kind = feed.Kind(kind)
		if price.Valid {
			v := price.Float64
			p.Price = &v
		}
		p.UpdatedAt = time.Unix(unix, 0).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Wrap(err, "iterate history rows")
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no history for %s: %w", feedID, shared.ErrNotFound)
	}
	return points, nil
}
