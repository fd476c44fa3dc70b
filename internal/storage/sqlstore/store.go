package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"customer_reviews/internal/domain"
)

// DBTX is the session a Repo runs against: *sql.DB or *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an already opened and migrated database.
func New(db *sql.DB, d Dialect) *Store { return &Store{db: db, dialect: d} }

// Open connects, pings, and applies the embedded migrations for d.
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(string(d), d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	if d == SQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	if err := Migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("dialect", string(d)).Msg("database ready")
	return New(db, d), nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Session returns a Repo bound to the connection pool. Each statement commits on its own.
func (s *Store) Session() domain.Repository { return &Repo{q: s.db} }

// InTx runs fn against a Repo bound to a single transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(domain.Repository) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&Repo{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ domain.Store = (*Store)(nil)
