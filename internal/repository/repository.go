package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/dsmovie/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrReferenced indicates a delete was blocked by rows that still reference the entity.
	ErrReferenced = errors.New("repository: entity is still referenced")
	// ErrConflict indicates a unique constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
)

// Postgres error codes the repositories translate.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Movies *MoviesRepository
	Scores *ScoresRepository
	Users  *UsersRepository

	pool *pgxpool.Pool
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	r := bind(pool)
	r.pool = pool
	return r
}

func bind(db DBTX) *Repository {
	return &Repository{
		Movies: &MoviesRepository{db: db},
		Scores: &ScoresRepository{db: db},
		Users:  &UsersRepository{db: db},
	}
}

// InTx runs fn with repositories bound to a single transaction. Everything fn
// writes is committed together, or not at all when fn returns an error.
func (r *Repository) InTx(ctx context.Context, fn func(tx *Repository) error) error {
	return store.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(bind(tx))
	})
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
