package scoring

import (
	"context"

	"github.com/Clark-Hu/dsmovie/internal/repository"
)

// PostgresUnitOfWork runs each unit of work in one database transaction.
// GetForUpdate takes a row lock, so concurrent submissions for the same movie
// queue behind each other.
type PostgresUnitOfWork struct {
	repo *repository.Repository
}

// NewPostgresUnitOfWork binds the engine to the given repositories.
func NewPostgresUnitOfWork(repo *repository.Repository) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{repo: repo}
}

// Do implements UnitOfWork.
func (u *PostgresUnitOfWork) Do(ctx context.Context, fn func(stores Stores) error) error {
	return u.repo.InTx(ctx, func(tx *repository.Repository) error {
		return fn(Stores{Movies: tx.Movies, Scores: tx.Scores})
	})
}
