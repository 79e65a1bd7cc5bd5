package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/dsmovie/internal/domain"
)

// ScoresRepository provides helpers for per-user movie scores.
type ScoresRepository struct {
	db DBTX
}

// ScoreUpsertParams captures the payload required to upsert a score.
type ScoreUpsertParams struct {
	UserID  int64
	MovieID int64
	Value   float64
}

// Upsert inserts or replaces a user's score for a movie and reports whether
// the row was newly created.
func (r *ScoresRepository) Upsert(ctx context.Context, params ScoreUpsertParams) (domain.Score, bool, error) {
	const query = `
        INSERT INTO scores (user_id, movie_id, value)
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id, movie_id)
        DO UPDATE SET value = EXCLUDED.value, updated_at = now()
        RETURNING user_id, movie_id, value, created_at, updated_at, (xmax = 0) AS inserted
    `

	var score domain.Score
	var inserted bool
	err := r.db.QueryRow(ctx, query, params.UserID, params.MovieID, params.Value).Scan(
		&score.UserID,
		&score.MovieID,
		&score.Value,
		&score.CreatedAt,
		&score.UpdatedAt,
		&inserted,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.Score{}, false, ErrNotFound
		}
		return domain.Score{}, false, err
	}

	return score, inserted, nil
}

// Find retrieves the score a user gave a movie.
func (r *ScoresRepository) Find(ctx context.Context, userID, movieID int64) (domain.Score, error) {
	const query = `
        SELECT user_id, movie_id, value, created_at, updated_at
        FROM scores
        WHERE user_id = $1 AND movie_id = $2
    `
	score, err := scanScore(r.db.QueryRow(ctx, query, userID, movieID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Score{}, ErrNotFound
		}
		return domain.Score{}, err
	}
	return score, nil
}

func scanScore(row pgx.Row) (domain.Score, error) {
	var score domain.Score
	err := row.Scan(
		&score.UserID,
		&score.MovieID,
		&score.Value,
		&score.CreatedAt,
		&score.UpdatedAt,
	)
	return score, err
}
