package repository

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/dsmovie/internal/domain"
)

// Read-back helpers the tests use to check stored aggregates against score rows.

// ListByMovie returns every score recorded for a movie ordered by user.
func (r *ScoresRepository) ListByMovie(ctx context.Context, movieID int64) ([]domain.Score, error) {
	const query = `
        SELECT user_id, movie_id, value, created_at, updated_at
        FROM scores
        WHERE movie_id = $1
        ORDER BY user_id
    `
	rows, err := r.db.Query(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]domain.Score, 0)
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// Aggregate recomputes the sum and count of a movie's scores from the score rows.
func (r *ScoresRepository) Aggregate(ctx context.Context, movieID int64) (domain.Aggregate, error) {
	const query = `
        SELECT COALESCE(SUM(value), 0)::float8 AS sum,
               COUNT(*)::int AS count
        FROM scores
        WHERE movie_id = $1
    `

	var agg domain.Aggregate
	if err := r.db.QueryRow(ctx, query, movieID).Scan(&agg.Sum, &agg.Count); err != nil {
		return domain.Aggregate{}, fmt.Errorf("aggregate scores: %w", err)
	}
	return agg, nil
}
