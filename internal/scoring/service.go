// Package scoring records per-user movie scores and keeps each movie's
// average and rater count consistent with them.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/logging"
	"github.com/Clark-Hu/dsmovie/internal/repository"
)

// Submission is one caller's score for one movie.
type Submission struct {
	MovieID int64
	Value   float64
}

// UserFinder resolves an authenticated principal to a stored user.
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (domain.User, error)
}

// MovieStore reads and writes the aggregate columns of a movie.
// GetForUpdate must hold the movie exclusively until the unit of work ends.
type MovieStore interface {
	GetForUpdate(ctx context.Context, id int64) (domain.Movie, error)
	SaveAggregate(ctx context.Context, id int64, agg domain.Aggregate) (domain.Movie, error)
}

// ScoreStore reads and writes individual score rows.
type ScoreStore interface {
	Find(ctx context.Context, userID, movieID int64) (domain.Score, error)
	Upsert(ctx context.Context, params repository.ScoreUpsertParams) (domain.Score, bool, error)
}

// Stores is the pair of stores visible inside one unit of work.
type Stores struct {
	Movies MovieStore
	Scores ScoreStore
}

// UnitOfWork runs fn so that its writes become visible together or not at all.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(stores Stores) error) error
}

// Service is the score aggregation engine.
type Service struct {
	users  UserFinder
	uow    UnitOfWork
	bounds Range
	logger *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithRange overrides the accepted score range.
func WithRange(r Range) Option {
	return func(s *Service) { s.bounds = r }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.Component(logger, "scoring") }
}

// New constructs the engine.
func New(users UserFinder, uow UnitOfWork, opts ...Option) *Service {
	s := &Service{
		users:  users,
		uow:    uow,
		bounds: DefaultRange,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Range returns the accepted score range.
func (s *Service) Range() Range {
	return s.bounds
}

// SubmitScore records principal's score for a movie and returns the movie with
// its updated aggregate. A repeat submission by the same user replaces their
// earlier value instead of adding a second one.
//
// Failures are reported as ErrUnauthenticated, ErrInvalidScore, ErrUnknownUser,
// ErrMovieNotFound or ErrStorage. On any failure nothing is persisted.
func (s *Service) SubmitScore(ctx context.Context, principal string, sub Submission) (domain.Movie, error) {
	if principal == "" {
		return domain.Movie{}, ErrUnauthenticated
	}
	if !s.bounds.Contains(sub.Value) {
		return domain.Movie{}, fmt.Errorf("%w: %v is outside [%v, %v]", ErrInvalidScore, sub.Value, s.bounds.Min, s.bounds.Max)
	}

	user, err := s.users.GetByUsername(ctx, principal)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Movie{}, ErrUnknownUser
		}
		return domain.Movie{}, fmt.Errorf("%w: resolve user: %w", ErrStorage, err)
	}

	var movie domain.Movie
	err = s.uow.Do(ctx, func(stores Stores) error {
		current, err := stores.Movies.GetForUpdate(ctx, sub.MovieID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrMovieNotFound
			}
			return fmt.Errorf("%w: load movie %d: %w", ErrStorage, sub.MovieID, err)
		}

		var previous *float64
		existing, err := stores.Scores.Find(ctx, user.ID, current.ID)
		switch {
		case err == nil:
			previous = &existing.Value
		case errors.Is(err, repository.ErrNotFound):
		default:
			return fmt.Errorf("%w: load score: %w", ErrStorage, err)
		}

		agg := Apply(current.Aggregate(), previous, sub.Value)

		_, _, err = stores.Scores.Upsert(ctx, repository.ScoreUpsertParams{
			UserID:  user.ID,
			MovieID: current.ID,
			Value:   sub.Value,
		})
		if err != nil {
			return fmt.Errorf("%w: save score: %w", ErrStorage, err)
		}

		movie, err = stores.Movies.SaveAggregate(ctx, current.ID, agg)
		if err != nil {
			return fmt.Errorf("%w: save movie %d: %w", ErrStorage, current.ID, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrMovieNotFound) && !errors.Is(err, ErrStorage) {
			err = fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if errors.Is(err, ErrStorage) {
			s.logger.Error("score submission failed",
				zap.String("user", principal),
				zap.Int64("movie_id", sub.MovieID),
				zap.Error(err),
			)
		}
		return domain.Movie{}, err
	}

	s.logger.Debug("score recorded",
		zap.Int64("user_id", user.ID),
		zap.Int64("movie_id", movie.ID),
		zap.Float64("value", sub.Value),
		zap.Int("count", movie.Count),
		zap.Float64("score", movie.Score),
	)
	return movie, nil
}
