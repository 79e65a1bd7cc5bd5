// Package catalog implements movie listing and administration. It never
// writes a movie's score fields; those belong to the scoring engine.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Clark-Hu/dsmovie/internal/cache"
	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/logging"
	"github.com/Clark-Hu/dsmovie/internal/repository"
)

var (
	// ErrNotFound is returned when the movie id does not exist.
	ErrNotFound = errors.New("catalog: movie not found")
	// ErrIntegrity is returned when a delete is blocked by dependent records.
	ErrIntegrity = errors.New("catalog: integrity violation")
	// ErrInvalidCursor is returned for an unparsable page cursor.
	ErrInvalidCursor = errors.New("catalog: invalid cursor")
)

// MovieStore is the persistence surface the catalog needs.
type MovieStore interface {
	List(ctx context.Context, filters repository.MovieListFilters) (repository.MovieListResult, error)
	GetByID(ctx context.Context, id int64) (domain.Movie, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, params repository.MovieParams) (domain.Movie, error)
	Update(ctx context.Context, id int64, params repository.MovieParams) (domain.Movie, error)
	Delete(ctx context.Context, id int64) error
}

// Cache is a best-effort read-through cache of single movies. Set must not
// replace a cached copy whose UpdatedAt is later than the given movie's, since
// a cache fill and a refresh after a write may arrive in either order.
type Cache interface {
	Get(ctx context.Context, id int64) (domain.Movie, bool, error)
	Set(ctx context.Context, movie domain.Movie) error
	Delete(ctx context.Context, id int64) error
}

// Query selects one page of movies.
type Query struct {
	Title  string
	Limit  int
	Cursor string
}

// Page is one page of movies plus the cursor for the next one, if any.
type Page struct {
	Items      []domain.Movie
	NextCursor *string
}

// Service exposes catalog operations.
type Service struct {
	movies MovieStore
	cache  Cache
	logger *zap.Logger
}

// New builds a catalog service. A nil cache disables caching.
func New(movies MovieStore, c Cache, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		movies: movies,
		cache:  c,
		logger: logging.Component(logger, "catalog"),
	}
}

// List returns movies whose title contains q.Title, ordered by id.
func (s *Service) List(ctx context.Context, q Query) (Page, error) {
	cursor, err := repository.DecodeCursor(q.Cursor)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	filters := repository.MovieListFilters{Limit: q.Limit, Cursor: cursor}
	if q.Title != "" {
		filters.Title = &q.Title
	}
	result, err := s.movies.List(ctx, filters)
	if err != nil {
		return Page{}, fmt.Errorf("list movies: %w", err)
	}
	return Page{Items: result.Items, NextCursor: result.NextCursor}, nil
}

// Get returns one movie, consulting the cache first.
func (s *Service) Get(ctx context.Context, id int64) (domain.Movie, error) {
	if movie, ok, err := s.cache.Get(ctx, id); err != nil {
		s.logger.Warn("cache read failed", zap.Int64("movie_id", id), zap.Error(err))
	} else if ok {
		return movie, nil
	}

	movie, err := s.movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, fmt.Errorf("get movie %d: %w", id, err)
	}
	s.Remember(ctx, movie)
	return movie, nil
}

// Insert stores a new movie. Its score and count start at zero.
func (s *Service) Insert(ctx context.Context, params repository.MovieParams) (domain.Movie, error) {
	movie, err := s.movies.Create(ctx, params)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("create movie: %w", err)
	}
	s.logger.Info("movie created", zap.Int64("movie_id", movie.ID), zap.String("title", movie.Title))
	return movie, nil
}

// Update replaces the title and image of a movie.
func (s *Service) Update(ctx context.Context, id int64, params repository.MovieParams) (domain.Movie, error) {
	movie, err := s.movies.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, fmt.Errorf("update movie %d: %w", id, err)
	}
	s.Remember(ctx, movie)
	return movie, nil
}

// Delete removes a movie. A movie that has been scored cannot be deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	exists, err := s.movies.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check movie %d: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	if err := s.movies.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrReferenced):
			return ErrIntegrity
		case errors.Is(err, repository.ErrNotFound):
			return ErrNotFound
		}
		return fmt.Errorf("delete movie %d: %w", id, err)
	}
	s.forget(ctx, id)
	s.logger.Info("movie deleted", zap.Int64("movie_id", id))
	return nil
}

// Remember refreshes the cached copy of movie after a write. An older copy
// never replaces a newer one.
func (s *Service) Remember(ctx context.Context, movie domain.Movie) {
	if err := s.cache.Set(ctx, movie); err != nil {
		s.logger.Warn("cache write failed", zap.Int64("movie_id", movie.ID), zap.Error(err))
	}
}

func (s *Service) forget(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("cache evict failed", zap.Int64("movie_id", id), zap.Error(err))
	}
}
