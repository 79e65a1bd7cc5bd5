package scoring

import (
	"context"
	"sync"

	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/repository"
)

type scoreKey struct {
	userID  int64
	movieID int64
}

// memoryStore is an in-memory UnitOfWork. Units run one at a time and are
// rolled back when fn fails.
type memoryStore struct {
	mu     sync.Mutex
	movies map[int64]domain.Movie
	scores map[scoreKey]domain.Score
	units  int

	upsertErr error
	saveErr   error
}

func newMemoryStore(movies ...domain.Movie) *memoryStore {
	m := &memoryStore{
		movies: make(map[int64]domain.Movie),
		scores: make(map[scoreKey]domain.Score),
	}
	for _, movie := range movies {
		m.movies[movie.ID] = movie
	}
	return m
}

func (m *memoryStore) Do(ctx context.Context, fn func(stores Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units++

	movies := make(map[int64]domain.Movie, len(m.movies))
	for k, v := range m.movies {
		movies[k] = v
	}
	scores := make(map[scoreKey]domain.Score, len(m.scores))
	for k, v := range m.scores {
		scores[k] = v
	}

	tx := &memoryTx{store: m}
	if err := fn(Stores{Movies: tx, Scores: tx}); err != nil {
		m.movies = movies
		m.scores = scores
		return err
	}
	return nil
}

func (m *memoryStore) movie(id int64) domain.Movie {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.movies[id]
}

func (m *memoryStore) scoresFor(movieID int64) []domain.Score {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Score
	for k, v := range m.scores {
		if k.movieID == movieID {
			out = append(out, v)
		}
	}
	return out
}

func (m *memoryStore) unitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units
}

// memoryTx runs with memoryStore.mu held.
type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (domain.Movie, error) {
	movie, ok := t.store.movies[id]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	return movie, nil
}

func (t *memoryTx) SaveAggregate(_ context.Context, id int64, agg domain.Aggregate) (domain.Movie, error) {
	if t.store.saveErr != nil {
		return domain.Movie{}, t.store.saveErr
	}
	movie, ok := t.store.movies[id]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	movie = movie.WithAggregate(agg)
	t.store.movies[id] = movie
	return movie, nil
}

func (t *memoryTx) Find(_ context.Context, userID, movieID int64) (domain.Score, error) {
	score, ok := t.store.scores[scoreKey{userID, movieID}]
	if !ok {
		return domain.Score{}, repository.ErrNotFound
	}
	return score, nil
}

func (t *memoryTx) Upsert(_ context.Context, params repository.ScoreUpsertParams) (domain.Score, bool, error) {
	if t.store.upsertErr != nil {
		return domain.Score{}, false, t.store.upsertErr
	}
	key := scoreKey{params.UserID, params.MovieID}
	_, existed := t.store.scores[key]
	score := domain.Score{UserID: params.UserID, MovieID: params.MovieID, Value: params.Value}
	t.store.scores[key] = score
	return score, !existed, nil
}
