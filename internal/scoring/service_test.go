package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/repository"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.User), args.Error(1)
}

var (
	userA = domain.User{ID: 1, Username: "alex@gmail.com", Roles: []string{domain.RoleClient}}
	userB = domain.User{ID: 2, Username: "maria@gmail.com", Roles: []string{domain.RoleClient, domain.RoleAdmin}}
)

func newUsers(users ...domain.User) *mockUsers {
	m := &mockUsers{}
	for _, u := range users {
		m.On("GetByUsername", mock.Anything, u.Username).Return(u, nil)
	}
	m.On("GetByUsername", mock.Anything, mock.Anything).Return(domain.User{}, repository.ErrNotFound)
	return m
}

func TestSubmitScore_Scenarios(t *testing.T) {
	ctx := context.Background()
	movieM := domain.Movie{ID: 10, Title: "The Witcher"}
	other := domain.Movie{ID: 11, Title: "Venom", Score: 3, Count: 1, ScoreSum: 3}
	store := newMemoryStore(movieM, other)
	svc := New(newUsers(userA, userB), store)

	got, err := svc.SubmitScore(ctx, userA.Username, Submission{MovieID: movieM.ID, Value: 4})
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Score)
	assert.Equal(t, 1, got.Count)

	got, err = svc.SubmitScore(ctx, userB.Username, Submission{MovieID: movieM.ID, Value: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Score)
	assert.Equal(t, 2, got.Count)

	got, err = svc.SubmitScore(ctx, userA.Username, Submission{MovieID: movieM.ID, Value: 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Score)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 4.0, got.ScoreSum)

	_, err = svc.SubmitScore(ctx, userA.Username, Submission{MovieID: 999, Value: 3})
	require.ErrorIs(t, err, ErrMovieNotFound)
	assert.Empty(t, store.scoresFor(999))
	assert.Equal(t, other, store.movie(other.ID))
	assert.Equal(t, got, store.movie(movieM.ID))

	units := store.unitCount()
	_, err = svc.SubmitScore(ctx, "", Submission{MovieID: movieM.ID, Value: 3})
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, units, store.unitCount())
	assert.Equal(t, got, store.movie(movieM.ID))
}

func TestSubmitScore_UnknownUserTouchesNoStore(t *testing.T) {
	store := newMemoryStore(domain.Movie{ID: 1})
	users := newUsers(userA)
	svc := New(users, store)

	_, err := svc.SubmitScore(context.Background(), "ghost@gmail.com", Submission{MovieID: 1, Value: 3})

	require.ErrorIs(t, err, ErrUnknownUser)
	assert.Zero(t, store.unitCount())
	users.AssertCalled(t, "GetByUsername", mock.Anything, "ghost@gmail.com")
}

func TestSubmitScore_UnauthenticatedSkipsIdentityLookup(t *testing.T) {
	users := &mockUsers{}
	store := newMemoryStore(domain.Movie{ID: 1})
	svc := New(users, store)

	_, err := svc.SubmitScore(context.Background(), "", Submission{MovieID: 1, Value: 3})

	require.ErrorIs(t, err, ErrUnauthenticated)
	users.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
	assert.Zero(t, store.unitCount())
}

func TestSubmitScore_InvalidValue(t *testing.T) {
	store := newMemoryStore(domain.Movie{ID: 1})
	svc := New(newUsers(userA), store, WithRange(Range{Min: 1, Max: 10}))

	for _, v := range []float64{0.5, 10.5, -1} {
		_, err := svc.SubmitScore(context.Background(), userA.Username, Submission{MovieID: 1, Value: v})
		require.ErrorIs(t, err, ErrInvalidScore, "value %v", v)
	}
	assert.Zero(t, store.unitCount())

	got, err := svc.SubmitScore(context.Background(), userA.Username, Submission{MovieID: 1, Value: 10})
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Score)
}

func TestSubmitScore_IdempotentIdentity(t *testing.T) {
	store := newMemoryStore(domain.Movie{ID: 1})
	svc := New(newUsers(userA), store)

	first, err := svc.SubmitScore(context.Background(), userA.Username, Submission{MovieID: 1, Value: 3.5})
	require.NoError(t, err)
	second, err := svc.SubmitScore(context.Background(), userA.Username, Submission{MovieID: 1, Value: 3.5})
	require.NoError(t, err)

	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, first.Score, second.Score)
	assert.Len(t, store.scoresFor(1), 1)
}

func TestSubmitScore_AggregateMatchesScoreRows(t *testing.T) {
	ctx := context.Background()
	users := make([]domain.User, 5)
	for i := range users {
		users[i] = domain.User{ID: int64(i + 1), Username: fmt.Sprintf("user-%d@gmail.com", i)}
	}
	store := newMemoryStore(domain.Movie{ID: 1}, domain.Movie{ID: 2})
	svc := New(newUsers(users...), store)

	// A fixed pseudo-random walk of submissions and resubmissions.
	for i := 0; i < 200; i++ {
		user := users[(i*7)%len(users)]
		movieID := int64(1 + (i*3)%2)
		value := float64((i*13)%11) * 0.5
		_, err := svc.SubmitScore(ctx, user.Username, Submission{MovieID: movieID, Value: value})
		require.NoError(t, err)
	}

	for _, movieID := range []int64{1, 2} {
		rows := store.scoresFor(movieID)
		var sum float64
		seen := make(map[int64]bool)
		for _, row := range rows {
			require.False(t, seen[row.UserID], "duplicate score row for user %d", row.UserID)
			seen[row.UserID] = true
			sum += row.Value
		}
		movie := store.movie(movieID)
		assert.Equal(t, len(rows), movie.Count)
		assert.InDelta(t, sum, movie.ScoreSum, 1e-9)
		assert.InDelta(t, sum/float64(len(rows)), movie.Score, 1e-9)
	}
}

func TestSubmitScore_StorageFailureRollsBack(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memoryStore)
	}{
		{name: "score write fails", setup: func(m *memoryStore) { m.upsertErr = errors.New("connection reset") }},
		{name: "movie write fails", setup: func(m *memoryStore) { m.saveErr = errors.New("connection reset") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := domain.Movie{ID: 1, Score: 4, Count: 1, ScoreSum: 4}
			store := newMemoryStore(start)
			tt.setup(store)
			svc := New(newUsers(userB), store)

			_, err := svc.SubmitScore(context.Background(), userB.Username, Submission{MovieID: 1, Value: 1})

			require.ErrorIs(t, err, ErrStorage)
			assert.Equal(t, start, store.movie(1))
			assert.Empty(t, store.scoresFor(1))
		})
	}
}

func TestSubmitScore_UserLookupFailureIsStorage(t *testing.T) {
	users := &mockUsers{}
	users.On("GetByUsername", mock.Anything, userA.Username).Return(domain.User{}, errors.New("timeout"))
	svc := New(users, newMemoryStore())

	_, err := svc.SubmitScore(context.Background(), userA.Username, Submission{MovieID: 1, Value: 1})

	require.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrUnknownUser)
}

type failingUnitOfWork struct{ err error }

func (f failingUnitOfWork) Do(context.Context, func(Stores) error) error { return f.err }

func TestSubmitScore_TransactionFailureIsStorage(t *testing.T) {
	svc := New(newUsers(userA), failingUnitOfWork{err: errors.New("begin tx: refused")})

	_, err := svc.SubmitScore(context.Background(), userA.Username, Submission{MovieID: 1, Value: 1})

	require.ErrorIs(t, err, ErrStorage)
}

func TestSubmitScore_ConcurrentRatersDoNotLoseUpdates(t *testing.T) {
	const raters = 50
	users := make([]domain.User, raters)
	for i := range users {
		users[i] = domain.User{ID: int64(i + 1), Username: fmt.Sprintf("rater-%d@gmail.com", i)}
	}
	store := newMemoryStore(domain.Movie{ID: 1})
	svc := New(newUsers(users...), store)

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u domain.User) {
			defer wg.Done()
			_, err := svc.SubmitScore(context.Background(), u.Username, Submission{MovieID: 1, Value: 5})
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	movie := store.movie(1)
	assert.Equal(t, raters, movie.Count)
	assert.Equal(t, 5.0, movie.Score)
}
