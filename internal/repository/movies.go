package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/dsmovie/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	db DBTX
}

const movieColumns = `
    id,
    title,
    image,
    score,
    count,
    score_sum,
    created_at,
    updated_at
`

// MovieParams bundles the caller-editable fields of a movie.
type MovieParams struct {
	Title string
	Image string
}

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Title  *string
	Limit  int
	Cursor *MovieCursor
}

// MovieCursor allows stable pagination by id.
type MovieCursor struct {
	ID int64 `json:"id"`
}

// MovieListResult returns the paginated payload.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

// Create inserts a new movie row with an empty aggregate and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies (title, image)
        VALUES ($1,$2)
        RETURNING %s
    `, movieColumns)

	row := r.db.QueryRow(ctx, query, params.Title, params.Image)
	return scanMovie(row)
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id int64) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	return r.getOne(ctx, query, id)
}

// GetForUpdate fetches a movie and row-locks it until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func (r *MoviesRepository) GetForUpdate(ctx context.Context, id int64) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1 FOR UPDATE`, movieColumns)
	return r.getOne(ctx, query, id)
}

func (r *MoviesRepository) getOne(ctx context.Context, query string, id int64) (domain.Movie, error) {
	movie, err := scanMovie(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// Exists reports whether a movie with id is stored.
func (r *MoviesRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM movies WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Update replaces the editable fields of a movie. The aggregate columns are untouched.
// updated_at is stamped with clock_timestamp() after the row lock is held, so
// successive writes to one movie carry increasing versions.
func (r *MoviesRepository) Update(ctx context.Context, id int64, params MovieParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies
        SET title = $2,
            image = $3,
            updated_at = clock_timestamp()
        WHERE id = $1
        RETURNING %s
    `, movieColumns)

	movie, err := scanMovie(r.db.QueryRow(ctx, query, id, params.Title, params.Image))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// SaveAggregate writes the running sum, rater count and average of a movie.
func (r *MoviesRepository) SaveAggregate(ctx context.Context, id int64, agg domain.Aggregate) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies
        SET score_sum = $2,
            count = $3,
            score = $4,
            updated_at = clock_timestamp()
        WHERE id = $1
        RETURNING %s
    `, movieColumns)

	movie, err := scanMovie(r.db.QueryRow(ctx, query, id, agg.Sum, agg.Count, agg.Average()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// Delete removes a movie. Score rows referencing it block the delete with ErrReferenced.
func (r *MoviesRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return ErrReferenced
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns movies whose title contains the filter text, ordered by id.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 12
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Title != nil && strings.TrimSpace(*filters.Title) != "" {
		where = append(where, fmt.Sprintf("title ILIKE %s", arg("%"+strings.TrimSpace(*filters.Title)+"%")))
	}
	if filters.Cursor != nil {
		where = append(where, fmt.Sprintf("id > %s", arg(filters.Cursor.ID)))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY id ASC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		token, err := encodeCursor(MovieCursor{ID: items[len(items)-1].ID})
		if err != nil {
			return MovieListResult{}, err
		}
		nextCursor = &token
	}

	return MovieListResult{Items: items, NextCursor: nextCursor}, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Image,
		&movie.Score,
		&movie.Count,
		&movie.ScoreSum,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

func encodeCursor(c MovieCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MovieCursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MovieCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if cursor.ID < 0 {
		return nil, fmt.Errorf("invalid cursor id %d", cursor.ID)
	}
	return &cursor, nil
}
