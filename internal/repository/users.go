package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/dsmovie/internal/domain"
)

// UsersRepository looks up accounts and the roles granted to them.
type UsersRepository struct {
	db DBTX
}

// UserCreateParams describes a new account. PasswordHash must already be hashed.
type UserCreateParams struct {
	Name         string
	Username     string
	PasswordHash string
	Roles        []string
}

// GetByUsername loads a user and its roles. Usernames compare case-insensitively.
func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	const query = `
        SELECT u.id, u.name, u.username, u.password, u.created_at,
               COALESCE(array_agg(r.authority ORDER BY r.authority) FILTER (WHERE r.authority IS NOT NULL), '{}')
        FROM users u
        LEFT JOIN user_roles ur ON ur.user_id = u.id
        LEFT JOIN roles r ON r.id = ur.role_id
        WHERE lower(u.username) = lower($1)
        GROUP BY u.id
    `

	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// Create inserts a user and grants it the named roles in one statement.
// Role names that do not exist are ignored; the returned user lists only the
// roles actually granted. A taken username yields ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	const query = `
        WITH u AS (
            INSERT INTO users (name, username, password)
            VALUES ($1,$2,$3)
            RETURNING id, name, username, password, created_at
        ), granted AS (
            INSERT INTO user_roles (user_id, role_id)
            SELECT u.id, r.id FROM u CROSS JOIN roles r WHERE r.authority = ANY($4)
            RETURNING role_id
        )
        SELECT u.id, u.name, u.username, u.password, u.created_at,
               COALESCE((SELECT array_agg(r.authority ORDER BY r.authority) FROM roles r WHERE r.authority = ANY($4)), '{}')
        FROM u
    `

	roles := params.Roles
	if roles == nil {
		roles = []string{}
	}
	user, err := scanUser(r.db.QueryRow(ctx, query, params.Name, params.Username, params.PasswordHash, roles))
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Username,
		&user.Password,
		&user.CreatedAt,
		&user.Roles,
	)
	return user, err
}
