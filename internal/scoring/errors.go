package scoring

import "errors"

var (
	// ErrUnauthenticated is returned when no caller identity accompanies a submission.
	ErrUnauthenticated = errors.New("scoring: unauthenticated")
	// ErrUnknownUser is returned when the caller identity matches no stored user.
	ErrUnknownUser = errors.New("scoring: unknown user")
	// ErrMovieNotFound is returned when the target movie does not exist.
	ErrMovieNotFound = errors.New("scoring: movie not found")
	// ErrInvalidScore is returned when the value falls outside the accepted range.
	ErrInvalidScore = errors.New("scoring: invalid score")
	// ErrStorage wraps any failure reported by the backing stores.
	ErrStorage = errors.New("scoring: storage failure")
)
