package domain

import "time"

// Score is a single user's score for a movie. (UserID, MovieID) is unique.
type Score struct {
	UserID    int64
	MovieID   int64
	Value     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Aggregate is the running (sum, count) pair behind a movie's average.
type Aggregate struct {
	Sum   float64
	Count int
}

// Average is Sum/Count, or 0 when nobody has scored the movie yet.
func (a Aggregate) Average() float64 {
	if a.Count <= 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}
