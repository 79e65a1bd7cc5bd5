package domain

import "time"

// Movie represents the canonical movie entity in the database/service.
// Score, Count and ScoreSum are derived from the movie's score records and
// are only ever written by the scoring engine.
type Movie struct {
	ID        int64
	Title     string
	Image     string
	Score     float64
	Count     int
	ScoreSum  float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Aggregate returns the movie's derived rating fields.
func (m Movie) Aggregate() Aggregate {
	return Aggregate{Sum: m.ScoreSum, Count: m.Count}
}

// WithAggregate returns a copy of m carrying agg.
func (m Movie) WithAggregate(agg Aggregate) Movie {
	m.ScoreSum = agg.Sum
	m.Count = agg.Count
	m.Score = agg.Average()
	return m
}
