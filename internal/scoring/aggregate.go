package scoring

import (
	"math"

	"github.com/Clark-Hu/dsmovie/internal/domain"
)

// Apply folds one submission into a movie aggregate. previous is the value the
// same user had already given the movie, or nil on their first submission.
// A first submission adds a rater; a resubmission swaps the old value for the
// new one and leaves the rater count alone.
func Apply(agg domain.Aggregate, previous *float64, value float64) domain.Aggregate {
	if previous == nil {
		return domain.Aggregate{Sum: agg.Sum + value, Count: agg.Count + 1}
	}
	return domain.Aggregate{Sum: agg.Sum - *previous + value, Count: agg.Count}
}

// Range is the closed interval of accepted score values.
type Range struct {
	Min float64
	Max float64
}

// DefaultRange accepts scores from 0 to 5 inclusive.
var DefaultRange = Range{Min: 0, Max: 5}

// Contains reports whether v is a finite value within the range.
func (r Range) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= r.Min && v <= r.Max
}
