package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Clark-Hu/dsmovie/internal/auth"
	"github.com/Clark-Hu/dsmovie/internal/scoring"
)

type scoreRequest struct {
	MovieID *int64   `json:"movieId" validate:"required,gt=0"`
	Score   *float64 `json:"score" validate:"required"`
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req scoreRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, r, err)
		return
	}
	if !s.validateRequest(w, r, req) {
		return
	}

	movie, err := s.scoring.SubmitScore(r.Context(), principal.Username, scoring.Submission{
		MovieID: *req.MovieID,
		Value:   *req.Score,
	})
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrUnauthenticated), errors.Is(err, scoring.ErrUnknownUser):
			s.respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		case errors.Is(err, scoring.ErrInvalidScore):
			rng := s.scoring.Range()
			s.respondErrorDetails(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				fmt.Sprintf("score must be between %g and %g", rng.Min, rng.Max),
				[]fieldError{{Field: "score", Rule: "range"}},
			)
		case errors.Is(err, scoring.ErrMovieNotFound):
			s.respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		default:
			s.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process score")
		}
		return
	}

	if s.catalog != nil {
		s.catalog.Remember(r.Context(), movie)
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}
