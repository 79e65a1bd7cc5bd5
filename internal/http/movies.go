package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/dsmovie/internal/catalog"
	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/repository"
)

// movieRequest is the admin payload for creating or editing a movie. Score and
// count are derived from user scores; they are accepted for client
// compatibility but never stored.
type movieRequest struct {
	Title string   `json:"title" validate:"required,min=5,max=80"`
	Image string   `json:"image" validate:"omitempty,url"`
	Score *float64 `json:"score,omitempty"`
	Count *int     `json:"count,omitempty"`
}

type movieListResponse struct {
	Items      []movieResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type movieResponse struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
	Count int     `json:"count"`
	Image string  `json:"image"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	query, err := buildMovieQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	page, err := s.catalog.List(r.Context(), query)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidCursor) {
			s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid cursor")
			return
		}
		s.logger.Error("list movies failed", zap.Error(err))
		s.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list movies")
		return
	}

	items := make([]movieResponse, 0, len(page.Items))
	for _, movie := range page.Items {
		items = append(items, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: items, NextCursor: page.NextCursor})
}

func buildMovieQuery(values url.Values) (catalog.Query, error) {
	var q catalog.Query

	q.Title = strings.TrimSpace(values.Get("title"))
	if val := strings.TrimSpace(values.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 0 {
			return q, fmt.Errorf("invalid limit value")
		}
		q.Limit = limit
	}
	q.Cursor = strings.TrimSpace(values.Get("cursor"))
	return q, nil
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	movie, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.respondCatalogError(w, r, "Failed to fetch movie", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	params, ok := s.decodeMovieRequest(w, r)
	if !ok {
		return
	}

	movie, err := s.catalog.Insert(r.Context(), params)
	if err != nil {
		s.respondCatalogError(w, r, "Failed to create movie", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/movies/%d", movie.ID))
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	params, ok := s.decodeMovieRequest(w, r)
	if !ok {
		return
	}

	movie, err := s.catalog.Update(r.Context(), id, params)
	if err != nil {
		s.respondCatalogError(w, r, "Failed to update movie", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.respondCatalogError(w, r, "Failed to delete movie", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeMovieRequest(w http.ResponseWriter, r *http.Request) (repository.MovieParams, bool) {
	var req movieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, r, err)
		return repository.MovieParams{}, false
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Image = strings.TrimSpace(req.Image)
	if !s.validateRequest(w, r, req) {
		return repository.MovieParams{}, false
	}
	return repository.MovieParams{Title: req.Title, Image: req.Image}, true
}

func (s *Server) respondCatalogError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, catalog.ErrIntegrity):
		s.respondError(w, r, http.StatusBadRequest, "DATABASE_ERROR", "Movie is referenced by existing scores")
	default:
		s.logger.Error(strings.ToLower(message), zap.Error(err))
		s.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", message)
	}
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:    movie.ID,
		Title: movie.Title,
		Score: movie.Score,
		Count: movie.Count,
		Image: movie.Image,
	}
}

func decodeIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, fmt.Errorf("missing id parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id parameter")
	}
	return id, nil
}
