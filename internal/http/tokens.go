package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/dsmovie/internal/auth"
)

type tokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if !s.validateRequest(w, r, req) {
		return
	}

	tok, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password")
			return
		}
		s.logger.Error("issue token failed", zap.Error(err))
		s.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}

	s.respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(tok.ExpiresAt).Seconds()),
	})
}
