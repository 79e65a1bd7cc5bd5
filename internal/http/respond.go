package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Warn("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.respondErrorDetails(w, r, status, code, message, nil)
}

func (s *Server) respondErrorDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	s.respondJSON(w, status, errorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, r, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

// validateRequest runs struct validation and writes a 422 on failure.
func (s *Server) validateRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	err := s.validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		s.logger.Error("validator failure", zap.Error(err))
		s.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to validate request")
		return false
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	s.respondErrorDetails(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request payload", details)
	return false
}
