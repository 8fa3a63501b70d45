package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	slog.Debug("sending error response",
		"status_code", status,
		"message", message,
		"path", r.URL.Path,
		"method", r.Method,
	)
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErrorAndLog logs err in full but only exposes message.
func respondErrorAndLog(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status_code", status,
		"error", err,
	}
	switch {
	case status >= 500:
		slog.Error(message, attrs...)
	case status == http.StatusTooManyRequests:
		slog.Warn(message, attrs...)
	default:
		slog.Debug(message, attrs...)
	}
	respondJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a JSON body into v and validates it.
func (s *Server) decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request format: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return fmt.Errorf("validation error: field %s failed on %q", fe.Namespace(), fe.Tag())
}

// lessonID parses the {id} path value.
func lessonID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid lesson id %q", r.PathValue("id"))
	}
	return id, nil
}
