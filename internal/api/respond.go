package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"reasy/internal/account"
	"reasy/internal/booking"
	"reasy/internal/db"
	"reasy/internal/slots"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	var parseErr *slots.ParseError
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrSlotUnavailable),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, account.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, booking.ErrForbidden),
		errors.Is(err, account.ErrRoleMismatch):
		return http.StatusForbidden
	case errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, account.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, booking.ErrNoSlotSelected),
		errors.Is(err, booking.ErrPastDate),
		errors.Is(err, account.ErrPasswordMismatch),
		errors.Is(err, account.ErrInvalidInput),
		errors.Is(err, account.ErrInvalidRole),
		errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrInvalidDate):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail logs unexpected errors and writes the mapped status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("path", r.URL.Path).Msg(msg)
		writeError(w, r, status, msg)
		return
	}
	writeError(w, r, status, err.Error())
}
