package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// envelope is the uniform response wrapper: {success, message?, data?, errors?}.
type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Errors  []fieldError `json:"errors,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

// dataJSON writes a success envelope with optional message and payload.
func dataJSON(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// validationJSON reports field-level validation failures as a 400.
func validationJSON(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Success: false,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// serverError logs the underlying error and answers with a generic message.
// In development the error detail is attached to the envelope.
func (a *app) serverError(w http.ResponseWriter, tag, message string, err error) {
	log.Printf("[%s] %v", tag, err)
	resp := envelope{Success: false, Message: message}
	if a.cfg.isDev() && err != nil {
		resp.Errors = []fieldError{{Field: "error", Message: err.Error()}}
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

/* ===================== Storage error normalization ====================== */

// isUniqueViolation reports whether err is a uniqueness-constraint failure,
// covering Postgres (23505) and the SQLite driver used in tests.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation reports whether err is a referential-integrity
// failure (Postgres 23503 or SQLite FK enforcement).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
