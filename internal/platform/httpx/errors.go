// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// RespondError maps generic errors to HTTP responses using RFC7807. Modules
// translate their own domain errors first and fall back to this.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		WriteProblem(w, ProblemDetail{Status: http.StatusBadRequest, Title: "Validation Failed", Code: "VALIDATION_FAILED", Detail: "request failed validation", Meta: fields})
	case errors.Is(err, ErrNotFound):
		WriteProblem(w, ProblemDetail{Status: http.StatusNotFound, Title: "Not Found", Code: "NOT_FOUND", Detail: err.Error()})
	case errors.Is(err, ErrDuplicate):
		WriteProblem(w, ProblemDetail{Status: http.StatusConflict, Title: "Duplicate", Code: "DUPLICATE", Detail: err.Error()})
	case errors.Is(err, ErrConflict):
		WriteProblem(w, ProblemDetail{Status: http.StatusConflict, Title: "Conflict", Code: "CONFLICT", Detail: err.Error()})
	case errors.Is(err, ErrValidation):
		WriteProblem(w, ProblemDetail{Status: http.StatusBadRequest, Title: "Validation Failed", Code: "VALIDATION_FAILED", Detail: err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteProblem(w, ProblemDetail{Status: http.StatusServiceUnavailable, Title: "Unavailable", Code: "UNAVAILABLE"})
	default:
		WriteProblem(w, ProblemDetail{Status: http.StatusInternalServerError, Title: "Internal Error", Code: "INTERNAL"})
	}
}
