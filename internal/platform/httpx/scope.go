package httpx

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// StoreHeader carries the store scope of a request.
const StoreHeader = "X-Store-ID"

// RequireStore returns the request's store scope, writing a problem when absent.
func RequireStore(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	storeID, ok := shared.StoreFromContext(r.Context())
	if !ok {
		WriteProblem(w, ProblemDetail{Status: http.StatusBadRequest, Code: "STORE_REQUIRED", Detail: StoreHeader + " header is required"})
		return uuid.Nil, false
	}
	return storeID, true
}

// PathUUID parses a chi URL parameter value, writing a problem when malformed.
func PathUUID(w http.ResponseWriter, value, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		WriteProblem(w, ProblemDetail{Status: http.StatusBadRequest, Code: "INVALID_ID", Detail: name + " must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}
