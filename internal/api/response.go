package api

import (
	"encoding/json"
	"net/http"

	"github.com/dyluth/discgraph/internal/query"
)

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, kind query.Kind) {
	respondJSON(w, status, ErrorResponse{Error: message, Kind: string(kind)})
}

// statusFor maps a query error kind to an HTTP status.
func statusFor(err error) int {
	switch query.KindOf(err) {
	case query.KindInvalidInput:
		return http.StatusBadRequest
	case query.KindNotFound:
		return http.StatusNotFound
	case query.KindSourceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondQueryError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error(), query.KindOf(err))
}
