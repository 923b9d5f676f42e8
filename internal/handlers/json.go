package handlers

import (
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-carsharing/internal/fleet"
	"github.com/ukydev/fleet-carsharing/internal/middleware"
	"github.com/ukydev/fleet-carsharing/internal/state"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshots of a large fleet are the biggest bodies we accept
const maxBodyBytes = 16 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps manager errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, state.ErrUnknownPerson):
		http.Error(w, "Person not found", http.StatusNotFound)
	case errors.Is(err, state.ErrUnknownCar):
		http.Error(w, "Car not found", http.StatusNotFound)
	case errors.Is(err, state.ErrRejected):
		http.Error(w, "Operation rejected", http.StatusConflict)
	case errors.Is(err, fleet.ErrInvalidSnapshot):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.WithFields(log.Fields{
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		}).WithError(err).Error("Fleet operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
