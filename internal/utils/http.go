package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

// WriteError writes the {"error","message"} body every endpoint uses.
func WriteError(w http.ResponseWriter, status int, errorType, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   errorType,
		"message": message,
	})
}
