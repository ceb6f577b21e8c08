package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/roomsync-dev/roomsync/internal/apperr"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeMessage writes the `{"message": ...}` error body clients expect.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps a taxonomy error to its status and client-safe message.
func writeError(w http.ResponseWriter, err error) {
	writeMessage(w, apperr.Status(err), apperr.Message(err))
}
