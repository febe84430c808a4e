package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"photolabels/internal/logger"
)

// sessionParam is the query parameter carrying the session id.
const sessionParam = "session"

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
