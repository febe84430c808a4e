package handler

import (
	"net/http"

	"photolabels/internal/logger"
	"photolabels/internal/repository"
	"photolabels/internal/service"
)

// GetResultsHandler returns the report the session currently shows.
func GetResultsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		report, err := manager.Live(r.URL.Query().Get(sessionParam))
		if err != nil {
			http.Error(w, "Unknown session", http.StatusNotFound)
			return
		}
		writeJSON(w, logger, http.StatusOK, report)
	}
}

// CyclesResponse is the telemetry summary.
type CyclesResponse struct {
	Stats  interface{} `json:"stats"`
	Recent interface{} `json:"recent"`
}

// GetCyclesHandler returns journal statistics and the most recent records.
// The "limit" parameter bounds the records (default 50). DELETE clears the
// journal.
func GetCyclesHandler(cycleRepo repository.CycleRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodDelete:
			if err := cycleRepo.DeleteAll(); err != nil {
				logger.Error("Error clearing cycle records: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			logger.Info("🗑️  Cycle journal cleared")
			w.WriteHeader(http.StatusNoContent)
			return
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit := atoiDefault(r.URL.Query().Get("limit"), 50)

		stats, err := cycleRepo.GetStats()
		if err != nil {
			logger.Error("Error reading cycle stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		var recent interface{}
		if session := r.URL.Query().Get(sessionParam); session != "" {
			recent, err = cycleRepo.GetBySession(session)
		} else {
			recent, err = cycleRepo.GetRecent(limit)
		}
		if err != nil {
			logger.Error("Error reading cycle records: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, CyclesResponse{Stats: stats, Recent: recent})
	}
}
