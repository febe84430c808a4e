package handler

import (
	"errors"
	"net/http"

	"photolabels/internal/logger"
	"photolabels/internal/service"
)

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	Session string `json:"session"`
}

// SessionHandler creates sessions on POST and tears them down on DELETE.
func SessionHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			id := manager.CreateSession()
			writeJSON(w, logger, http.StatusCreated, SessionResponse{Session: id})

		case http.MethodDelete:
			id := r.URL.Query().Get(sessionParam)
			if err := manager.CloseSession(id); err != nil {
				if errors.Is(err, service.ErrUnknownSession) {
					http.Error(w, "Unknown session", http.StatusNotFound)
					return
				}
				logger.Error("Error closing session %s: %v", id, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
