package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"photolabels/internal/config"
	"photolabels/internal/logger"
	"photolabels/internal/models"
	"photolabels/internal/service"
)

// imageField is the multipart form field holding the photo.
const imageField = "image"

// SelectionResponse acknowledges a started cycle. The result itself arrives
// on the session's WebSocket or via the results endpoint.
type SelectionResponse struct {
	Session string `json:"session"`
	Cycle   uint64 `json:"cycle"`
}

// SelectImageHandler handles POST /api/select?session=ID. The photo is either
// the raw request body or the "image" field of a multipart form. An empty
// body or a form without the field is a cancelled selection: 204 and no
// change to what the session shows.
func SelectImageHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		session := r.URL.Query().Get(sessionParam)
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadMB<<20)

		image, err := readImage(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
				return
			}
			logger.Error("Error reading upload for session %s: %v", session, err)
			http.Error(w, "Error reading body", http.StatusBadRequest)
			return
		}

		cycleID, err := manager.Select(r.Context(), session, image)
		switch {
		case errors.Is(err, models.ErrSelectionCancelled):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, service.ErrUnknownSession):
			http.Error(w, "Unknown session", http.StatusNotFound)
		case err != nil:
			logger.Error("Error starting cycle for session %s: %v", session, err)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		default:
			logger.Info("📷 Session %s: %d byte image queued as cycle %d", session, len(image), cycleID)
			writeJSON(w, logger, http.StatusAccepted, SelectionResponse{Session: session, Cycle: cycleID})
		}
	}
}

// readImage returns the uploaded bytes, or nil when nothing was uploaded.
func readImage(r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile(imageField)
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}

// CancelSelectionHandler handles POST /api/cancel?session=ID, sent when the
// user dismisses the image picker.
func CancelSelectionHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		session := r.URL.Query().Get(sessionParam)
		if err := manager.Cancel(session); err != nil {
			http.Error(w, "Unknown session", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
