package route

import (
	"net/http"

	"photolabels/internal/config"
	"photolabels/internal/handler"
	"photolabels/internal/logger"
	"photolabels/internal/middleware"
	"photolabels/internal/repository"
	"photolabels/internal/service"
)

// SetupRoutes registers the API, log and auth endpoints and wraps the mux
// with the authentication middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	cycleRepo repository.CycleRepository) http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/sessions", handler.SessionHandler(manager, logger))
	mux.HandleFunc("/api/select", handler.SelectImageHandler(manager, cfg, logger))
	mux.HandleFunc("/api/cancel", handler.CancelSelectionHandler(manager, logger))
	mux.HandleFunc("/api/results", handler.GetResultsHandler(manager, logger))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(manager, logger))
	mux.HandleFunc("/api/cycles", handler.GetCyclesHandler(cycleRepo, logger))

	// Log endpoints
	for _, level := range []string{"info", "warning", "error"} {
		file := level + ".log"
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg, file))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	return middleware.AuthMiddleware(cfg.Password, mux)
}
