package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"photolabels/internal/logger"
	"photolabels/internal/service"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler subscribes a viewer to a session. The viewer first
// receives the report currently shown, then every newly presented one.
func ViewWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := r.URL.Query().Get(sessionParam)
		if !manager.HasSession(session) {
			http.Error(w, "Unknown session", http.StatusNotFound)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		manager.GetWebsocketService().Register(connection, session)
		defer manager.GetWebsocketService().Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer of session %s disconnected normally", session)
				} else {
					logger.Warning("Viewer of session %s disconnected: %v", session, err)
				}
				break
			}
		}
	}
}
