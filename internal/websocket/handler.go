package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Handle returns an HTTP handler that upgrades connections to WebSocket and
// runs them through the handshake. The endpoint itself is unauthenticated;
// a channel earns its user by sending a valid auth message.
func Handle(hub *Hub, resolver SessionResolver, dispatcher *Dispatcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Clients connect from native apps, not browsers
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, resolver, dispatcher, logger)
		client.Run(r.Context())
	}
}
