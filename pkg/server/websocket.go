package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Local UI only; origin checks are handled by the host app.
		return true
	},
}

// handleWatch streams the watched conversation to the client: a full
// snapshot on connect, then a fresh snapshot every time the store reports a
// change to that conversation.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.manager.Get(id) == nil {
		s.errorResponse(w, http.StatusNotFound, fmt.Errorf("conversation not found: %s", id))
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	updates, unsubscribe := s.manager.Subscribe()
	defer unsubscribe()

	if err := s.pushConversation(ws, id); err != nil {
		slog.Error("Failed initial websocket sync", "conversationID", id, "error", err)
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case changed := <-updates:
			if changed != id && changed != "" {
				continue
			}
			if s.manager.Get(id) == nil {
				// Deleted while being watched.
				ws.WriteJSON(map[string]string{"deleted": id})
				return
			}
			if err := s.pushConversation(ws, id); err != nil {
				slog.Error("Failed websocket sync", "conversationID", id, "error", err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (s *Server) pushConversation(ws *websocket.Conn, id string) error {
	conv := s.manager.Get(id)
	if conv == nil {
		return fmt.Errorf("conversation not found: %s", id)
	}
	return ws.WriteJSON(conv)
}
