package portal

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dsecure/portal/internal/explorer"
	"github.com/dsecure/portal/internal/models"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// StreamMessage is one websocket frame of a streamed load.
type StreamMessage struct {
	Type          string                  `json:"type"`
	Kind          models.Kind             `json:"kind,omitempty"`
	Origin        explorer.Origin         `json:"origin,omitempty"`
	Count         int                     `json:"count"`
	Error         string                  `json:"error,omitempty"`
	Failed        []models.Kind           `json:"failed,omitempty"`
	Notifications []explorer.Notification `json:"notifications,omitempty"`
}

// handleStream runs a fresh load and streams each collection as it settles,
// followed by a final "done" frame.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	e, sid, _ := h.sessions.Resolve(w, r, h.identity(r))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	var mu sync.Mutex
	send := func(msg StreamMessage) {
		mu.Lock()
		defer mu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("websocket write failed", "session_id", sid, "error", err)
		}
	}

	res := h.load(r.Context(), e, sid, func(u explorer.Update) {
		msg := StreamMessage{Type: "update", Kind: u.Kind, Origin: u.Origin, Count: u.Count}
		if u.Err != nil {
			msg.Error = u.Err.Error()
		}
		send(msg)
	})

	send(StreamMessage{Type: "done", Failed: res.Failed, Notifications: e.Inbox().Drain()})

	mu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "load complete"),
		time.Now().Add(time.Second))
	mu.Unlock()
}
