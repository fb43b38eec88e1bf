package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler serves subscriber streams over WebSocket. Each batch payload is
// sent as one text message; anything the browser sends is ignored.
type WSHandler struct {
	hub *Hub
	log *zap.SugaredLogger
}

func NewWSHandler(hub *Hub, log *zap.SugaredLogger) *WSHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WSHandler{hub: hub, log: log}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("WebSocket upgrade error", "error", err)
		return
	}

	client := h.hub.NewClient()
	h.hub.Register(client)
	go h.writePump(conn, client)

	h.readPump(conn, client)
}

// readPump drains the connection so close frames are processed and
// unregisters the client when the peer goes away.
func (h *WSHandler) readPump(conn *websocket.Conn, c *Client) {
	defer func() {
		h.hub.Unregister(c)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("WebSocket read error", "client", c.ID, "error", err)
			}
			return
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, c *Client) {
	defer conn.Close()
	for {
		select {
		case <-c.Done():
			return
		case msg := <-c.Frames():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debugw("WebSocket write failed, dropping subscriber", "client", c.ID, "error", err)
				h.hub.Unregister(c)
				return
			}
		}
	}
}
