package stream

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// SSEHandler serves subscriber streams as text/event-stream. Each frame is
// written as "data: <payload>\n\n".
type SSEHandler struct {
	hub *Hub
	log *zap.SugaredLogger
}

func NewSSEHandler(hub *Hub, log *zap.SugaredLogger) *SSEHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SSEHandler{hub: hub, log: log}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Headers go out before the client is registered.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := h.hub.NewClient()
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done():
			return
		case msg := <-client.Frames():
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				h.log.Debugw("SSE write failed, dropping subscriber", "client", client.ID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
