package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"pulse_relay/internal/relay"
)

// PortLister enumerates candidate device paths.
type PortLister interface {
	List() ([]string, error)
}

// Connector is the connection manager as seen by HTTP clients.
type Connector interface {
	Connect(ctx context.Context, path string) (string, error)
	Status() relay.Status
}

// Handler maps operator and browser requests onto the relay and the hub.
type Handler struct {
	ports       PortLister
	relay       Connector
	subscribers SubscriberCounter
	log         *zap.SugaredLogger
}

// SubscriberCounter reports how many streams are currently subscribed.
type SubscriberCounter interface {
	ClientCount() int
}

func NewHandler(ports PortLister, r Connector, subs SubscriberCounter, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{ports: ports, relay: r, subscribers: subs, log: log}
}

// ConnectRequest is the body of POST /api/connect.
type ConnectRequest struct {
	Port string `json:"port"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned when the port scan fails.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	relay.Status
	Subscribers int `json:"subscribers"`
}

// Routes registers the API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ports", h.listPorts)
	mux.HandleFunc("POST /api/connect", h.connect)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /health", h.health)
}

func (h *Handler) listPorts(w http.ResponseWriter, r *http.Request) {
	paths, err := h.ports.List()
	if err != nil {
		h.log.Errorw("port scan failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "scan failed"})
		return
	}
	writeJSON(w, http.StatusOK, paths)
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "invalid request body"})
		return
	}
	req.Port = strings.TrimSpace(req.Port)
	if req.Port == "" {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "port is required"})
		return
	}

	// A connect is never cancelled by the requester going away; a later
	// connect supersedes it instead.
	msg, err := h.relay.Connect(context.WithoutCancel(r.Context()), req.Port)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Status: h.relay.Status()}
	if h.subscribers != nil {
		resp.Subscribers = h.subscribers.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
