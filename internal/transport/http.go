package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Broadcaster is the fan-out the SSE stream reads from; *events.Hub
// implements it.
type Broadcaster interface {
	Register(id string, buffer int) <-chan Message
	Unregister(id string)
}

// HTTPServer exposes an SSE stream of outbound Messages alongside a
// POST endpoint for inbound ones, adapted from a per-client SSE
// connection-manager pattern onto the events.Hub fan-out primitive.
type HTTPServer struct {
	hub     Broadcaster
	handler Handler
}

// NewHTTPServer wires a Hub and a command Handler into an HTTP mux.
func NewHTTPServer(hub Broadcaster, handler Handler) *HTTPServer {
	return &HTTPServer{hub: hub, handler: handler}
}

// Mux returns an http.ServeMux with every route registered, so the
// caller controls the listener lifecycle (cmd/canvas-sync owns
// http.ListenAndServe).
func (s *HTTPServer) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.streamHandler)
	mux.HandleFunc("/command", s.commandHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *HTTPServer) streamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.NewString()
	ch := s.hub.Register(clientID, 256)
	defer s.hub.Unregister(clientID)

	writeSSE(w, "connection_ready", map[string]string{"clientId": clientID})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(msg)
			if err != nil {
				slog.Error("transport: sse marshal failed", "component", "transport", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) commandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid message body", http.StatusBadRequest)
		return
	}
	resp := s.handler(&msg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if resp != nil {
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}
