package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// StreamHandler handles GET /v1/problems/{id}/stream: upgrades to a
// websocket and relays the problem's solve events until the client goes away.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request, problemID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.Store.GetProblem(r.Context(), problemID); err != nil {
		writeProblem(w, http.StatusNotFound, "Problem not found", "", r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(problemID)
	defer s.Broker.Unsubscribe(problemID, ch)

	conn.SetReadLimit(1 << 16)
	// Drain client frames so close/ping control messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}

// streamTarget extracts the problem ID from /v1/problems/{id}/stream paths,
// returning "" when the path is not a stream request.
func streamTarget(path string) string {
	rest := strings.TrimPrefix(path, "/v1/problems/")
	if rest == path {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) == 2 && parts[1] == "stream" && parts[0] != "" {
		return parts[0]
	}
	return ""
}
