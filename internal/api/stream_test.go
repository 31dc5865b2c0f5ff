package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStreamTarget(t *testing.T) {
	cases := map[string]string{
		"/v1/problems/p1/stream": "p1",
		"/v1/problems/p1":        "",
		"/v1/problems/":          "",
		"/v1/problems//stream":   "",
		"/v1/solutions/p1":       "",
	}
	for path, want := range cases {
		if got := streamTarget(path); got != want {
			t.Errorf("streamTarget(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestStreamRelaysSolveEvents(t *testing.T) {
	s, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/problems", problemDoc)
	id := decodeBody(t, resp)["id"].(string)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/problems/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to subscribe before publishing.
	deadline := time.Now().Add(2 * time.Second)
	var got Event
	errCh := make(chan error, 1)
	go func() {
		_ = conn.SetReadDeadline(deadline)
		errCh <- conn.ReadJSON(&got)
	}()
	for i := 0; i < 20; i++ {
		s.Broker.Publish(id, Event{Type: EventSolveStarted, Data: map[string]any{"problemId": id}})
		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if got.Type != EventSolveStarted || got.Data["problemId"] != id {
				t.Fatalf("unexpected event: %+v", got)
			}
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatal("no event relayed before deadline")
}

func TestStreamUnknownProblem(t *testing.T) {
	_, ts := newTestServer(t, nil)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/problems/missing/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial should fail for an unknown problem")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}
