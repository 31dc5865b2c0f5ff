// Package main runs a demo client: it submits a small routing problem,
// watches its solve event stream over WebSocket and triggers a solve.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const demoProblem = `{
  "locations": [{"id": "depot"}, {"id": "a"}, {"id": "b"}],
  "shipments": [
    {"id": "s1", "pickup": "depot", "delivery": "a", "weight": 5},
    {"id": "s2", "pickup": "depot", "delivery": "b", "weight": 3}
  ],
  "vehicles": [{"id": "v1", "maxWeight": 10, "shifts": [{"window": {"min": 0, "max": 3600}, "start": "depot", "end": "depot"}]}],
  "matrix": [
    {"from": "depot", "to": "a", "distance": 100, "duration": 60},
    {"from": "a", "to": "depot", "distance": 100, "duration": 60},
    {"from": "depot", "to": "b", "distance": 150, "duration": 90},
    {"from": "b", "to": "depot", "distance": 150, "duration": 90},
    {"from": "a", "to": "b", "distance": 80, "duration": 45},
    {"from": "b", "to": "a", "distance": 80, "duration": 45}
  ]
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	resp, err := http.Post(base+"/v1/problems", "application/json", bytes.NewReader([]byte(demoProblem)))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		log.Fatal(err)
	}
	if created.ID == "" {
		log.Fatal("no problem id returned")
	}
	log.Printf("Problem ID: %s", created.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/problems/" + created.ID + "/stream"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			}
			if err := c.ReadJSON(&evt); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %v", evt.Type, evt.Data)
		}
	}()

	// Give the stream a moment before kicking off the solve.
	time.Sleep(500 * time.Millisecond)
	body := fmt.Sprintf(`{"problemId": %q, "budgetMs": 1000, "seed": 42}`, created.ID)
	sresp, err := http.Post(base+"/v1/solve", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		log.Fatal(err)
	}
	var outcome map[string]any
	_ = json.NewDecoder(sresp.Body).Decode(&outcome)
	_ = sresp.Body.Close()
	log.Printf("Solve outcome: status=%v elapsedMs=%v", outcome["status"], outcome["elapsedMs"])

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
