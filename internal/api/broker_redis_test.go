package api

import (
	"encoding/json"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The relay loop is what stands between Redis and a subscriber's channel; it
// must forward decodable payloads, skip garbage, never block on a slow
// subscriber, and be the only side that closes the event channel.
func TestRedisRelayForwardsAndCloses(t *testing.T) {
	msgs := make(chan *redis.Message, 2)
	ch := make(chan Event, 1)

	payload, _ := json.Marshal(Event{Type: EventSolveSolved, Data: map[string]any{"problemId": "p1"}})
	msgs <- &redis.Message{Payload: string(payload)}
	msgs <- &redis.Message{Payload: "not json"}

	go relay(msgs, ch)

	select {
	case got := <-ch:
		if got.Type != EventSolveSolved || got.Data["problemId"] != "p1" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for relayed event")
	}

	// Closing the source (what PubSub.Close does) must close the event
	// channel from the relay side, with no send racing the close.
	close(msgs)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("garbage payload should have been dropped")
		}
	case <-time.After(time.Second):
		t.Fatal("relay did not close the event channel")
	}
}

func TestRedisRelayDropsWhenSubscriberIsSlow(t *testing.T) {
	msgs := make(chan *redis.Message)
	ch := make(chan Event, 1)
	go relay(msgs, ch)

	payload, _ := json.Marshal(Event{Type: EventSolveStarted})
	for i := 0; i < 50; i++ {
		select {
		case msgs <- &redis.Message{Payload: string(payload)}:
		case <-time.After(time.Second):
			t.Fatal("relay blocked on a full subscriber channel")
		}
	}
	close(msgs)
}
