package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis pub/sub so solve events reach
// watchers connected to other instances.
type RedisBroker struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt), subs: map[chan Event]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(problemID string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, channelName(problemID))
	// wait for the subscription to be live before handing out the channel
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go relay(ps.Channel(), ch)
	return ch
}

// relay forwards pub/sub payloads until the source channel is drained, then
// closes the event channel. The event channel is closed from this side only:
// Unsubscribe closing it would race an in-flight send here.
func relay(msgs <-chan *redis.Message, ch chan Event) {
	defer close(ch)
	for msg := range msgs {
		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
			select {
			case ch <- evt:
			default:
			}
		}
	}
}

// Unsubscribe closes the underlying pub/sub subscription; the relay goroutine
// observes the drained message channel and closes the event channel.
func (b *RedisBroker) Unsubscribe(problemID string, ch chan Event) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(problemID string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, channelName(problemID), data).Err()
}

func channelName(problemID string) string { return "solve:" + problemID }
