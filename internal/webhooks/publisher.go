package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fleetsolve/internal/store"
)

// Event types emitted by the solve pipeline.
const (
	EventSolutionReady   = "solution.ready"
	EventSolveInfeasible = "solve.infeasible"
)

// Publisher fans a solve lifecycle event out to every matching subscription
// by enqueueing one delivery per subscriber. Delivery itself is the worker's
// job.
type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues the event for all matching subscriptions. Enqueue failures
// are dropped; webhook delivery is best effort and never blocks a solve.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) {
	subs, err := p.Store.SubscriptionsForEvent(ctx, eventType)
	if err != nil || len(subs) == 0 {
		return
	}
	payload := map[string]any{
		"id":   "evt_" + uuid.New().String(),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, _ := json.Marshal(payload)
	for _, s := range subs {
		_, _ = p.Store.EnqueueWebhook(ctx, s.ID, eventType, s.URL, s.Secret, body)
	}
}
