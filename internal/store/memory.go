package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
// Listing order is insertion order; cursors are the last returned ID.
type Memory struct {
	mu          sync.Mutex
	problems    map[string]Problem
	problemIDs  []string
	solutions   map[string]Solution
	solutionIDs []string
	subs        []Subscription
	deliveries  map[string]*WebhookDelivery
	deliveryIDs []string
}

func NewMemory() *Memory {
	return &Memory{
		problems:   map[string]Problem{},
		solutions:  map[string]Solution{},
		deliveries: map[string]*WebhookDelivery{},
	}
}

func (m *Memory) CreateProblem(ctx context.Context, payload []byte, shipments, vehicles int) (Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Problem{
		ID:        uuid.New().String(),
		Payload:   append([]byte(nil), payload...),
		Shipments: shipments,
		Vehicles:  vehicles,
		CreatedAt: time.Now().UTC(),
	}
	m.problems[p.ID] = p
	m.problemIDs = append(m.problemIDs, p.ID)
	return p, nil
}

func (m *Memory) GetProblem(ctx context.Context, id string) (Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return Problem{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListProblems(ctx context.Context, cursor string, limit int) ([]Problem, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := pageIDs(m.problemIDs, cursor, &limit)
	out := make([]Problem, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.problems[id])
	}
	return out, nextCursor(ids, limit), nil
}

func (m *Memory) CreateSolution(ctx context.Context, sol Solution) (Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sol.ID == "" {
		sol.ID = uuid.New().String()
	}
	if sol.CreatedAt.IsZero() {
		sol.CreatedAt = time.Now().UTC()
	}
	m.solutions[sol.ID] = sol
	m.solutionIDs = append(m.solutionIDs, sol.ID)
	return sol, nil
}

func (m *Memory) GetSolution(ctx context.Context, id string) (Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.solutions[id]
	if !ok {
		return Solution{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListSolutions(ctx context.Context, problemID, cursor string, limit int) ([]Solution, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.solutionIDs
	if problemID != "" {
		ids = nil
		for _, id := range m.solutionIDs {
			if m.solutions[id].ProblemID == problemID {
				ids = append(ids, id)
			}
		}
	}
	ids = pageIDs(ids, cursor, &limit)
	out := make([]Solution, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.solutions[id])
	}
	return out, nextCursor(ids, limit), nil
}

func (m *Memory) SolveStats(ctx context.Context, since time.Time) (SolveStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st SolveStats
	var total int64
	for _, id := range m.solutionIDs {
		s := m.solutions[id]
		if !since.IsZero() && s.CreatedAt.Before(since) {
			continue
		}
		st.Solves++
		if s.Status == SolutionInfeasible {
			st.Infeasible++
		}
		total += s.ElapsedMs
		if s.ElapsedMs > st.MaxElapsedMs {
			st.MaxElapsedMs = s.ElapsedMs
		}
	}
	if st.Solves > 0 {
		st.AvgElapsedMs = total / int64(st.Solves)
	}
	return st, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, url, secret string, events []string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Subscription{
		ID:        uuid.New().String(),
		URL:       url,
		Secret:    secret,
		Events:    append([]string(nil), events...),
		CreatedAt: time.Now().UTC(),
	}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i := range m.subs {
			if m.subs[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(m.subs) {
		end = len(m.subs)
	}
	items := append([]Subscription(nil), m.subs[start:end]...)
	next := ""
	if end < len(m.subs) && len(items) > 0 {
		next = items[len(items)-1].ID
	}
	return items, next, nil
}

func (m *Memory) SubscriptionsForEvent(ctx context.Context, eventType string) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, s := range m.subs {
		if s.Matches(eventType) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subs {
		if m.subs[i].ID == id {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &WebhookDelivery{
		ID:             id,
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		URL:            url,
		Secret:         secret,
		Payload:        append([]byte(nil), payload...),
		Status:         "pending",
		NextAttemptAt:  time.Now(),
	}
	m.deliveryIDs = append(m.deliveryIDs, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliveryIDs {
		d := m.deliveries[id]
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		d.LastError = ""
		return nil
	}
	d.Status = "retry"
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.deliveryIDs
	if status != "" {
		ids = nil
		for _, id := range m.deliveryIDs {
			if m.deliveries[id].Status == status {
				ids = append(ids, id)
			}
		}
	}
	ids = pageIDs(ids, cursor, &limit)
	out := make([]WebhookDelivery, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.deliveries[id])
	}
	return out, nextCursor(ids, limit), nil
}

// pageIDs applies the (cursor, limit) window to an ordered ID slice and
// normalizes the limit in place.
func pageIDs(ids []string, cursor string, limit *int) []string {
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if *limit <= 0 {
		*limit = 100
	}
	end := start + *limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}

func nextCursor(page []string, limit int) string {
	if len(page) == limit && limit > 0 {
		return page[len(page)-1]
	}
	return ""
}
