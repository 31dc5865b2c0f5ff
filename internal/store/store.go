package store

import (
	"context"
	"errors"
	"time"
)

// Store is the persistence interface used by the API server and the webhook
// worker. Problems and solutions are stored as the JSON documents exchanged on
// the wire; the solver model is rebuilt from the document on demand.
type Store interface {
	// Problems
	CreateProblem(ctx context.Context, payload []byte, shipments, vehicles int) (Problem, error)
	GetProblem(ctx context.Context, id string) (Problem, error)
	ListProblems(ctx context.Context, cursor string, limit int) ([]Problem, string, error)

	// Solutions
	CreateSolution(ctx context.Context, sol Solution) (Solution, error)
	GetSolution(ctx context.Context, id string) (Solution, error)
	ListSolutions(ctx context.Context, problemID, cursor string, limit int) ([]Solution, string, error)
	SolveStats(ctx context.Context, since time.Time) (SolveStats, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, url, secret string, events []string) (Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]Subscription, string, error)
	SubscriptionsForEvent(ctx context.Context, eventType string) ([]Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error)
}

var ErrNotFound = errors.New("not found")

// Problem is a submitted routing problem document.
type Problem struct {
	ID        string
	Payload   []byte
	Shipments int
	Vehicles  int
	CreatedAt time.Time
}

// Solution statuses.
const (
	SolutionSolved     = "solved"
	SolutionInfeasible = "infeasible"
)

// Solution is the decoded outcome of one solve run. Infeasible runs are
// stored too, with an empty payload and status "infeasible".
type Solution struct {
	ID        string
	ProblemID string
	Status    string
	Payload   []byte
	Metrics   SolveMetrics
	BudgetMs  int64
	ElapsedMs int64
	CreatedAt time.Time
}

// SolveMetrics are the search counters reported by the backend for one run.
type SolveMetrics struct {
	Iterations    int64 `json:"iterations"`
	Improvements  int64 `json:"improvements"`
	AcceptedWorse int64 `json:"acceptedWorse"`
	BestCost      int64 `json:"bestCost"`
	FinalCost     int64 `json:"finalCost"`
}

// SolveStats aggregates solve runs for the metrics endpoint.
type SolveStats struct {
	Solves       int   `json:"solves"`
	Infeasible   int   `json:"infeasible"`
	AvgElapsedMs int64 `json:"avgElapsedMs"`
	MaxElapsedMs int64 `json:"maxElapsedMs"`
}

// Subscription is a webhook registration for solve lifecycle events.
type Subscription struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	CreatedAt time.Time `json:"createdAt"`
}

// Matches reports whether the subscription wants the event type.
func (s Subscription) Matches(eventType string) bool {
	for _, e := range s.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}
