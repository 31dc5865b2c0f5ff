package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"fleetsolve/internal/backend"
	"fleetsolve/internal/backend/local"
	"fleetsolve/internal/config"
	"fleetsolve/internal/metrics"
	"fleetsolve/internal/store"
	"fleetsolve/internal/webhooks"
)

// Server carries the handler dependencies: storage, webhook publisher, event
// broker and the backend factory solves run against.
type Server struct {
	Store   store.Store
	Pub     *webhooks.Publisher
	Broker  EventBroker
	Cfg     config.Config
	Factory backend.Factory

	limiter *rate.Limiter
	ping    func(context.Context) error
}

// NewServer wires a server from configuration: Postgres when DATABASE_URL is
// set (in-memory otherwise), Redis broker when REDIS_URL is set.
func NewServer(cfg config.Config) (*Server, error) {
	var st store.Store
	var ping func(context.Context) error
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(context.Background()); err != nil {
			return nil, err
		}
		st = pg
		ping = pg.Ping
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = NewBroker()
	}
	return NewServerWith(cfg, st, broker, local.New, ping), nil
}

// NewServerWith assembles a server from explicit dependencies; tests use it
// to inject fakes.
func NewServerWith(cfg config.Config, st store.Store, broker EventBroker, factory backend.Factory, ping func(context.Context) error) *Server {
	metrics.RegisterDefault()
	return &Server{
		Store:   st,
		Pub:     webhooks.NewPublisher(st),
		Broker:  broker,
		Cfg:     cfg,
		Factory: factory,
		limiter: rate.NewLimiter(rate.Limit(cfg.SolveRatePerSec), cfg.SolveRateBurst),
		ping:    ping,
	}
}

// Routes builds the HTTP mux. Kept separate from NewServer so tests can mount
// the exact production routing.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/problems", s.requireAuth(s.ProblemsHandler))
	mux.HandleFunc("/v1/problems/", s.requireAuth(s.ProblemByIDHandler))
	mux.HandleFunc("/v1/solve", s.requireAuth(s.SolveHandler))
	mux.HandleFunc("/v1/solutions", s.requireAuth(s.SolutionsHandler))
	mux.HandleFunc("/v1/solutions/", s.requireAuth(s.SolutionByIDHandler))
	mux.HandleFunc("/v1/subscriptions", s.requireAuth(s.SubscriptionsHandler))
	mux.HandleFunc("/v1/subscriptions/", s.requireAuth(s.SubscriptionByIDHandler))
	mux.HandleFunc("/v1/metrics/solves", s.requireAuth(s.SolveStatsHandler))
	mux.HandleFunc("/v1/admin/webhook-deliveries", s.requireAuth(s.WebhookDeliveriesHandler))
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/version", s.VersionHandler)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

// NewWebhookWorker creates the background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts)
}
