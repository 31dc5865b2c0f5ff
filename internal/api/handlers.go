package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetsolve/internal/backend"
	"fleetsolve/internal/backend/local"
	"fleetsolve/internal/metrics"
	"fleetsolve/internal/solver"
	"fleetsolve/internal/store"
	"fleetsolve/internal/webhooks"
)

// SolveRequest triggers one solve run, either against a stored problem
// (problemId) or an inline document.
type SolveRequest struct {
	ProblemID          string     `json:"problemId,omitempty"`
	Problem            *ProblemIn `json:"problem,omitempty"`
	BudgetMs           int64      `json:"budgetMs,omitempty"`
	Seed               int64      `json:"seed,omitempty"`
	IterationLimit     int        `json:"iterationLimit,omitempty"`
	InitialTemperature float64    `json:"initialTemperature,omitempty"`
	Cooling            float64    `json:"cooling,omitempty"`
}

type problemMeta struct {
	ID        string    `json:"id"`
	Shipments int       `json:"shipments"`
	Vehicles  int       `json:"vehicles"`
	CreatedAt time.Time `json:"createdAt"`
}

func toProblemMeta(p store.Problem) problemMeta {
	return problemMeta{ID: p.ID, Shipments: p.Shipments, Vehicles: p.Vehicles, CreatedAt: p.CreatedAt}
}

// ProblemsHandler handles POST/GET /v1/problems.
func (s *Server) ProblemsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var in ProblemIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateProblemIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
			return
		}
		// Building proves all references resolve before anything is stored.
		if _, err := in.Build(); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
			return
		}
		payload, err := json.Marshal(in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Encode failed", err.Error(), r.URL.Path)
			return
		}
		rec, err := s.Store.CreateProblem(r.Context(), payload, len(in.Shipments), len(in.Vehicles))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create problem failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, toProblemMeta(rec))
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := parseLimit(r)
		items, next, err := s.Store.ListProblems(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List problems failed", err.Error(), r.URL.Path)
			return
		}
		metas := make([]problemMeta, 0, len(items))
		for _, p := range items {
			metas = append(metas, toProblemMeta(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": metas, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ProblemByIDHandler handles GET /v1/problems/{id} and the websocket stream
// at /v1/problems/{id}/stream.
func (s *Server) ProblemByIDHandler(w http.ResponseWriter, r *http.Request) {
	if id := streamTarget(r.URL.Path); id != "" {
		s.StreamHandler(w, r, id)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/problems/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.Store.GetProblem(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Problem not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get problem failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        rec.ID,
		"shipments": rec.Shipments,
		"vehicles":  rec.Vehicles,
		"createdAt": rec.CreatedAt,
		"problem":   json.RawMessage(rec.Payload),
	})
}

// SolveHandler handles POST /v1/solve: loads or stores the problem, runs the
// solver within the requested budget, persists the outcome and notifies
// stream watchers and webhook subscribers. Infeasibility is a 200 with
// status "infeasible", never an error.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "solve rate limit exceeded", r.URL.Path)
		return
	}
	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}

	var in ProblemIn
	var problemID string
	if req.ProblemID != "" {
		rec, err := s.Store.GetProblem(r.Context(), req.ProblemID)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Problem not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Get problem failed", err.Error(), r.URL.Path)
			return
		}
		if err := json.Unmarshal(rec.Payload, &in); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Stored problem unreadable", err.Error(), r.URL.Path)
			return
		}
		problemID = rec.ID
	} else {
		in = *req.Problem
		if err := validateProblemIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
			return
		}
		payload, err := json.Marshal(in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Encode failed", err.Error(), r.URL.Path)
			return
		}
		rec, err := s.Store.CreateProblem(r.Context(), payload, len(in.Shipments), len(in.Vehicles))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create problem failed", err.Error(), r.URL.Path)
			return
		}
		problemID = rec.ID
	}

	p, err := in.Build()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
		return
	}

	budget := time.Duration(s.Cfg.SolveBudgetMs) * time.Millisecond
	if req.BudgetMs > 0 {
		budget = time.Duration(req.BudgetMs) * time.Millisecond
	}
	strategy := backend.SearchStrategy{
		Seed:               req.Seed,
		IterationLimit:     req.IterationLimit,
		InitialTemperature: req.InitialTemperature,
		Cooling:            req.Cooling,
	}

	// A request-local factory wrapper keeps a handle on the backend instance
	// so search metrics survive the solve.
	var instance backend.Model
	factory := func(nodes, vehicles int, starts, ends []int) backend.Model {
		instance = s.Factory(nodes, vehicles, starts, ends)
		return instance
	}

	s.Broker.Publish(problemID, Event{Type: EventSolveStarted, Data: map[string]any{"problemId": problemID}})

	start := time.Now()
	sol, err := solver.New(factory, solver.Options{Budget: budget, Strategy: strategy}).Solve(r.Context(), p)
	elapsed := time.Since(start)
	if err != nil {
		metrics.Solves.WithLabelValues("error").Inc()
		s.Broker.Publish(problemID, Event{Type: EventSolveFailed, Data: map[string]any{"problemId": problemID, "error": err.Error()}})
		writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
		return
	}

	rec := store.Solution{
		ProblemID: problemID,
		BudgetMs:  budget.Milliseconds(),
		ElapsedMs: elapsed.Milliseconds(),
		Metrics:   searchMetrics(instance),
	}
	metrics.SolveDuration.Observe(elapsed.Seconds())
	metrics.SearchIterations.Observe(float64(rec.Metrics.Iterations))
	metrics.SearchImprovements.Observe(float64(rec.Metrics.Improvements))

	if sol.Empty() {
		rec.Status = store.SolutionInfeasible
		rec, err = s.Store.CreateSolution(r.Context(), rec)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Store solution failed", err.Error(), r.URL.Path)
			return
		}
		metrics.Solves.WithLabelValues("infeasible").Inc()
		s.Broker.Publish(problemID, Event{Type: EventSolveInfeasible, Data: map[string]any{"problemId": problemID, "solutionId": rec.ID}})
		s.Pub.Emit(r.Context(), webhooks.EventSolveInfeasible, map[string]any{"problemId": problemID, "solutionId": rec.ID})
		writeJSON(w, http.StatusOK, solutionResponse(rec))
		return
	}

	out := solutionOut(sol)
	payload, err := json.Marshal(out)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Encode failed", err.Error(), r.URL.Path)
		return
	}
	rec.Status = store.SolutionSolved
	rec.Payload = payload
	rec, err = s.Store.CreateSolution(r.Context(), rec)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Store solution failed", err.Error(), r.URL.Path)
		return
	}
	metrics.Solves.WithLabelValues("solved").Inc()
	s.Broker.Publish(problemID, Event{Type: EventSolveSolved, Data: map[string]any{"problemId": problemID, "solutionId": rec.ID}})
	s.Pub.Emit(r.Context(), webhooks.EventSolutionReady, map[string]any{"problemId": problemID, "solutionId": rec.ID})
	writeJSON(w, http.StatusOK, solutionResponse(rec))
}

func searchMetrics(instance backend.Model) store.SolveMetrics {
	type metricser interface{ SearchMetrics() local.Metrics }
	m, ok := instance.(metricser)
	if !ok {
		return store.SolveMetrics{}
	}
	sm := m.SearchMetrics()
	return store.SolveMetrics{
		Iterations:    int64(sm.Iterations),
		Improvements:  int64(sm.Improvements),
		AcceptedWorse: int64(sm.AcceptedWorse),
		BestCost:      sm.BestCost,
		FinalCost:     sm.FinalCost,
	}
}

func solutionResponse(rec store.Solution) map[string]any {
	resp := map[string]any{
		"id":        rec.ID,
		"problemId": rec.ProblemID,
		"status":    rec.Status,
		"budgetMs":  rec.BudgetMs,
		"elapsedMs": rec.ElapsedMs,
		"metrics":   rec.Metrics,
		"createdAt": rec.CreatedAt,
	}
	if len(rec.Payload) > 0 {
		resp["solution"] = json.RawMessage(rec.Payload)
	}
	return resp
}

// SolutionsHandler handles GET /v1/solutions with optional problemId filter.
func (s *Server) SolutionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, next, err := s.Store.ListSolutions(r.Context(), r.URL.Query().Get("problemId"), r.URL.Query().Get("cursor"), parseLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List solutions failed", err.Error(), r.URL.Path)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, rec := range items {
		out = append(out, solutionResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "nextCursor": next})
}

// SolutionByIDHandler handles GET /v1/solutions/{id}.
func (s *Server) SolutionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/solutions/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	rec, err := s.Store.GetSolution(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Solution not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get solution failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, solutionResponse(rec))
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			URL    string   `json:"url"`
			Secret string   `json:"secret,omitempty"`
			Events []string `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		for _, e := range req.Events {
			if e != "*" && e != webhooks.EventSolutionReady && e != webhooks.EventSolveInfeasible {
				writeProblem(w, http.StatusBadRequest, "Invalid subscription", "unknown event type "+e, r.URL.Path)
				return
			}
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req.URL, req.Secret, req.Events)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, next, err := s.Store.ListSubscriptions(r.Context(), r.URL.Query().Get("cursor"), parseLimit(r))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	err := s.Store.DeleteSubscription(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Subscription not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SolveStatsHandler handles GET /v1/metrics/solves.
func (s *Server) SolveStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid since", err.Error(), r.URL.Path)
			return
		}
		since = t
	}
	st, err := s.Store.SolveStats(r.Context(), since)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Solve stats failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries.
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), parseLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, d := range items {
		item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
		if !d.NextAttemptAt.IsZero() {
			item["nextAttemptAt"] = d.NextAttemptAt
		}
		if d.LastError != "" {
			item["lastError"] = d.LastError
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "nextCursor": next})
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports readiness: the database must answer when one is
// configured.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func parseLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 100
}
