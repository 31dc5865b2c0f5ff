package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleetsolve/internal/backend/local"
	"fleetsolve/internal/config"
	"fleetsolve/internal/store"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.SolveBudgetMs = 50
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewServerWith(cfg, store.NewMemory(), NewBroker(), local.New, nil)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

const problemDoc = `{
  "locations": [{"id": "a"}, {"id": "b"}],
  "shipments": [{"id": "s1", "pickup": "a", "delivery": "b", "weight": 10}],
  "vehicles": [{"id": "v1", "shifts": [{"window": {"min": 0, "max": 1000}}]}],
  "matrix": [{"from": "a", "to": "b", "distance": 10, "duration": 5}]
}`

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestProblemLifecycle(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/problems", problemDoc)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	created := decodeBody(t, resp)
	id, _ := created["id"].(string)
	if id == "" || created["shipments"].(float64) != 1 || created["vehicles"].(float64) != 1 {
		t.Fatalf("unexpected create response: %v", created)
	}

	resp, err := http.Get(ts.URL + "/v1/problems")
	if err != nil {
		t.Fatal(err)
	}
	list := decodeBody(t, resp)
	if items := list["items"].([]any); len(items) != 1 {
		t.Fatalf("expected 1 problem, got %v", list)
	}

	resp, err = http.Get(ts.URL + "/v1/problems/" + id)
	if err != nil {
		t.Fatal(err)
	}
	got := decodeBody(t, resp)
	if got["problem"] == nil {
		t.Fatalf("problem document missing: %v", got)
	}

	resp, err = http.Get(ts.URL + "/v1/problems/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing problem: status %d", resp.StatusCode)
	}
}

func TestProblemValidation(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/problems", `{"shipments": [], "vehicles": []}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty problem: status %d", resp.StatusCode)
	}

	// Dangling location references are caught by the model build.
	bad := strings.Replace(problemDoc, `"pickup": "a"`, `"pickup": "nowhere"`, 1)
	resp = postJSON(t, ts.URL+"/v1/problems", bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad reference: status %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if detail, _ := body["detail"].(string); !strings.Contains(detail, "nowhere") {
		t.Fatalf("detail should name the missing location: %v", body)
	}
}

func TestSolveInlineProblem(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/solve", `{"problem": `+problemDoc+`, "seed": 1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("solve: status %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != store.SolutionSolved {
		t.Fatalf("expected solved, got %v", body["status"])
	}
	sol := body["solution"].(map[string]any)
	plans := sol["plans"].([]any)
	if len(plans) != 1 {
		t.Fatalf("expected one plan: %v", sol)
	}
	shifts := plans[0].(map[string]any)["shifts"].([]any)
	stops := shifts[0].(map[string]any)["stops"].([]any)
	if len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}

	// The run is persisted and listable by problem.
	problemID := body["problemId"].(string)
	resp, err := http.Get(ts.URL + "/v1/solutions?problemId=" + problemID)
	if err != nil {
		t.Fatal(err)
	}
	list := decodeBody(t, resp)
	items := list["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 solution, got %v", list)
	}
	solutionID := items[0].(map[string]any)["id"].(string)

	resp, err = http.Get(ts.URL + "/v1/solutions/" + solutionID)
	if err != nil {
		t.Fatal(err)
	}
	got := decodeBody(t, resp)
	if got["status"] != store.SolutionSolved {
		t.Fatalf("get solution: %v", got)
	}
}

func TestSolveStoredProblem(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/problems", problemDoc)
	id := decodeBody(t, resp)["id"].(string)

	resp = postJSON(t, ts.URL+"/v1/solve", `{"problemId": "`+id+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("solve: status %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["problemId"] != id {
		t.Fatalf("solution not linked to stored problem: %v", body)
	}
}

func TestSolveRequestValidation(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/solve", `{"problemId": "missing"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown problem: status %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/v1/solve", `{"problemId": "x", "problem": `+problemDoc+`}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("both problemId and inline problem: status %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/v1/solve", `{"problem": `+problemDoc+`, "cooling": 1.5}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad cooling: status %d", resp.StatusCode)
	}
}

func TestSolveInfeasibleOutcome(t *testing.T) {
	_, ts := newTestServer(t, nil)

	// Travel takes 5 but the delivery window closes at 1.
	doc := strings.Replace(problemDoc, `"weight": 10`, `"weight": 10, "deliveryWindow": {"min": 0, "max": 1}`, 1)
	resp := postJSON(t, ts.URL+"/v1/solve", `{"problem": `+doc+`}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("infeasible must be 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != store.SolutionInfeasible {
		t.Fatalf("expected infeasible, got %v", body["status"])
	}
	if _, ok := body["solution"]; ok {
		t.Fatalf("infeasible outcome must not carry a solution: %v", body)
	}
}

func TestSolveRateLimit(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.SolveRatePerSec = 0.0001
		c.SolveRateBurst = 1
	})

	resp := postJSON(t, ts.URL+"/v1/solve", `{"problem": `+problemDoc+`}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first solve: status %d", resp.StatusCode)
	}
	resp = postJSON(t, ts.URL+"/v1/solve", `{"problem": `+problemDoc+`}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second solve should be limited, got %d", resp.StatusCode)
	}
}

func TestSubscriptionsCRUD(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/subscriptions", `{"url": "https://example.com/hook", "events": ["solution.ready"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	sub := decodeBody(t, resp)
	id, _ := sub["id"].(string)
	if id == "" {
		t.Fatalf("subscription id missing: %v", sub)
	}
	if _, leaked := sub["secret"]; leaked {
		t.Fatalf("secret must not be echoed: %v", sub)
	}

	resp = postJSON(t, ts.URL+"/v1/subscriptions", `{"url": "https://example.com/hook", "events": ["bogus.event"]}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus event accepted: %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/v1/subscriptions")
	if err != nil {
		t.Fatal(err)
	}
	list := decodeBody(t, resp)
	if items := list["items"].([]any); len(items) != 1 {
		t.Fatalf("expected 1 subscription, got %v", list)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/subscriptions/"+id, nil)
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	dresp.Body.Close()
	if dresp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", dresp.StatusCode)
	}
	dresp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	dresp.Body.Close()
	if dresp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: status %d", dresp.StatusCode)
	}
}

func TestSolveEnqueuesWebhook(t *testing.T) {
	s, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/subscriptions", `{"url": "https://example.com/hook", "secret": "sec", "events": ["solution.ready"]}`)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/solve", `{"problem": `+problemDoc+`}`)
	resp.Body.Close()

	due, err := s.Store.FetchDueWebhookDeliveries(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].EventType != "solution.ready" {
		t.Fatalf("expected one solution.ready delivery, got %+v", due)
	}
}

func TestSolveStats(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/solve", `{"problem": `+problemDoc+`}`)
	resp.Body.Close()

	gresp, err := http.Get(ts.URL + "/v1/metrics/solves")
	if err != nil {
		t.Fatal(err)
	}
	stats := decodeBody(t, gresp)
	if stats["solves"].(float64) < 1 {
		t.Fatalf("expected at least one solve: %v", stats)
	}
}

func TestBearerAuth(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) { c.AuthToken = "sekrit" })

	resp, err := http.Get(ts.URL + "/v1/problems")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/problems", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: status %d", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("right token: status %d", resp.StatusCode)
	}

	// Health stays open.
	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
}

func TestReadyHandlerPing(t *testing.T) {
	cfg := config.Default()
	s := NewServerWith(cfg, store.NewMemory(), NewBroker(), local.New, func(context.Context) error {
		return context.DeadlineExceeded
	})
	rr := httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing ping: status %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: status %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "go_goroutines") {
		t.Fatal("runtime collectors missing from /metrics")
	}
}
