package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres persists through database/sql over the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Ping reports database reachability for readiness probes.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist yet. Safe to run at every
// startup.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS problems (
    id          uuid PRIMARY KEY,
    payload     jsonb NOT NULL,
    shipments   int NOT NULL,
    vehicles    int NOT NULL,
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS solutions (
    id          uuid PRIMARY KEY,
    problem_id  uuid NOT NULL REFERENCES problems(id),
    status      text NOT NULL,
    payload     jsonb,
    metrics     jsonb,
    budget_ms   bigint NOT NULL DEFAULT 0,
    elapsed_ms  bigint NOT NULL DEFAULT 0,
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS solutions_problem_idx ON solutions(problem_id);
CREATE TABLE IF NOT EXISTS subscriptions (
    id          uuid PRIMARY KEY,
    url         text NOT NULL,
    secret      text,
    events      text[] NOT NULL,
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id              uuid PRIMARY KEY,
    subscription_id uuid,
    event_type      text NOT NULL,
    url             text NOT NULL,
    secret          text,
    payload         jsonb,
    status          text NOT NULL DEFAULT 'pending',
    attempts        int NOT NULL DEFAULT 0,
    next_attempt_at timestamptz NOT NULL DEFAULT now(),
    last_error      text,
    response_code   int,
    latency_ms      int,
    delivered_at    timestamptz,
    updated_at      timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS webhook_due_idx ON webhook_deliveries(status, next_attempt_at);
`

func (p *Postgres) CreateProblem(ctx context.Context, payload []byte, shipments, vehicles int) (Problem, error) {
	id := uuid.New().String()
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO problems (id, payload, shipments, vehicles) VALUES ($1,$2,$3,$4) RETURNING created_at`,
		id, payload, shipments, vehicles).Scan(&created)
	if err != nil {
		return Problem{}, err
	}
	return Problem{ID: id, Payload: payload, Shipments: shipments, Vehicles: vehicles, CreatedAt: created}, nil
}

func (p *Postgres) GetProblem(ctx context.Context, id string) (Problem, error) {
	var out Problem
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, payload, shipments, vehicles, created_at FROM problems WHERE id=$1`, id).
		Scan(&out.ID, &out.Payload, &out.Shipments, &out.Vehicles, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Problem{}, ErrNotFound
	}
	return out, err
}

func (p *Postgres) ListProblems(ctx context.Context, cursor string, limit int) ([]Problem, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, payload, shipments, vehicles, created_at FROM problems WHERE id::text > $1 ORDER BY id LIMIT $2`,
			cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, payload, shipments, vehicles, created_at FROM problems ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Problem{}
	for rows.Next() {
		var pr Problem
		if err := rows.Scan(&pr.ID, &pr.Payload, &pr.Shipments, &pr.Vehicles, &pr.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, pr)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) CreateSolution(ctx context.Context, sol Solution) (Solution, error) {
	if sol.ID == "" {
		sol.ID = uuid.New().String()
	}
	metrics, err := json.Marshal(sol.Metrics)
	if err != nil {
		return Solution{}, err
	}
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO solutions (id, problem_id, status, payload, metrics, budget_ms, elapsed_ms)
         VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at`,
		sol.ID, sol.ProblemID, sol.Status, nullIfEmptyBytes(sol.Payload), metrics, sol.BudgetMs, sol.ElapsedMs).
		Scan(&sol.CreatedAt)
	if err != nil {
		return Solution{}, err
	}
	return sol, nil
}

func (p *Postgres) GetSolution(ctx context.Context, id string) (Solution, error) {
	var out Solution
	var metrics []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, problem_id::text, status, COALESCE(payload,'null'), COALESCE(metrics,'{}'), budget_ms, elapsed_ms, created_at
         FROM solutions WHERE id=$1`, id).
		Scan(&out.ID, &out.ProblemID, &out.Status, &out.Payload, &metrics, &out.BudgetMs, &out.ElapsedMs, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Solution{}, ErrNotFound
	}
	if err != nil {
		return Solution{}, err
	}
	if err := json.Unmarshal(metrics, &out.Metrics); err != nil {
		return Solution{}, err
	}
	return out, nil
}

func (p *Postgres) ListSolutions(ctx context.Context, problemID, cursor string, limit int) ([]Solution, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, problem_id::text, status, COALESCE(payload,'null'), COALESCE(metrics,'{}'), budget_ms, elapsed_ms, created_at FROM solutions`
	args := []any{}
	where := ""
	if problemID != "" {
		args = append(args, problemID)
		where = ` WHERE problem_id=$1`
	}
	if cursor != "" {
		args = append(args, cursor)
		if where == "" {
			where = ` WHERE id::text > $1`
		} else {
			where += ` AND id::text > $2`
		}
	}
	args = append(args, limit)
	q += where + ` ORDER BY id LIMIT $` + itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Solution{}
	for rows.Next() {
		var s Solution
		var metrics []byte
		if err := rows.Scan(&s.ID, &s.ProblemID, &s.Status, &s.Payload, &metrics, &s.BudgetMs, &s.ElapsedMs, &s.CreatedAt); err != nil {
			return nil, "", err
		}
		if err := json.Unmarshal(metrics, &s.Metrics); err != nil {
			return nil, "", err
		}
		out = append(out, s)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) SolveStats(ctx context.Context, since time.Time) (SolveStats, error) {
	var st SolveStats
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
                COALESCE(SUM(CASE WHEN status=$1 THEN 1 ELSE 0 END),0),
                COALESCE(AVG(elapsed_ms),0)::bigint,
                COALESCE(MAX(elapsed_ms),0)
         FROM solutions WHERE created_at >= $2`,
		SolutionInfeasible, since).
		Scan(&st.Solves, &st.Infeasible, &st.AvgElapsedMs, &st.MaxElapsedMs)
	return st, err
}

func (p *Postgres) CreateSubscription(ctx context.Context, url, secret string, events []string) (Subscription, error) {
	s := Subscription{ID: uuid.New().String(), URL: url, Secret: secret, Events: events}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO subscriptions (id, url, secret, events) VALUES ($1,$2,$3,$4) RETURNING created_at`,
		s.ID, url, nullIfEmpty(secret), pqStringArray(events)).Scan(&s.CreatedAt)
	if err != nil {
		return Subscription{}, err
	}
	return s, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, url, COALESCE(secret,''), events, created_at FROM subscriptions WHERE id::text > $1 ORDER BY id LIMIT $2`,
			cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, url, COALESCE(secret,''), events, created_at FROM subscriptions ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Subscription{}
	for rows.Next() {
		var s Subscription
		var events string
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events, &s.CreatedAt); err != nil {
			return nil, "", err
		}
		s.Events = parsePgTextArray(events)
		out = append(out, s)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) SubscriptionsForEvent(ctx context.Context, eventType string) ([]Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, COALESCE(secret,''), events, created_at FROM subscriptions WHERE $1 = ANY(events) OR '*' = ANY(events)`,
		eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		var s Subscription
		var events string
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Events = parsePgTextArray(events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
         VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), COALESCE(payload,'null'), status, attempts
         FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now()
         ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(),
             response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
		return err
	}
	if nextAttemptAt == nil {
		t := time.Now().Add(time.Minute)
		nextAttemptAt = &t
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3,
         updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode, latencyMs int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0)
          FROM webhook_deliveries`
	args := []any{}
	where := ""
	if status != "" {
		args = append(args, status)
		where = ` WHERE status=$1`
	}
	if cursor != "" {
		args = append(args, cursor)
		if where == "" {
			where = ` WHERE id::text > $1`
		} else {
			where += ` AND id::text > $2`
		}
	}
	args = append(args, limit)
	q += where + ` ORDER BY id LIMIT $` + itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Status, &d.Attempts, &d.NextAttemptAt, &d.LastError, &d.ResponseCode, &d.LatencyMs); err != nil {
			return nil, "", err
		}
		out = append(out, d)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfEmptyBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func itoa(n int) string { return strconv.Itoa(n) }

// pqStringArray renders a []string as a Postgres array literal.
func pqStringArray(v []string) string {
	out := "{"
	for i, s := range v {
		if i > 0 {
			out += ","
		}
		out += `"` + escapePgElem(s) + `"`
	}
	return out + "}"
}

// parsePgTextArray decodes the text form of a text[] column. Event names are
// plain identifiers, so only quote/backslash escapes are handled.
func parsePgTextArray(s string) []string {
	if len(s) < 2 || s[0] != '{' {
		return nil
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return []string{}
	}
	var out []string
	var cur []byte
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			cur = append(cur, s[i])
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			out = append(out, string(cur))
			cur = cur[:0]
		default:
			cur = append(cur, c)
		}
	}
	out = append(out, string(cur))
	return out
}

func escapePgElem(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
