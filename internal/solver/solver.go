package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetsolve/internal/backend"
	"fleetsolve/internal/model"
)

// ConfigError is a fatal model-configuration failure: the backend rejected a
// dimension or constraint registration. It signals a logic bug in the
// configurator and is never retried.
type ConfigError struct {
	Dimension string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("solver configuration: dimension %q: %v", e.Dimension, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SolveError wraps any failure raised while building, solving or decoding,
// so callers have a single error type to catch. Infeasibility is not an
// error and never produces one.
type SolveError struct {
	Err error
}

func (e *SolveError) Error() string { return fmt.Sprintf("solve: %v", e.Err) }

func (e *SolveError) Unwrap() error { return e.Err }

// Options tune one solve call.
type Options struct {
	// Budget is the wall-clock search budget, advisory to the backend.
	Budget   time.Duration
	Strategy backend.SearchStrategy
}

// Solver compiles problems for a backend and decodes its assignments. One
// Solver may serve concurrent Solve calls: each call builds and owns its own
// model and backend instance.
type Solver struct {
	factory backend.Factory
	opts    Options
}

// New creates a solver over a backend factory.
func New(factory backend.Factory, opts Options) *Solver {
	if opts.Budget <= 0 {
		opts.Budget = time.Second
	}
	return &Solver{factory: factory, opts: opts}
}

// Solve runs the full pipeline: build, configure, link, invoke, decode.
// An empty (non-nil) solution means the backend found no feasible routing.
func (s *Solver) Solve(ctx context.Context, p *model.Problem) (sol *model.Solution, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SolveError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	m := Build(p)
	b := s.factory(len(m.Nodes), len(m.Vehicles), m.Starts, m.Ends)

	if cfgErr := configure(m, b); cfgErr != nil {
		return nil, wrapConfig(cfgErr)
	}
	if linkErr := link(m, b); linkErr != nil {
		return nil, wrapConfig(linkErr)
	}

	asg, solveErr := b.Solve(ctx, s.opts.Strategy, s.opts.Budget)
	if solveErr != nil {
		return nil, &SolveError{Err: solveErr}
	}
	if asg == nil {
		// Infeasible: a first-class outcome.
		return &model.Solution{}, nil
	}
	return decode(m, asg), nil
}

func wrapConfig(err error) error {
	var derr *backend.DimensionError
	if errors.As(err, &derr) {
		return &ConfigError{Dimension: derr.Dimension, Err: err}
	}
	return &ConfigError{Dimension: "", Err: err}
}
