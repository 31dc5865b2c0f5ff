// Package backend defines the contract between the solver-model compiler and
// a constraint-routing engine. The compiler speaks this vocabulary only:
// a dense node index space, transit/unary callbacks, cumulative dimensions,
// pickup/delivery links, break intervals, and a blocking Solve that yields an
// Assignment or nothing.
//
// Keeping the engine behind this interface lets the core run against the
// in-process engine in backend/local or against a scripted fake in tests.
package backend

import (
	"context"
	"fmt"
	"time"
)

// TransitFn supplies the cost contribution of an arc (from, to).
type TransitFn func(from, to int) int64

// UnaryFn supplies the demand contribution of a single node.
type UnaryFn func(node int) int64

// Callback is a handle returned by callback registration and consumed by
// dimension and arc-cost wiring.
type Callback int

// BreakInterval is one fixed-duration pause a vehicle may or must take inside
// its allowed window.
type BreakInterval struct {
	WindowMin int64
	WindowMax int64
	Duration  int64
	Optional  bool
}

// SearchStrategy tunes the engine's first-solution construction and
// metaheuristic phase. Zero values select engine defaults.
type SearchStrategy struct {
	// Seed makes the search deterministic when non-zero.
	Seed int64
	// IterationLimit caps metaheuristic iterations; 0 means budget-only.
	IterationLimit int
	// InitialTemperature and Cooling drive the acceptance schedule.
	InitialTemperature float64
	Cooling            float64
}

// Assignment is the engine's solution: successor links plus per-index bounds
// of every dimension's cumulative and slack variables.
type Assignment interface {
	// Next returns the successor of index on its vehicle's route.
	Next(index int) int
	CumulMin(dimension string, index int) int64
	CumulMax(dimension string, index int) int64
	SlackMin(dimension string, index int) int64
	SlackMax(dimension string, index int) int64
}

// Model is a routing model under construction. Registration happens in a
// fixed order: callbacks, then dimensions, then constraints referencing them;
// referencing a missing dimension is a configuration error.
type Model interface {
	RegisterTransit(fn TransitFn) Callback
	RegisterUnary(fn UnaryFn) Callback

	// AddDimension creates a cumulative dimension on a callback with one
	// capacity per vehicle. It fails on a duplicate name or a capacity
	// array whose length differs from the vehicle count.
	AddDimension(cb Callback, slackBound int64, capacities []int64, startAtZero bool, name string) error
	// SetSpanCost charges coefficient per unit of the dimension's total
	// accumulation over the vehicle's route.
	SetSpanCost(dimension string, vehicle int, coefficient int64) error
	// SetCumulRange clamps the dimension's cumulative variable at index.
	SetCumulRange(dimension string, index int, min, max int64) error
	// AddCumulLessOrEqual constrains cumul(left) <= cumul(right).
	AddCumulLessOrEqual(dimension string, left, right int) error
	// RetainSlack keeps the slack variable at index in the assignment.
	RetainSlack(dimension string, index int) error

	SetArcCostEvaluator(vehicle int, cb Callback)
	SetFixedCost(vehicle int, cost int64)
	SetUsedWhenEmpty(vehicle int, used bool)

	// AddPickupDelivery forces both nodes onto the same vehicle with the
	// pickup visited no later than the delivery.
	AddPickupDelivery(pickup, delivery int)
	// SetBreakIntervals attaches breaks to the vehicle's time dimension.
	// demands distinguishes service time from travel time per node so
	// breaks do not consume travel slack.
	SetBreakIntervals(vehicle int, intervals []BreakInterval, demands []int64) error

	// Finalizer hints: start routes as late and finish as early as the
	// constraints allow. Soft guidance, never a hard constraint.
	MaximizeCumulStart(dimension string, vehicle int) error
	MinimizeCumulEnd(dimension string, vehicle int) error

	// Solve blocks until a solution is found or the budget elapses. It
	// returns (nil, nil) when no feasible assignment exists: infeasibility
	// is an outcome, not an error.
	Solve(ctx context.Context, strategy SearchStrategy, budget time.Duration) (Assignment, error)
}

// Factory creates a model over a dense node index space. starts and ends hold
// one route start and end node index per vehicle, in vehicle index order.
type Factory func(nodes, vehicles int, starts, ends []int) Model

// DimensionError reports a rejected dimension or constraint registration.
type DimensionError struct {
	Dimension string
	Reason    string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension %q: %s", e.Dimension, e.Reason)
}
