// Package local is the in-process constraint-routing engine. It implements
// the backend contract with an adaptive large-neighborhood search: a greedy
// first solution, random/related removal, greedy/regret-2 reinsertion, 2-opt
// polishing, and simulated-annealing acceptance under a wall-clock budget.
//
// Feasibility is judged only through the registered dimensions, so the engine
// knows nothing about shipments or shifts; it routes opaque node indices.
package local

import (
	"fmt"
	"math"

	"fleetsolve/internal/backend"
)

const maxCost = math.MaxInt64

type callback struct {
	transit backend.TransitFn
	unary   backend.UnaryFn
}

type dimension struct {
	name        string
	cb          callback
	slackBound  int64
	capacities  []int64
	startAtZero bool
	cumulMin    []int64
	cumulMax    []int64
	retain      []bool
	lessOrEqual [][2]int
	spanCost    []int64
}

// Model accumulates registrations until Solve. Not safe for concurrent use;
// one model serves exactly one solve.
type Model struct {
	nodes    int
	vehicles int
	starts   []int
	ends     []int
	endpoint []bool

	callbacks []callback
	dims      []*dimension
	dimIndex  map[string]int

	arcCost       []backend.Callback
	fixedCost     []int64
	usedWhenEmpty []bool

	pairs [][2]int

	breaks [][]backend.BreakInterval

	maximizeStart map[string][]bool
	minimizeEnd   map[string][]bool

	metrics Metrics
}

var _ backend.Model = (*Model)(nil)

// New creates a model over a dense node index space; it satisfies
// backend.Factory. starts and ends carry one node index per vehicle.
func New(nodes, vehicles int, starts, ends []int) backend.Model {
	if len(starts) != vehicles || len(ends) != vehicles {
		panic(fmt.Sprintf("local: %d vehicles but %d starts / %d ends", vehicles, len(starts), len(ends)))
	}
	m := &Model{
		nodes:         nodes,
		vehicles:      vehicles,
		starts:        append([]int(nil), starts...),
		ends:          append([]int(nil), ends...),
		endpoint:      make([]bool, nodes),
		dimIndex:      map[string]int{},
		arcCost:       make([]backend.Callback, vehicles),
		fixedCost:     make([]int64, vehicles),
		usedWhenEmpty: make([]bool, vehicles),
		breaks:        make([][]backend.BreakInterval, vehicles),
		maximizeStart: map[string][]bool{},
		minimizeEnd:   map[string][]bool{},
	}
	for i := range m.arcCost {
		m.arcCost[i] = -1
	}
	for _, idx := range starts {
		m.endpoint[idx] = true
	}
	for _, idx := range ends {
		m.endpoint[idx] = true
	}
	return m
}

func (m *Model) RegisterTransit(fn backend.TransitFn) backend.Callback {
	m.callbacks = append(m.callbacks, callback{transit: fn})
	return backend.Callback(len(m.callbacks) - 1)
}

func (m *Model) RegisterUnary(fn backend.UnaryFn) backend.Callback {
	m.callbacks = append(m.callbacks, callback{unary: fn})
	return backend.Callback(len(m.callbacks) - 1)
}

func (m *Model) callbackAt(cb backend.Callback) (callback, bool) {
	if int(cb) < 0 || int(cb) >= len(m.callbacks) {
		return callback{}, false
	}
	return m.callbacks[cb], true
}

func (m *Model) AddDimension(cb backend.Callback, slackBound int64, capacities []int64, startAtZero bool, name string) error {
	if _, dup := m.dimIndex[name]; dup {
		return &backend.DimensionError{Dimension: name, Reason: "already registered"}
	}
	if len(capacities) != m.vehicles {
		return &backend.DimensionError{Dimension: name, Reason: fmt.Sprintf("%d capacities for %d vehicles", len(capacities), m.vehicles)}
	}
	c, ok := m.callbackAt(cb)
	if !ok {
		return &backend.DimensionError{Dimension: name, Reason: "unknown callback handle"}
	}
	d := &dimension{
		name:        name,
		cb:          c,
		slackBound:  slackBound,
		capacities:  append([]int64(nil), capacities...),
		startAtZero: startAtZero,
		cumulMin:    make([]int64, m.nodes),
		cumulMax:    make([]int64, m.nodes),
		retain:      make([]bool, m.nodes),
		spanCost:    make([]int64, m.vehicles),
	}
	for i := range d.cumulMax {
		d.cumulMax[i] = maxCost
	}
	m.dimIndex[name] = len(m.dims)
	m.dims = append(m.dims, d)
	return nil
}

func (m *Model) dim(name string) (*dimension, error) {
	i, ok := m.dimIndex[name]
	if !ok {
		return nil, &backend.DimensionError{Dimension: name, Reason: "not registered"}
	}
	return m.dims[i], nil
}

func (m *Model) SetSpanCost(name string, vehicle int, coefficient int64) error {
	d, err := m.dim(name)
	if err != nil {
		return err
	}
	if vehicle < 0 || vehicle >= m.vehicles {
		return &backend.DimensionError{Dimension: name, Reason: fmt.Sprintf("vehicle %d out of range", vehicle)}
	}
	d.spanCost[vehicle] = coefficient
	return nil
}

func (m *Model) SetCumulRange(name string, index int, min, max int64) error {
	d, err := m.dim(name)
	if err != nil {
		return err
	}
	if index < 0 || index >= m.nodes {
		return &backend.DimensionError{Dimension: name, Reason: fmt.Sprintf("index %d out of range", index)}
	}
	d.cumulMin[index] = min
	d.cumulMax[index] = max
	return nil
}

func (m *Model) AddCumulLessOrEqual(name string, left, right int) error {
	d, err := m.dim(name)
	if err != nil {
		return err
	}
	d.lessOrEqual = append(d.lessOrEqual, [2]int{left, right})
	return nil
}

func (m *Model) RetainSlack(name string, index int) error {
	d, err := m.dim(name)
	if err != nil {
		return err
	}
	if index < 0 || index >= m.nodes {
		return &backend.DimensionError{Dimension: name, Reason: fmt.Sprintf("index %d out of range", index)}
	}
	d.retain[index] = true
	return nil
}

func (m *Model) SetArcCostEvaluator(vehicle int, cb backend.Callback) {
	m.arcCost[vehicle] = cb
}

func (m *Model) SetFixedCost(vehicle int, cost int64) {
	m.fixedCost[vehicle] = cost
}

func (m *Model) SetUsedWhenEmpty(vehicle int, used bool) {
	m.usedWhenEmpty[vehicle] = used
}

func (m *Model) AddPickupDelivery(pickup, delivery int) {
	m.pairs = append(m.pairs, [2]int{pickup, delivery})
}

// SetBreakIntervals records a vehicle's break intervals. demands carry the
// per-node service time; they are validated but not kept: propagate folds a
// break in at an arrival, between the previous node's service (already inside
// the transit callback) and the next wait, so a break can never split a
// service block and the per-node values add nothing to that policy.
func (m *Model) SetBreakIntervals(vehicle int, intervals []backend.BreakInterval, demands []int64) error {
	if vehicle < 0 || vehicle >= m.vehicles {
		return &backend.DimensionError{Dimension: "breaks", Reason: fmt.Sprintf("vehicle %d out of range", vehicle)}
	}
	if len(demands) != m.nodes {
		return &backend.DimensionError{Dimension: "breaks", Reason: fmt.Sprintf("%d demands for %d nodes", len(demands), m.nodes)}
	}
	m.breaks[vehicle] = append([]backend.BreakInterval(nil), intervals...)
	return nil
}

// Finalizer hints are recorded for validation but advisory here: the engine
// already reports the full feasible cumul range per index, so the decoder
// sees both the latest feasible start and the earliest feasible end.
func (m *Model) MaximizeCumulStart(name string, vehicle int) error {
	if _, err := m.dim(name); err != nil {
		return err
	}
	if m.maximizeStart[name] == nil {
		m.maximizeStart[name] = make([]bool, m.vehicles)
	}
	m.maximizeStart[name][vehicle] = true
	return nil
}

func (m *Model) MinimizeCumulEnd(name string, vehicle int) error {
	if _, err := m.dim(name); err != nil {
		return err
	}
	if m.minimizeEnd[name] == nil {
		m.minimizeEnd[name] = make([]bool, m.vehicles)
	}
	m.minimizeEnd[name][vehicle] = true
	return nil
}

// clockDim is the dimension breaks are scheduled against: the first one that
// does not start at zero, i.e. the absolute-clock dimension.
func (m *Model) clockDim() *dimension {
	for _, d := range m.dims {
		if !d.startAtZero {
			return d
		}
	}
	return nil
}

// SearchMetrics returns counters from the last Solve call.
func (m *Model) SearchMetrics() Metrics { return m.metrics }
