package solver

import (
	"context"
	"time"

	"fleetsolve/internal/backend"
)

// fakeBackend records every registration so tests can assert exactly what the
// configurator and linker told the engine, and replays a scripted assignment
// from Solve.
type fakeBackend struct {
	nodes    int
	vehicles int
	starts   []int
	ends     []int

	transits []backend.TransitFn
	unaries  []backend.UnaryFn

	dims []fakeDim

	spanCosts   map[string]map[int]int64
	cumulRanges map[string]map[int][2]int64
	lessOrEqual map[string][][2]int
	retained    map[string]map[int]bool

	arcEval   map[int]backend.Callback
	fixed     map[int]int64
	usedEmpty map[int]bool

	pairs        [][2]int
	breaks       map[int][]backend.BreakInterval
	breakDemands []int64

	maxStart map[string][]int
	minEnd   map[string][]int

	// rejectDimension makes AddDimension fail for that name.
	rejectDimension string

	asg      backend.Assignment
	solveErr error

	gotStrategy backend.SearchStrategy
	gotBudget   time.Duration
}

type fakeDim struct {
	name        string
	cb          backend.Callback
	slackBound  int64
	capacities  []int64
	startAtZero bool
}

func newFakeBackend(nodes, vehicles int, starts, ends []int) *fakeBackend {
	return &fakeBackend{
		nodes:       nodes,
		vehicles:    vehicles,
		starts:      starts,
		ends:        ends,
		spanCosts:   map[string]map[int]int64{},
		cumulRanges: map[string]map[int][2]int64{},
		lessOrEqual: map[string][][2]int{},
		retained:    map[string]map[int]bool{},
		arcEval:     map[int]backend.Callback{},
		fixed:       map[int]int64{},
		usedEmpty:   map[int]bool{},
		breaks:      map[int][]backend.BreakInterval{},
		maxStart:    map[string][]int{},
		minEnd:      map[string][]int{},
	}
}

// factory adapts the fake for solver.New while keeping a handle on the
// created instance.
func (f *fakeBackend) factory() backend.Factory {
	return func(nodes, vehicles int, starts, ends []int) backend.Model {
		f.nodes = nodes
		f.vehicles = vehicles
		f.starts = starts
		f.ends = ends
		return f
	}
}

// Callback handles: transit handles are even, unary handles odd.

func (f *fakeBackend) RegisterTransit(fn backend.TransitFn) backend.Callback {
	f.transits = append(f.transits, fn)
	return backend.Callback(2 * (len(f.transits) - 1))
}

func (f *fakeBackend) RegisterUnary(fn backend.UnaryFn) backend.Callback {
	f.unaries = append(f.unaries, fn)
	return backend.Callback(2*(len(f.unaries)-1) + 1)
}

func (f *fakeBackend) transitOf(cb backend.Callback) backend.TransitFn {
	return f.transits[int(cb)/2]
}

func (f *fakeBackend) unaryOf(cb backend.Callback) backend.UnaryFn {
	return f.unaries[(int(cb)-1)/2]
}

func (f *fakeBackend) AddDimension(cb backend.Callback, slackBound int64, capacities []int64, startAtZero bool, name string) error {
	if name == f.rejectDimension {
		return &backend.DimensionError{Dimension: name, Reason: "rejected by test"}
	}
	f.dims = append(f.dims, fakeDim{name: name, cb: cb, slackBound: slackBound, capacities: capacities, startAtZero: startAtZero})
	return nil
}

func (f *fakeBackend) dim(name string) *fakeDim {
	for i := range f.dims {
		if f.dims[i].name == name {
			return &f.dims[i]
		}
	}
	return nil
}

func (f *fakeBackend) requireDim(name string) error {
	if f.dim(name) == nil {
		return &backend.DimensionError{Dimension: name, Reason: "not registered"}
	}
	return nil
}

func (f *fakeBackend) SetSpanCost(name string, vehicle int, coefficient int64) error {
	if err := f.requireDim(name); err != nil {
		return err
	}
	if f.spanCosts[name] == nil {
		f.spanCosts[name] = map[int]int64{}
	}
	f.spanCosts[name][vehicle] = coefficient
	return nil
}

func (f *fakeBackend) SetCumulRange(name string, index int, min, max int64) error {
	if err := f.requireDim(name); err != nil {
		return err
	}
	if f.cumulRanges[name] == nil {
		f.cumulRanges[name] = map[int][2]int64{}
	}
	f.cumulRanges[name][index] = [2]int64{min, max}
	return nil
}

func (f *fakeBackend) AddCumulLessOrEqual(name string, left, right int) error {
	if err := f.requireDim(name); err != nil {
		return err
	}
	f.lessOrEqual[name] = append(f.lessOrEqual[name], [2]int{left, right})
	return nil
}

func (f *fakeBackend) RetainSlack(name string, index int) error {
	if err := f.requireDim(name); err != nil {
		return err
	}
	if f.retained[name] == nil {
		f.retained[name] = map[int]bool{}
	}
	f.retained[name][index] = true
	return nil
}

func (f *fakeBackend) SetArcCostEvaluator(vehicle int, cb backend.Callback) {
	f.arcEval[vehicle] = cb
}

func (f *fakeBackend) SetFixedCost(vehicle int, cost int64) {
	f.fixed[vehicle] = cost
}

func (f *fakeBackend) SetUsedWhenEmpty(vehicle int, used bool) {
	f.usedEmpty[vehicle] = used
}

func (f *fakeBackend) AddPickupDelivery(pickup, delivery int) {
	f.pairs = append(f.pairs, [2]int{pickup, delivery})
}

func (f *fakeBackend) SetBreakIntervals(vehicle int, intervals []backend.BreakInterval, demands []int64) error {
	f.breaks[vehicle] = intervals
	f.breakDemands = demands
	return nil
}

func (f *fakeBackend) MaximizeCumulStart(name string, vehicle int) error {
	if err := f.requireDim(name); err != nil {
		return err
	}
	f.maxStart[name] = append(f.maxStart[name], vehicle)
	return nil
}

func (f *fakeBackend) MinimizeCumulEnd(name string, vehicle int) error {
	if err := f.requireDim(name); err != nil {
		return err
	}
	f.minEnd[name] = append(f.minEnd[name], vehicle)
	return nil
}

func (f *fakeBackend) Solve(_ context.Context, strategy backend.SearchStrategy, budget time.Duration) (backend.Assignment, error) {
	f.gotStrategy = strategy
	f.gotBudget = budget
	return f.asg, f.solveErr
}

// scriptedAssignment replays fixed routes and bounds.
type scriptedAssignment struct {
	next  map[int]int
	cumul map[string]map[int][2]int64
	slack map[string]map[int][2]int64
}

func (a *scriptedAssignment) Next(index int) int {
	if n, ok := a.next[index]; ok {
		return n
	}
	return index
}

func (a *scriptedAssignment) CumulMin(dim string, index int) int64 { return a.cumul[dim][index][0] }
func (a *scriptedAssignment) CumulMax(dim string, index int) int64 { return a.cumul[dim][index][1] }

func (a *scriptedAssignment) SlackMin(dim string, index int) int64 {
	if a.slack == nil {
		return 0
	}
	return a.slack[dim][index][0]
}

func (a *scriptedAssignment) SlackMax(dim string, index int) int64 {
	if a.slack == nil {
		return 0
	}
	return a.slack[dim][index][1]
}
