package solver

import (
	"fleetsolve/internal/backend"
	"fleetsolve/internal/model"
)

// Dimension names, stable keys shared by the configurator, the linker and
// the decoder.
const (
	DimTime          = "time"
	DimDistance      = "distance"
	DimWeight        = "weight"
	DimRunningWeight = "running_weight"
	DimVisitOrder    = "visit_order"
)

// configure registers the transit/unary callbacks and the five cumulative
// dimensions, then wires per-vehicle costs.
//
// The arc-cost evaluator charges distance*distanceCost + duration*timeCost
// per arc while the Distance/Time dimensions also carry span costs with the
// same coefficients. That double counting matches the behavior consumers
// were calibrated against; do not fold one into the other without renegotiating
// cost semantics.
func configure(m *Model, b backend.Model) error {
	matrix := m.Problem.Matrix
	nodes := m.Nodes

	edge := func(from, to int) (model.Edge, bool) {
		f, t := nodes[from].Location, nodes[to].Location
		if f == nil || t == nil || f.Same(t) {
			return model.Edge{Defined: true}, true
		}
		e := matrix.At(f, t)
		return e, e.Defined
	}

	timeCb := b.RegisterTransit(func(from, to int) int64 {
		e, ok := edge(from, to)
		if !ok {
			return model.Infinity
		}
		return satAdd(e.Duration, nodes[from].TimeDemand)
	})
	distanceCb := b.RegisterTransit(func(from, to int) int64 {
		e, ok := edge(from, to)
		if !ok {
			return model.Infinity
		}
		return e.Distance
	})
	weightCb := b.RegisterUnary(func(node int) int64 {
		return nodes[node].WeightDemand
	})
	runningWeightCb := b.RegisterUnary(func(node int) int64 {
		if d := nodes[node].WeightDemand; d > 0 {
			return d
		}
		return 0
	})
	orderCb := b.RegisterUnary(func(int) int64 { return 1 })

	n := len(m.Vehicles)
	maxDurations := make([]int64, n)
	maxDistances := make([]int64, n)
	maxWeights := make([]int64, n)
	unbounded := make([]int64, n)
	for i, dv := range m.Vehicles {
		maxDurations[i] = dv.MaxDuration
		maxDistances[i] = dv.MaxDistance
		maxWeights[i] = dv.MaxWeight
		unbounded[i] = model.Infinity
	}

	// Time is an absolute clock: it does not start at zero, and waiting is
	// bounded only by the cumul windows themselves.
	if err := b.AddDimension(timeCb, model.Infinity, maxDurations, false, DimTime); err != nil {
		return err
	}
	if err := b.AddDimension(distanceCb, 0, maxDistances, true, DimDistance); err != nil {
		return err
	}
	if err := b.AddDimension(weightCb, 0, maxWeights, true, DimWeight); err != nil {
		return err
	}
	if err := b.AddDimension(runningWeightCb, 0, unbounded, true, DimRunningWeight); err != nil {
		return err
	}
	// Visit order is not a physical quantity; it exists to assert
	// pickup-before-delivery through cumul inequalities.
	if err := b.AddDimension(orderCb, 0, unbounded, true, DimVisitOrder); err != nil {
		return err
	}

	for _, dv := range m.Vehicles {
		dv := dv
		if err := b.SetSpanCost(DimTime, dv.Index, dv.TimeCost); err != nil {
			return err
		}
		if err := b.SetSpanCost(DimDistance, dv.Index, dv.DistanceCost); err != nil {
			return err
		}
		if err := b.SetSpanCost(DimRunningWeight, dv.Index, dv.WeightCost); err != nil {
			return err
		}

		arcCb := b.RegisterTransit(func(from, to int) int64 {
			e, ok := edge(from, to)
			if !ok {
				return model.Infinity
			}
			return satAdd(satMul(e.Distance, dv.DistanceCost), satMul(e.Duration, dv.TimeCost))
		})
		b.SetArcCostEvaluator(dv.Index, arcCb)

		fixed := satAdd(dv.FixedCost, dv.BaseCost)
		b.SetFixedCost(dv.Index, fixed)
		if fixed > 0 {
			// Account for the vehicle even when it carries nothing.
			b.SetUsedWhenEmpty(dv.Index, true)
		}
	}
	return nil
}
