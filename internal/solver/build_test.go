package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetsolve/internal/model"
)

func TestBuildCountsAndStores(t *testing.T) {
	a, b, c := mustLocation(t, "a"), mustLocation(t, "b"), mustLocation(t, "c")
	s1 := mustShipment(t, "s1", a, b)
	s2 := mustShipment(t, "s2", b, c)

	w := model.TimeWindow{Min: 0, Max: 100}
	v1 := mustVehicle(t, "v1", model.NewShift(w, nil), model.NewShift(w, nil))
	v2 := mustVehicle(t, "v2", model.NewShift(w, nil))

	p := mustProblem(t, []*model.Shipment{s1, s2}, []*model.Vehicle{v1, v2}, model.NewRouteMatrix())
	m := Build(p)

	// 2 shipments and 3 shifts: 2*2 + 2*3 nodes.
	require.Len(t, m.Nodes, 10)
	require.Len(t, m.Vehicles, 3)
	require.Len(t, m.Starts, 3)
	require.Len(t, m.Ends, 3)

	// Indices are dense, 0-based, in creation order.
	for i, n := range m.Nodes {
		assert.Equal(t, i, n.Index)
	}

	// Every node is reachable from exactly one store entry.
	seen := make([]int, len(m.Nodes))
	for _, pair := range m.ShipmentNodes {
		seen[pair.First.Index]++
		seen[pair.Second.Index]++
		assert.Equal(t, NodePickup, pair.First.Kind)
		assert.Equal(t, NodeDelivery, pair.Second.Kind)
	}
	for _, pair := range m.VehicleNodes {
		seen[pair.First.Index]++
		seen[pair.Second.Index]++
		assert.Equal(t, NodeShiftStart, pair.First.Kind)
		assert.Equal(t, NodeShiftEnd, pair.Second.Kind)
	}
	for i, count := range seen {
		assert.Equal(t, 1, count, "node %d referenced %d times", i, count)
	}
}

func TestBuildWeightDemandsAreSymmetric(t *testing.T) {
	a, b := mustLocation(t, "a"), mustLocation(t, "b")
	s := mustShipment(t, "s1", a, b)
	s.Units = []model.ShipUnit{{ID: "u1", Weight: 4}, {ID: "u2", Weight: 6}}
	s.PickupHandling = 3
	s.DeliveryHandling = 2

	v := mustVehicle(t, "v1", model.NewShift(model.TimeWindow{Min: 0, Max: 10}, nil))
	m := Build(mustProblem(t, []*model.Shipment{s}, []*model.Vehicle{v}, model.NewRouteMatrix()))

	pair := m.ShipmentNodes[s]
	assert.Equal(t, int64(10), pair.First.WeightDemand)
	assert.Equal(t, int64(-10), pair.Second.WeightDemand)
	assert.Equal(t, int64(3), pair.First.TimeDemand)
	assert.Equal(t, int64(2), pair.Second.TimeDemand)
}

func TestBuildCostBlending(t *testing.T) {
	w := model.TimeWindow{Min: 0, Max: 100}
	sh1 := model.NewShift(w, nil)
	sh1.FixedCost = 7
	sh2 := model.NewShift(w, nil)
	sh3 := model.NewShift(w, nil)
	sh3.DistanceCost = 2

	v := mustVehicle(t, "v1", sh1, sh2, sh3)
	v.FixedCost = 100
	v.BaseCost = 50
	v.DistanceCost = 3
	v.TimeCost = 4

	m := Build(mustProblem(t, nil, []*model.Vehicle{v}, model.NewRouteMatrix()))
	require.Len(t, m.Vehicles, 3)

	// Fixed and base costs divide evenly (integer division) across the
	// three shifts regardless of which shift is processed.
	assert.Equal(t, int64(100/3+7), m.Vehicles[0].FixedCost)
	assert.Equal(t, int64(100/3), m.Vehicles[1].FixedCost)
	assert.Equal(t, int64(100/3), m.Vehicles[2].FixedCost)
	for _, dv := range m.Vehicles {
		assert.Equal(t, int64(50/3), dv.BaseCost)
	}
	// Distance/time coefficients add, they are not divided.
	assert.Equal(t, int64(3), m.Vehicles[0].DistanceCost)
	assert.Equal(t, int64(3+2), m.Vehicles[2].DistanceCost)
	assert.Equal(t, int64(4), m.Vehicles[1].TimeCost)
}

func TestBuildSaturatesCostDivision(t *testing.T) {
	w := model.TimeWindow{Min: 0, Max: 100}
	v := mustVehicle(t, "v1", model.NewShift(w, nil), model.NewShift(w, nil))
	v.FixedCost = model.Infinity

	m := Build(mustProblem(t, nil, []*model.Vehicle{v}, model.NewRouteMatrix()))
	assert.Equal(t, model.Infinity, m.Vehicles[0].FixedCost, "infinite cost split stays infinite")
}

func TestBuildUnboundedDefaults(t *testing.T) {
	w := model.TimeWindow{Min: 5, Max: 50}
	sh := model.NewShift(w, nil)
	v := mustVehicle(t, "v1", sh)

	m := Build(mustProblem(t, nil, []*model.Vehicle{v}, model.NewRouteMatrix()))
	dv := m.Vehicles[0]
	assert.Equal(t, model.Infinity, dv.MaxWeight)
	assert.Equal(t, model.Infinity, dv.MaxDuration)
	assert.Equal(t, model.Infinity, dv.MaxDistance)
	assert.Equal(t, w, dv.Window)

	// Shift without start/end locations yields unconstrained endpoint nodes.
	pair := m.VehicleNodes[dv]
	assert.Nil(t, pair.First.Location)
	assert.Nil(t, pair.Second.Location)
}
