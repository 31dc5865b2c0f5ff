package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetsolve/internal/backend"
	"fleetsolve/internal/model"
)

func linkedFake(t *testing.T, p *model.Problem) (*Model, *fakeBackend) {
	t.Helper()
	m := Build(p)
	b := newFakeBackend(len(m.Nodes), len(m.Vehicles), m.Starts, m.Ends)
	require.NoError(t, configure(m, b))
	require.NoError(t, link(m, b))
	return m, b
}

func TestLinkPairsShipments(t *testing.T) {
	p, _, _ := oneShipmentProblem(t)
	m, b := linkedFake(t, p)

	pair := m.ShipmentNodes[p.Shipments[0]]
	require.Len(t, b.pairs, 1)
	assert.Equal(t, [2]int{pair.First.Index, pair.Second.Index}, b.pairs[0])

	// Pickup-before-delivery rides on the visit-order dimension.
	require.Len(t, b.lessOrEqual[DimVisitOrder], 1)
	assert.Equal(t, [2]int{pair.First.Index, pair.Second.Index}, b.lessOrEqual[DimVisitOrder][0])
}

func TestLinkCumulRanges(t *testing.T) {
	p, _, _ := oneShipmentProblem(t)
	p.Shipments[0].DeliveryWindow = &model.TimeWindow{Min: 30, Max: 60}
	m, b := linkedFake(t, p)

	pair := m.ShipmentNodes[p.Shipments[0]]
	ranges := b.cumulRanges[DimTime]

	// Pickup has no window and therefore no range.
	_, ok := ranges[pair.First.Index]
	assert.False(t, ok)
	assert.Equal(t, [2]int64{30, 60}, ranges[pair.Second.Index])

	// Start and end nodes carry the shift window.
	vp := m.VehicleNodes[m.Vehicles[0]]
	assert.Equal(t, [2]int64{0, 1000}, ranges[vp.First.Index])
	assert.Equal(t, [2]int64{0, 1000}, ranges[vp.Second.Index])
}

func TestLinkRetainsSlackEverywhere(t *testing.T) {
	p, _, _ := oneShipmentProblem(t)
	m, b := linkedFake(t, p)

	for _, n := range m.Nodes {
		assert.True(t, b.retained[DimTime][n.Index], "slack not retained at node %d", n.Index)
	}
}

func TestLinkBreakConversion(t *testing.T) {
	p, _, _ := oneShipmentProblem(t)
	shift := p.Vehicles[0].Shifts[0]
	shift.Breaks = []model.Break{
		{Window: model.TimeWindow{Min: 10, Max: 40}, Duration: 15, Option: model.BreakMandatory},
		{Window: model.TimeWindow{Min: 50, Max: 90}, Duration: 5, Option: model.BreakOptional},
		{Window: model.TimeWindow{Min: 0, Max: 1000}, Duration: 30, Option: model.BreakForbidden},
	}
	m, b := linkedFake(t, p)

	intervals := b.breaks[0]
	require.Len(t, intervals, 2, "forbidden breaks are dropped")
	assert.Equal(t, backend.BreakInterval{WindowMin: 10, WindowMax: 40, Duration: 15, Optional: false}, intervals[0])
	assert.Equal(t, backend.BreakInterval{WindowMin: 50, WindowMax: 90, Duration: 5, Optional: true}, intervals[1])

	// Break scheduling needs per-node service demands.
	require.Len(t, b.breakDemands, len(m.Nodes))
	pair := m.ShipmentNodes[p.Shipments[0]]
	assert.Equal(t, p.Shipments[0].PickupHandling, b.breakDemands[pair.First.Index])
}

func TestLinkSkipsBreaklessVehicles(t *testing.T) {
	p, _, _ := oneShipmentProblem(t)
	_, b := linkedFake(t, p)
	assert.Empty(t, b.breaks)
}

func TestLinkFinalizerHints(t *testing.T) {
	p, _, _ := oneShipmentProblem(t)
	_, b := linkedFake(t, p)

	assert.Equal(t, []int{0}, b.maxStart[DimTime], "route start pushed late")
	assert.Equal(t, []int{0}, b.minEnd[DimTime], "route end pulled early")
}
