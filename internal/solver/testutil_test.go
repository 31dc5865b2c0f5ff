package solver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fleetsolve/internal/model"
)

func mustLocation(t *testing.T, id string) *model.Location {
	t.Helper()
	l, err := model.NewLocation(id, nil)
	require.NoError(t, err)
	return l
}

func mustShipment(t *testing.T, id string, pickup, delivery *model.Location) *model.Shipment {
	t.Helper()
	s, err := model.NewShipment(id, pickup, delivery)
	require.NoError(t, err)
	return s
}

func mustVehicle(t *testing.T, id string, shifts ...*model.Shift) *model.Vehicle {
	t.Helper()
	v, err := model.NewVehicle(id, shifts)
	require.NoError(t, err)
	return v
}

func mustProblem(t *testing.T, shipments []*model.Shipment, vehicles []*model.Vehicle, matrix *model.RouteMatrix) *model.Problem {
	t.Helper()
	p, err := model.NewProblem(nil, shipments, vehicles, matrix)
	require.NoError(t, err)
	return p
}

// oneShipmentProblem is the canonical trivial case: one shipment from a to b,
// one vehicle with a single shift over [0, 1000], a->b defined as
// distance 10 / duration 5.
func oneShipmentProblem(t *testing.T) (*model.Problem, *model.Location, *model.Location) {
	t.Helper()
	a := mustLocation(t, "a")
	b := mustLocation(t, "b")
	s := mustShipment(t, "s1", a, b)
	shift := model.NewShift(model.TimeWindow{Min: 0, Max: 1000}, nil)
	v := mustVehicle(t, "v1", shift)
	matrix := model.NewRouteMatrix()
	matrix.Set(a, b, 10, 5)
	return mustProblem(t, []*model.Shipment{s}, []*model.Vehicle{v}, matrix), a, b
}
