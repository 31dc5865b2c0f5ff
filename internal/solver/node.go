// Package solver compiles a routing problem into the backend's vocabulary of
// nodes, callbacks and cumulative dimensions, invokes the backend, and
// decodes the returned assignment back into vehicle plans.
//
// The pipeline is strictly single-threaded per solve: build, configure, link,
// solve, decode, discard. Nothing here is shared between solve calls.
package solver

import (
	"fmt"

	"fleetsolve/internal/model"
)

// NodeKind tags the node variant.
type NodeKind int

const (
	NodePickup NodeKind = iota
	NodeDelivery
	NodeShiftStart
	NodeShiftEnd
)

func (k NodeKind) String() string {
	switch k {
	case NodePickup:
		return "pickup"
	case NodeDelivery:
		return "delivery"
	case NodeShiftStart:
		return "shift-start"
	case NodeShiftEnd:
		return "shift-end"
	}
	return fmt.Sprintf("nodekind(%d)", int(k))
}

// Node is one point in the routing graph. Location may be nil: such a node is
// unconstrained in space and never materializes as a stop.
type Node struct {
	Index    int
	Kind     NodeKind
	Location *model.Location
	// Shipment is set on pickup/delivery nodes.
	Shipment *model.Shipment
	// Owner is set on shift start/end nodes.
	Owner *DummyVehicle
	// WeightDemand is signed: positive at the pickup, its negation at the
	// matching delivery.
	WeightDemand int64
	// TimeDemand is the handling (service) time spent at the node.
	TimeDemand int64
	Window     *model.TimeWindow
}

// DummyVehicle is one (vehicle, shift) expansion. The backend models one
// shift per routing slot, so a vehicle with N shifts occupies N slots, its
// fixed and base costs divided evenly among them.
type DummyVehicle struct {
	Index   int
	Vehicle *model.Vehicle
	Shift   *model.Shift

	FixedCost          int64
	BaseCost           int64
	DistanceCost       int64
	TimeCost           int64
	WeightCost         int64
	WeightDistanceCost int64

	// Infinity means unbounded.
	MaxWeight   int64
	MaxDuration int64
	MaxDistance int64

	// Window is the shift's availability window.
	Window model.TimeWindow
}

// nodeArena assigns dense, 0-based, never-reused indices in creation order.
type nodeArena struct {
	nodes []*Node
}

func newNodeArena(capacity int) *nodeArena {
	return &nodeArena{nodes: make([]*Node, 0, capacity)}
}

func (a *nodeArena) alloc(n Node) *Node {
	n.Index = len(a.nodes)
	p := &n
	a.nodes = append(a.nodes, p)
	return p
}

// NodePair couples the two nodes a store entry owns.
type NodePair struct {
	First  *Node
	Second *Node
}

// Model is the compiled solver model: the dense node list, the dummy-vehicle
// list, and the two lookup stores. Invariant: every node is reachable from
// exactly one store entry, and len(Nodes) == 2*len(shipments) + 2*len(Vehicles).
type Model struct {
	Problem  *model.Problem
	Nodes    []*Node
	Vehicles []*DummyVehicle

	// ShipmentNodes maps a shipment to its (pickup, delivery) nodes.
	ShipmentNodes map[*model.Shipment]NodePair
	// VehicleNodes maps a dummy vehicle to its (start, end) nodes.
	VehicleNodes map[*DummyVehicle]NodePair

	// Starts and Ends carry one node index per dummy vehicle, in
	// dummy-vehicle index order, as the backend's index space expects.
	Starts []int
	Ends   []int
}
