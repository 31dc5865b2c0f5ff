package solver

import (
	"fleetsolve/internal/model"
)

// Build expands a validated problem into the flat solver model: two nodes per
// shipment, one dummy vehicle plus two nodes per (vehicle, shift) pair.
//
// Dummy-vehicle indices follow the order of each vehicle's shift slice;
// callers that need run-to-run stable indices must supply shifts in a stable
// order. Missing required fields are a programming error upstream and panic
// here rather than being recovered.
func Build(p *model.Problem) *Model {
	shiftCount := p.ShiftCount()
	nodeCount := 2*len(p.Shipments) + 2*shiftCount

	arena := newNodeArena(nodeCount)
	m := &Model{
		Problem:       p,
		Vehicles:      make([]*DummyVehicle, 0, shiftCount),
		ShipmentNodes: make(map[*model.Shipment]NodePair, len(p.Shipments)),
		VehicleNodes:  make(map[*DummyVehicle]NodePair, shiftCount),
		Starts:        make([]int, 0, shiftCount),
		Ends:          make([]int, 0, shiftCount),
	}

	for _, s := range p.Shipments {
		weight := s.TotalWeight()
		pickup := arena.alloc(Node{
			Kind:         NodePickup,
			Location:     s.Pickup,
			Shipment:     s,
			WeightDemand: weight,
			TimeDemand:   s.PickupHandling,
			Window:       s.PickupWindow,
		})
		delivery := arena.alloc(Node{
			Kind:         NodeDelivery,
			Location:     s.Delivery,
			Shipment:     s,
			WeightDemand: -weight,
			TimeDemand:   s.DeliveryHandling,
			Window:       s.DeliveryWindow,
		})
		m.ShipmentNodes[s] = NodePair{First: pickup, Second: delivery}
	}

	for _, v := range p.Vehicles {
		shifts := int64(len(v.Shifts))
		for _, sh := range v.Shifts {
			dv := &DummyVehicle{
				Index:   len(m.Vehicles),
				Vehicle: v,
				Shift:   sh,

				FixedCost:          satAdd(satDiv(v.FixedCost, shifts), sh.FixedCost),
				BaseCost:           satAdd(satDiv(v.BaseCost, shifts), sh.BaseCost),
				DistanceCost:       satAdd(v.DistanceCost, sh.DistanceCost),
				TimeCost:           satAdd(v.TimeCost, sh.TimeCost),
				WeightCost:         v.WeightCost,
				WeightDistanceCost: v.WeightDistanceCost,

				MaxWeight:   orUnbounded(v.MaxWeight),
				MaxDuration: orUnbounded(sh.MaxDuration),
				MaxDistance: orUnbounded(sh.MaxDistance),
				Window:      sh.Window,
			}
			m.Vehicles = append(m.Vehicles, dv)

			start := arena.alloc(Node{Kind: NodeShiftStart, Location: sh.Start, Owner: dv})
			end := arena.alloc(Node{Kind: NodeShiftEnd, Location: sh.End, Owner: dv})
			m.VehicleNodes[dv] = NodePair{First: start, Second: end}
			m.Starts = append(m.Starts, start.Index)
			m.Ends = append(m.Ends, end.Index)
		}
	}

	m.Nodes = arena.nodes
	return m
}

func orUnbounded(v int64) int64 {
	if v <= 0 {
		return model.Infinity
	}
	return v
}
