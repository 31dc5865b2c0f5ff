package solver

import (
	"log"
	"sort"

	"fleetsolve/internal/backend"
	"fleetsolve/internal/model"
)

// decode walks every dummy vehicle's visit sequence in the assignment and
// reassembles it into stops, trips, shifts and plans. Nodes without a
// location never materialize as stops; consecutive visits at one location
// merge into a single stop.
func decode(m *Model, asg backend.Assignment) *model.Solution {
	shiftsByVehicle := map[*model.Vehicle][]model.VehicleShift{}

	for _, dv := range m.Vehicles {
		stops := decodeStops(m, dv, asg)
		if len(stops) == 0 {
			continue
		}
		trips := buildTrips(m.Problem.Matrix, dv, stops)
		sort.Slice(stops, func(i, j int) bool { return stops[i].Index < stops[j].Index })
		sort.Slice(trips, func(i, j int) bool { return trips[i].Index < trips[j].Index })
		shiftsByVehicle[dv.Vehicle] = append(shiftsByVehicle[dv.Vehicle], model.VehicleShift{
			Vehicle: dv.Vehicle,
			Shift:   dv.Shift,
			Stops:   stops,
			Trips:   trips,
		})
	}

	sol := &model.Solution{}
	// Plans keep the problem's vehicle order.
	for _, v := range m.Problem.Vehicles {
		if shifts, ok := shiftsByVehicle[v]; ok {
			sol.Plans = append(sol.Plans, model.VehiclePlan{Vehicle: v, Shifts: shifts})
		}
	}
	return sol
}

// decodeStops walks the route from the vehicle's start index to its end
// index, emitting merged stops.
func decodeStops(m *Model, dv *DummyVehicle, asg backend.Assignment) []model.VehicleStop {
	endIdx := m.Ends[dv.Index]
	cur := m.Starts[dv.Index]

	var stops []model.VehicleStop
	for {
		node := m.Nodes[cur]
		if node.Location != nil {
			arrival := model.TimeWindow{
				Min: asg.CumulMin(DimTime, cur),
				Max: asg.CumulMax(DimTime, cur),
			}
			// Raw slack is waiting before service; the node's own
			// handling time is reported as part of the wait at the stop.
			waiting := model.TimeWindow{
				Min: satAdd(asg.SlackMin(DimTime, cur), node.TimeDemand),
				Max: satAdd(asg.SlackMax(DimTime, cur), node.TimeDemand),
			}
			departure := arrival.Shift(node.TimeDemand)

			if n := len(stops); n > 0 && stops[n-1].Location.Same(node.Location) {
				last := &stops[n-1]
				appendShipment(last, node)
				last.Arrival = last.Arrival.Combine(arrival)
				last.Departure = last.Departure.Combine(departure)
				last.Waiting = last.Waiting.Combine(waiting)
			} else {
				stop := model.VehicleStop{
					Index:     len(stops) + 1,
					Location:  node.Location,
					Vehicle:   dv.Vehicle,
					Arrival:   arrival,
					Departure: departure,
					Waiting:   waiting,
				}
				appendShipment(&stop, node)
				stops = append(stops, stop)
			}
		}
		if cur == endIdx {
			break
		}
		next := asg.Next(cur)
		if next == cur {
			// Broken successor chain; stop walking rather than loop.
			log.Printf("solver: assignment successor of %d is itself (vehicle %s)", cur, dv.Vehicle.ID)
			break
		}
		cur = next
	}
	return stops
}

func appendShipment(stop *model.VehicleStop, node *Node) {
	switch node.Kind {
	case NodePickup:
		stop.Pickups = append(stop.Pickups, node.Shipment)
	case NodeDelivery:
		stop.Deliveries = append(stop.Deliveries, node.Shipment)
	}
}

// buildTrips connects consecutive stops through the route matrix. A
// backend-confirmed route over an undefined edge means the matrix and the
// problem disagree; it is surfaced as a max-value trip and logged, never
// silently patched.
func buildTrips(matrix *model.RouteMatrix, dv *DummyVehicle, stops []model.VehicleStop) []model.VehicleTrip {
	var trips []model.VehicleTrip
	for i := 1; i < len(stops); i++ {
		from, to := stops[i-1], stops[i]
		e := matrix.At(from.Location, to.Location)
		distance, duration := e.Distance, e.Duration
		if !e.Defined {
			log.Printf("solver: confirmed route for vehicle %s traverses undefined edge %s -> %s",
				dv.Vehicle.ID, from.Location.ID, to.Location.ID)
			distance, duration = model.Infinity, model.Infinity
		}
		trips = append(trips, model.VehicleTrip{
			Index:        i,
			Vehicle:      dv.Vehicle,
			From:         from.Location,
			To:           to.Location,
			Distance:     distance,
			Duration:     duration,
			Departure:    from.Departure,
			Arrival:      to.Arrival,
			DistanceCost: satMul(distance, dv.DistanceCost),
			TimeCost:     satMul(duration, dv.TimeCost),
		})
	}
	return trips
}
