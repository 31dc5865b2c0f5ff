package model

// Decoded solve output. A Solution groups VehiclePlans; each plan groups the
// vehicle's worked shifts; each shift carries ordered stops and the trips
// between them. Windows are ranges the backend proved feasible, not point
// schedules: any clock value inside a window keeps the route feasible.

// VehicleStop is one halt at a location. Consecutive route visits at the same
// location are merged into a single stop whose pickup/delivery sets are the
// union and whose windows are the intersection-style combination.
type VehicleStop struct {
	// Index is 1-based and sequential within the owning shift.
	Index      int
	Location   *Location
	Vehicle    *Vehicle
	Pickups    []*Shipment
	Deliveries []*Shipment
	Arrival    TimeWindow
	Departure  TimeWindow
	Waiting    TimeWindow
}

// VehicleTrip is the travel between two consecutive stops.
type VehicleTrip struct {
	Index        int
	Vehicle      *Vehicle
	From         *Location
	To           *Location
	Distance     int64
	Duration     int64
	Departure    TimeWindow
	Arrival      TimeWindow
	DistanceCost int64
	TimeCost     int64
}

// VehicleShift is one worked (vehicle, shift) slot.
type VehicleShift struct {
	Vehicle *Vehicle
	Shift   *Shift
	Stops   []VehicleStop
	Trips   []VehicleTrip
}

// VehiclePlan is every shift worked by one vehicle.
type VehiclePlan struct {
	Vehicle *Vehicle
	Shifts  []VehicleShift
}

// Solution is the full decoded result. An empty solution (no plans) is the
// first-class "infeasible" outcome, not an error.
type Solution struct {
	Plans []VehiclePlan
}

// Empty reports whether no vehicle received any work.
func (s *Solution) Empty() bool { return len(s.Plans) == 0 }
