// Package model holds the validated routing problem vocabulary: locations,
// shipments, vehicles with shifts and breaks, the route matrix, and the
// decoded plan types returned after a solve.
//
// All quantities are integers: durations and clock values in seconds,
// distances in meters, weights in grams, costs in minor currency units.
// Value objects are built through constructors that validate once; after
// construction they are treated as read-only snapshots.
package model

import (
	"errors"
	"fmt"
	"math"
)

// Infinity is the maximum representable cost/quantity. Saturating arithmetic
// throughout the solver clamps here instead of overflowing.
const Infinity int64 = math.MaxInt64

// TimeWindow is a closed integer interval [Min, Max] in seconds.
type TimeWindow struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// NewTimeWindow validates min <= max.
func NewTimeWindow(min, max int64) (TimeWindow, error) {
	if min > max {
		return TimeWindow{}, fmt.Errorf("time window: min %d > max %d", min, max)
	}
	return TimeWindow{Min: min, Max: max}, nil
}

// Contains reports whether other lies entirely inside w.
func (w TimeWindow) Contains(other TimeWindow) bool {
	return other.Min >= w.Min && other.Max <= w.Max
}

// Combine narrows two windows intersection-style: [max(mins), min(maxes)].
// The result may be inverted (Min > Max) when the windows are disjoint;
// callers that merged stops on a confirmed route never see that case.
func (w TimeWindow) Combine(other TimeWindow) TimeWindow {
	out := w
	if other.Min > out.Min {
		out.Min = other.Min
	}
	if other.Max < out.Max {
		out.Max = other.Max
	}
	return out
}

// Shift shifts both bounds by d, saturating at Infinity.
func (w TimeWindow) Shift(d int64) TimeWindow {
	return TimeWindow{Min: satAdd(w.Min, d), Max: satAdd(w.Max, d)}
}

func satAdd(a, b int64) int64 {
	if a > 0 && b > math.MaxInt64-a {
		return math.MaxInt64
	}
	if a < 0 && b < math.MinInt64-a {
		return math.MinInt64
	}
	return a + b
}

// Location is a routable place. Equality is by identity (ID); coordinates or
// addresses live in the opaque tag set and are never interpreted here.
type Location struct {
	ID string
	// MaxVehicleCapacity caps the weight of vehicles allowed to visit,
	// 0 means no restriction.
	MaxVehicleCapacity int64
	Tags               map[string]string
}

// NewLocation builds a location; id must be non-empty.
func NewLocation(id string, tags map[string]string) (*Location, error) {
	if id == "" {
		return nil, errors.New("location: empty id")
	}
	return &Location{ID: id, Tags: tags}, nil
}

// Same reports identity equality, treating two nils as the same (absent) place.
func (l *Location) Same(other *Location) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.ID == other.ID
}

// ShipUnit is a physical payload atom. Zero fields mean "unspecified".
type ShipUnit struct {
	ID     string
	Weight int64
	Width  int64
	Height int64
	Length int64
}

// Shipment is one pickup/delivery pair. Pickup and delivery locations are set
// at construction and never change.
type Shipment struct {
	ID       string
	Units    []ShipUnit
	Pickup   *Location
	Delivery *Location
	// Weight overrides the summed unit weights when positive.
	Weight          int64
	PickupPenalty   int64
	DeliveryPenalty int64
	PickupHandling  int64
	DeliveryHandling int64
	PickupWindow    *TimeWindow
	DeliveryWindow  *TimeWindow
}

// NewShipment builds a shipment; id, pickup and delivery are required.
func NewShipment(id string, pickup, delivery *Location) (*Shipment, error) {
	if id == "" {
		return nil, errors.New("shipment: empty id")
	}
	if pickup == nil || delivery == nil {
		return nil, fmt.Errorf("shipment %s: pickup and delivery locations are required", id)
	}
	return &Shipment{ID: id, Pickup: pickup, Delivery: delivery}, nil
}

// TotalWeight is the explicit weight when set, otherwise the sum of unit weights.
func (s *Shipment) TotalWeight() int64 {
	if s.Weight > 0 {
		return s.Weight
	}
	var total int64
	for _, u := range s.Units {
		total = satAdd(total, u.Weight)
	}
	return total
}

// BreakOption says whether a break may, must, or must not be taken.
type BreakOption int

const (
	BreakOptional BreakOption = iota
	BreakMandatory
	BreakForbidden
)

func (o BreakOption) String() string {
	switch o {
	case BreakOptional:
		return "optional"
	case BreakMandatory:
		return "mandatory"
	case BreakForbidden:
		return "forbidden"
	}
	return fmt.Sprintf("breakoption(%d)", int(o))
}

// Break is a fixed-duration pause allowed within a window.
type Break struct {
	Window   TimeWindow
	Duration int64
	Option   BreakOption
}

// Shift is one working stretch of a vehicle. Breaks whose allowed window does
// not lie inside the shift window are dropped at construction; an out-of-shift
// break is not an error.
type Shift struct {
	Window TimeWindow
	Driver string
	Breaks []Break
	Start  *Location
	End    *Location
	// 0 means unlimited.
	MaxDuration int64
	MaxDistance int64
	// Per-shift cost overrides, added on top of the owning vehicle's.
	FixedCost    int64
	BaseCost     int64
	DistanceCost int64
	TimeCost     int64
}

// NewShift builds a shift, retaining only breaks contained in the shift window.
func NewShift(window TimeWindow, breaks []Break) *Shift {
	s := &Shift{Window: window}
	for _, b := range breaks {
		if window.Contains(b.Window) {
			s.Breaks = append(s.Breaks, b)
		}
	}
	return s
}

// Vehicle owns one or more shifts and the cost coefficients blended into each
// of its dummy-vehicle expansions.
type Vehicle struct {
	ID     string
	Shifts []*Shift
	// Cost coefficients; 0 means "free" for that component.
	FixedCost          int64
	BaseCost           int64
	DistanceCost       int64
	TimeCost           int64
	WeightCost         int64
	WeightDistanceCost int64
	// MaxWeight of 0 means unlimited.
	MaxWeight int64
}

// NewVehicle builds a vehicle; at least one shift is required.
func NewVehicle(id string, shifts []*Shift) (*Vehicle, error) {
	if id == "" {
		return nil, errors.New("vehicle: empty id")
	}
	if len(shifts) == 0 {
		return nil, fmt.Errorf("vehicle %s: at least one shift is required", id)
	}
	return &Vehicle{ID: id, Shifts: shifts}, nil
}

// Problem is the immutable solve input: everything the solver model compiler
// reads. Built once, validated once, discarded after the solve.
type Problem struct {
	Locations []*Location
	Shipments []*Shipment
	Vehicles  []*Vehicle
	Matrix    *RouteMatrix
}

// NewProblem validates the snapshot. Shipment and vehicle invariants were
// checked by their constructors; this guards the aggregate.
func NewProblem(locations []*Location, shipments []*Shipment, vehicles []*Vehicle, matrix *RouteMatrix) (*Problem, error) {
	if matrix == nil {
		return nil, errors.New("problem: route matrix is required")
	}
	for _, v := range vehicles {
		if len(v.Shifts) == 0 {
			return nil, fmt.Errorf("problem: vehicle %s has no shifts", v.ID)
		}
	}
	for _, s := range shipments {
		if s.Pickup == nil || s.Delivery == nil {
			return nil, fmt.Errorf("problem: shipment %s missing pickup or delivery", s.ID)
		}
	}
	return &Problem{Locations: locations, Shipments: shipments, Vehicles: vehicles, Matrix: matrix}, nil
}

// ShiftCount sums shifts over all vehicles.
func (p *Problem) ShiftCount() int {
	n := 0
	for _, v := range p.Vehicles {
		n += len(v.Shifts)
	}
	return n
}
