package api

import (
	"fmt"

	"fleetsolve/internal/model"
)

// Wire representation of a routing problem. Locations are referenced by ID
// everywhere else in the document; the DTO layer resolves them into the
// identity-equal model objects the solver expects.

type TimeWindowIn struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type LocationIn struct {
	ID                 string            `json:"id"`
	MaxVehicleCapacity int64             `json:"maxVehicleCapacity,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
}

type UnitIn struct {
	ID     string `json:"id,omitempty"`
	Weight int64  `json:"weight"`
}

type ShipmentIn struct {
	ID               string        `json:"id"`
	Pickup           string        `json:"pickup"`
	Delivery         string        `json:"delivery"`
	Weight           int64         `json:"weight,omitempty"`
	Units            []UnitIn      `json:"units,omitempty"`
	PickupWindow     *TimeWindowIn `json:"pickupWindow,omitempty"`
	DeliveryWindow   *TimeWindowIn `json:"deliveryWindow,omitempty"`
	PickupHandling   int64         `json:"pickupHandling,omitempty"`
	DeliveryHandling int64         `json:"deliveryHandling,omitempty"`
}

type BreakIn struct {
	Window   TimeWindowIn `json:"window"`
	Duration int64        `json:"duration"`
	// Option is optional, mandatory or forbidden; empty means optional.
	Option string `json:"option,omitempty"`
}

type ShiftIn struct {
	Window       TimeWindowIn `json:"window"`
	Start        string       `json:"start,omitempty"`
	End          string       `json:"end,omitempty"`
	Driver       string       `json:"driver,omitempty"`
	Breaks       []BreakIn    `json:"breaks,omitempty"`
	MaxDuration  int64        `json:"maxDuration,omitempty"`
	MaxDistance  int64        `json:"maxDistance,omitempty"`
	FixedCost    int64        `json:"fixedCost,omitempty"`
	BaseCost     int64        `json:"baseCost,omitempty"`
	DistanceCost int64        `json:"distanceCost,omitempty"`
	TimeCost     int64        `json:"timeCost,omitempty"`
}

type VehicleIn struct {
	ID                 string    `json:"id"`
	Shifts             []ShiftIn `json:"shifts"`
	FixedCost          int64     `json:"fixedCost,omitempty"`
	BaseCost           int64     `json:"baseCost,omitempty"`
	DistanceCost       int64     `json:"distanceCost,omitempty"`
	TimeCost           int64     `json:"timeCost,omitempty"`
	WeightCost         int64     `json:"weightCost,omitempty"`
	WeightDistanceCost int64     `json:"weightDistanceCost,omitempty"`
	MaxWeight          int64     `json:"maxWeight,omitempty"`
}

type EdgeIn struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Distance int64  `json:"distance"`
	Duration int64  `json:"duration"`
}

type ProblemIn struct {
	Locations []LocationIn `json:"locations"`
	Shipments []ShipmentIn `json:"shipments"`
	Vehicles  []VehicleIn  `json:"vehicles"`
	Matrix    []EdgeIn     `json:"matrix"`
}

// Build resolves the document into a validated model.Problem.
func (in *ProblemIn) Build() (*model.Problem, error) {
	locs := make(map[string]*model.Location, len(in.Locations))
	locList := make([]*model.Location, 0, len(in.Locations))
	for _, l := range in.Locations {
		if _, dup := locs[l.ID]; dup {
			return nil, fmt.Errorf("location %q declared twice", l.ID)
		}
		loc, err := model.NewLocation(l.ID, l.Tags)
		if err != nil {
			return nil, err
		}
		loc.MaxVehicleCapacity = l.MaxVehicleCapacity
		locs[l.ID] = loc
		locList = append(locList, loc)
	}
	resolve := func(id, what string) (*model.Location, error) {
		if id == "" {
			return nil, nil
		}
		loc, ok := locs[id]
		if !ok {
			return nil, fmt.Errorf("%s references unknown location %q", what, id)
		}
		return loc, nil
	}

	shipments := make([]*model.Shipment, 0, len(in.Shipments))
	for _, sh := range in.Shipments {
		pickup, err := resolve(sh.Pickup, "shipment "+sh.ID)
		if err != nil {
			return nil, err
		}
		delivery, err := resolve(sh.Delivery, "shipment "+sh.ID)
		if err != nil {
			return nil, err
		}
		s, err := model.NewShipment(sh.ID, pickup, delivery)
		if err != nil {
			return nil, err
		}
		s.Weight = sh.Weight
		s.PickupHandling = sh.PickupHandling
		s.DeliveryHandling = sh.DeliveryHandling
		for _, u := range sh.Units {
			s.Units = append(s.Units, model.ShipUnit{ID: u.ID, Weight: u.Weight})
		}
		if sh.PickupWindow != nil {
			w, err := model.NewTimeWindow(sh.PickupWindow.Min, sh.PickupWindow.Max)
			if err != nil {
				return nil, fmt.Errorf("shipment %s pickup window: %w", sh.ID, err)
			}
			s.PickupWindow = &w
		}
		if sh.DeliveryWindow != nil {
			w, err := model.NewTimeWindow(sh.DeliveryWindow.Min, sh.DeliveryWindow.Max)
			if err != nil {
				return nil, fmt.Errorf("shipment %s delivery window: %w", sh.ID, err)
			}
			s.DeliveryWindow = &w
		}
		shipments = append(shipments, s)
	}

	vehicles := make([]*model.Vehicle, 0, len(in.Vehicles))
	for _, vi := range in.Vehicles {
		shifts := make([]*model.Shift, 0, len(vi.Shifts))
		for i, si := range vi.Shifts {
			window, err := model.NewTimeWindow(si.Window.Min, si.Window.Max)
			if err != nil {
				return nil, fmt.Errorf("vehicle %s shift %d: %w", vi.ID, i, err)
			}
			var breaks []model.Break
			for j, bi := range si.Breaks {
				bw, err := model.NewTimeWindow(bi.Window.Min, bi.Window.Max)
				if err != nil {
					return nil, fmt.Errorf("vehicle %s shift %d break %d: %w", vi.ID, i, j, err)
				}
				opt, err := parseBreakOption(bi.Option)
				if err != nil {
					return nil, fmt.Errorf("vehicle %s shift %d break %d: %w", vi.ID, i, j, err)
				}
				breaks = append(breaks, model.Break{Window: bw, Duration: bi.Duration, Option: opt})
			}
			shift := model.NewShift(window, breaks)
			if shift.Start, err = resolve(si.Start, "vehicle "+vi.ID); err != nil {
				return nil, err
			}
			if shift.End, err = resolve(si.End, "vehicle "+vi.ID); err != nil {
				return nil, err
			}
			shift.Driver = si.Driver
			shift.MaxDuration = si.MaxDuration
			shift.MaxDistance = si.MaxDistance
			shift.FixedCost = si.FixedCost
			shift.BaseCost = si.BaseCost
			shift.DistanceCost = si.DistanceCost
			shift.TimeCost = si.TimeCost
			shifts = append(shifts, shift)
		}
		v, err := model.NewVehicle(vi.ID, shifts)
		if err != nil {
			return nil, err
		}
		v.FixedCost = vi.FixedCost
		v.BaseCost = vi.BaseCost
		v.DistanceCost = vi.DistanceCost
		v.TimeCost = vi.TimeCost
		v.WeightCost = vi.WeightCost
		v.WeightDistanceCost = vi.WeightDistanceCost
		v.MaxWeight = vi.MaxWeight
		vehicles = append(vehicles, v)
	}

	matrix := model.NewRouteMatrix()
	for _, e := range in.Matrix {
		from, err := resolve(e.From, "matrix edge")
		if err != nil {
			return nil, err
		}
		to, err := resolve(e.To, "matrix edge")
		if err != nil {
			return nil, err
		}
		if from == nil || to == nil {
			return nil, fmt.Errorf("matrix edge %q -> %q: both endpoints are required", e.From, e.To)
		}
		matrix.Set(from, to, e.Distance, e.Duration)
	}

	return model.NewProblem(locList, shipments, vehicles, matrix)
}

func parseBreakOption(s string) (model.BreakOption, error) {
	switch s {
	case "", "optional":
		return model.BreakOptional, nil
	case "mandatory":
		return model.BreakMandatory, nil
	case "forbidden":
		return model.BreakForbidden, nil
	}
	return 0, fmt.Errorf("unknown break option %q", s)
}

// Wire representation of a decoded solution.

type SolutionOut struct {
	Plans []PlanOut `json:"plans"`
}

type PlanOut struct {
	Vehicle string     `json:"vehicle"`
	Shifts  []ShiftOut `json:"shifts"`
}

type ShiftOut struct {
	Window TimeWindowIn `json:"window"`
	Driver string       `json:"driver,omitempty"`
	Stops  []StopOut    `json:"stops"`
	Trips  []TripOut    `json:"trips"`
}

type StopOut struct {
	Index      int          `json:"index"`
	Location   string       `json:"location"`
	Pickups    []string     `json:"pickups,omitempty"`
	Deliveries []string     `json:"deliveries,omitempty"`
	Arrival    TimeWindowIn `json:"arrival"`
	Departure  TimeWindowIn `json:"departure"`
	Waiting    TimeWindowIn `json:"waiting"`
}

type TripOut struct {
	Index        int          `json:"index"`
	From         string       `json:"from"`
	To           string       `json:"to"`
	Distance     int64        `json:"distance"`
	Duration     int64        `json:"duration"`
	Departure    TimeWindowIn `json:"departure"`
	Arrival      TimeWindowIn `json:"arrival"`
	DistanceCost int64        `json:"distanceCost"`
	TimeCost     int64        `json:"timeCost"`
}

func solutionOut(sol *model.Solution) SolutionOut {
	out := SolutionOut{Plans: []PlanOut{}}
	for _, plan := range sol.Plans {
		po := PlanOut{Vehicle: plan.Vehicle.ID}
		for _, shift := range plan.Shifts {
			so := ShiftOut{
				Window: TimeWindowIn{Min: shift.Shift.Window.Min, Max: shift.Shift.Window.Max},
				Driver: shift.Shift.Driver,
				Stops:  []StopOut{},
				Trips:  []TripOut{},
			}
			for _, st := range shift.Stops {
				stop := StopOut{
					Index:     st.Index,
					Location:  st.Location.ID,
					Arrival:   TimeWindowIn(st.Arrival),
					Departure: TimeWindowIn(st.Departure),
					Waiting:   TimeWindowIn(st.Waiting),
				}
				for _, s := range st.Pickups {
					stop.Pickups = append(stop.Pickups, s.ID)
				}
				for _, s := range st.Deliveries {
					stop.Deliveries = append(stop.Deliveries, s.ID)
				}
				so.Stops = append(so.Stops, stop)
			}
			for _, tr := range shift.Trips {
				so.Trips = append(so.Trips, TripOut{
					Index:        tr.Index,
					From:         tr.From.ID,
					To:           tr.To.ID,
					Distance:     tr.Distance,
					Duration:     tr.Duration,
					Departure:    TimeWindowIn(tr.Departure),
					Arrival:      TimeWindowIn(tr.Arrival),
					DistanceCost: tr.DistanceCost,
					TimeCost:     tr.TimeCost,
				})
			}
			po.Shifts = append(po.Shifts, so)
		}
		out.Plans = append(out.Plans, po)
	}
	return out
}
