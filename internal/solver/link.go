package solver

import (
	"fleetsolve/internal/backend"
	"fleetsolve/internal/model"
)

// link imposes the constraints that reference the configured dimensions:
// pickup/delivery pairing with visit-order inequality, node and vehicle time
// windows, break intervals, and the finalizer hints that squeeze idle time
// out of route starts and ends. Dimensions must already be registered; a
// missing dimension surfaces as a configuration error.
func link(m *Model, b backend.Model) error {
	for _, s := range m.Problem.Shipments {
		pair := m.ShipmentNodes[s]
		b.AddPickupDelivery(pair.First.Index, pair.Second.Index)
		if err := b.AddCumulLessOrEqual(DimVisitOrder, pair.First.Index, pair.Second.Index); err != nil {
			return err
		}
	}

	for _, n := range m.Nodes {
		switch n.Kind {
		case NodeShiftStart:
			// Start nodes take the vehicle's availability window.
			w := n.Owner.Window
			if err := b.SetCumulRange(DimTime, n.Index, w.Min, w.Max); err != nil {
				return err
			}
		case NodeShiftEnd:
			// End nodes clamp to the same window on purpose: a route cannot
			// outlive its shift, and a saturated clock (undefined edge) trips
			// this finite bound instead of riding to the end unchecked.
			w := n.Owner.Window
			if err := b.SetCumulRange(DimTime, n.Index, w.Min, w.Max); err != nil {
				return err
			}
		default:
			if n.Window != nil {
				if err := b.SetCumulRange(DimTime, n.Index, n.Window.Min, n.Window.Max); err != nil {
					return err
				}
			}
		}
		// Slack is needed later to recover waiting time per stop.
		if err := b.RetainSlack(DimTime, n.Index); err != nil {
			return err
		}
	}

	demands := make([]int64, len(m.Nodes))
	for i, n := range m.Nodes {
		demands[i] = n.TimeDemand
	}
	for _, dv := range m.Vehicles {
		intervals := breakIntervals(dv.Shift)
		if len(intervals) > 0 {
			if err := b.SetBreakIntervals(dv.Index, intervals, demands); err != nil {
				return err
			}
		}
		if err := b.MaximizeCumulStart(DimTime, dv.Index); err != nil {
			return err
		}
		if err := b.MinimizeCumulEnd(DimTime, dv.Index); err != nil {
			return err
		}
	}
	return nil
}

// breakIntervals converts a shift's retained breaks; forbidden breaks are
// simply not emitted.
func breakIntervals(s *model.Shift) []backend.BreakInterval {
	var out []backend.BreakInterval
	for _, br := range s.Breaks {
		if br.Option == model.BreakForbidden {
			continue
		}
		out = append(out, backend.BreakInterval{
			WindowMin: br.Window.Min,
			WindowMax: br.Window.Max,
			Duration:  br.Duration,
			Optional:  br.Option == model.BreakOptional,
		})
	}
	return out
}
