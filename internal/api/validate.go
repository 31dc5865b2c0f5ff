package api

import (
	"fmt"
)

func validateProblemIn(in *ProblemIn) error {
	if len(in.Shipments) == 0 {
		return fmt.Errorf("at least one shipment is required")
	}
	if len(in.Vehicles) == 0 {
		return fmt.Errorf("at least one vehicle is required")
	}
	seen := map[string]struct{}{}
	for _, sh := range in.Shipments {
		if sh.ID == "" {
			return fmt.Errorf("shipment with empty id")
		}
		if _, dup := seen[sh.ID]; dup {
			return fmt.Errorf("duplicate shipment id %q", sh.ID)
		}
		seen[sh.ID] = struct{}{}
		if sh.Weight < 0 {
			return fmt.Errorf("shipment %s: weight must be >= 0", sh.ID)
		}
		if sh.PickupHandling < 0 || sh.DeliveryHandling < 0 {
			return fmt.Errorf("shipment %s: handling times must be >= 0", sh.ID)
		}
	}
	for _, v := range in.Vehicles {
		if v.ID == "" {
			return fmt.Errorf("vehicle with empty id")
		}
		if len(v.Shifts) == 0 {
			return fmt.Errorf("vehicle %s: at least one shift is required", v.ID)
		}
		for i, sh := range v.Shifts {
			for j, b := range sh.Breaks {
				if b.Duration <= 0 {
					return fmt.Errorf("vehicle %s shift %d break %d: duration must be > 0", v.ID, i, j)
				}
			}
		}
	}
	for _, e := range in.Matrix {
		if e.Distance < 0 || e.Duration < 0 {
			return fmt.Errorf("matrix edge %s -> %s: negative distance or duration", e.From, e.To)
		}
	}
	return nil
}

func validateSolveRequest(req *SolveRequest) error {
	if req.ProblemID == "" && req.Problem == nil {
		return fmt.Errorf("either problemId or an inline problem is required")
	}
	if req.ProblemID != "" && req.Problem != nil {
		return fmt.Errorf("problemId and inline problem are mutually exclusive")
	}
	if req.BudgetMs < 0 {
		return fmt.Errorf("budgetMs must be >= 0")
	}
	if req.IterationLimit < 0 {
		return fmt.Errorf("iterationLimit must be >= 0")
	}
	if req.Cooling != 0 && (req.Cooling <= 0 || req.Cooling >= 1) {
		return fmt.Errorf("cooling must be in (0,1)")
	}
	if req.InitialTemperature < 0 {
		return fmt.Errorf("initialTemperature must be >= 0")
	}
	return nil
}
