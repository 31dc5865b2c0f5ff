package local

import (
	"context"
	"math"
	"math/rand"
	"time"

	"fleetsolve/internal/backend"
)

// Metrics are counters from one search run.
type Metrics struct {
	RemovalSelects [2]int // random, related
	InsertSelects  [2]int // greedy, regret2
	Iterations     int
	Improvements   int
	AcceptedWorse  int
	BestCost       int64
	FinalCost      int64
}

// item is one insertable unit: a pickup/delivery pair, or a lone node when no
// pairing was registered for it.
type item struct {
	pickup   int
	delivery int // -1 when unpaired
}

// Solve runs greedy construction followed by an ALNS loop until the budget
// elapses. A nil assignment with a nil error means no feasible routing was
// found: infeasibility, not failure.
func (m *Model) Solve(ctx context.Context, strategy backend.SearchStrategy, budget time.Duration) (backend.Assignment, error) {
	seed := strategy.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	if budget <= 0 {
		budget = 100 * time.Millisecond
	}
	deadline := time.Now().Add(budget)

	items := m.collectItems()
	m.metrics = Metrics{}

	// First solution: greedy insertion; reshuffle and retry while the
	// budget allows.
	curr, ok := m.construct(items)
	for !ok && time.Now().Before(deadline) && ctx.Err() == nil {
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		curr, ok = m.construct(items)
	}
	if !ok {
		return nil, nil
	}

	best := cloneRoutes(curr)
	bestCost, _ := m.solutionCost(best)
	m.metrics.BestCost = bestCost

	temp := 1.0
	if strategy.InitialTemperature > 0 {
		temp = strategy.InitialTemperature
	}
	cool := 0.995
	if strategy.Cooling > 0 && strategy.Cooling < 1 {
		cool = strategy.Cooling
	}
	remW := []float64{1, 1}
	insW := []float64{1, 1}

	for time.Now().Before(deadline) && ctx.Err() == nil {
		m.metrics.Iterations++
		if strategy.IterationLimit > 0 && m.metrics.Iterations >= strategy.IterationLimit {
			break
		}
		k := 1 + rng.Intn(3)
		op := selectOp(remW, rng)
		ip := selectOp(insW, rng)
		m.metrics.RemovalSelects[op]++
		m.metrics.InsertSelects[ip]++

		var removed []item
		switch op {
		case 0:
			removed = m.randomRemoval(curr, k, rng)
		case 1:
			removed = m.relatedRemoval(curr, k, rng)
		}
		cand := m.removeItems(curr, removed)
		var reinserted bool
		switch ip {
		case 0:
			reinserted = m.greedyInsert(cand, removed)
		case 1:
			reinserted = m.regretInsert(cand, removed)
		}
		if !reinserted {
			// Could not restore feasibility; keep the incumbent.
			continue
		}
		m.twoOptImprove(cand)
		candCost, feasible := m.solutionCost(cand)
		if !feasible {
			continue
		}

		delta := float64(candCost) - float64(bestCost)
		if delta < 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
			curr = cand
			if candCost < bestCost {
				best = cloneRoutes(cand)
				bestCost = candCost
				remW[op] += 0.1
				insW[ip] += 0.1
				m.metrics.Improvements++
				m.metrics.BestCost = bestCost
			} else {
				remW[op] += 0.01
				insW[ip] += 0.01
				m.metrics.AcceptedWorse++
			}
		} else {
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
		}
		temp *= cool
	}
	m.metrics.FinalCost = bestCost
	return m.buildAssignment(best), nil
}

// collectItems groups the interior nodes into pickup/delivery pairs plus
// leftovers.
func (m *Model) collectItems() []item {
	inPair := map[int]bool{}
	items := make([]item, 0, len(m.pairs))
	for _, p := range m.pairs {
		items = append(items, item{pickup: p[0], delivery: p[1]})
		inPair[p[0]] = true
		inPair[p[1]] = true
	}
	for idx := 0; idx < m.nodes; idx++ {
		if !m.endpoint[idx] && !inPair[idx] {
			items = append(items, item{pickup: idx, delivery: -1})
		}
	}
	return items
}

func cloneRoutes(routes [][]int) [][]int {
	out := make([][]int, len(routes))
	for i := range routes {
		out[i] = append([]int(nil), routes[i]...)
	}
	return out
}

// construct builds a first solution by cheapest feasible insertion in item
// order. Fails when any item has no feasible slot.
func (m *Model) construct(items []item) ([][]int, bool) {
	routes := make([][]int, m.vehicles)
	for _, it := range items {
		if !m.insertCheapest(routes, it) {
			return nil, false
		}
	}
	return routes, true
}

// insertCheapest places one item at its cheapest feasible position across all
// vehicles, mutating routes. The delta is priced on the affected route only.
func (m *Model) insertCheapest(routes [][]int, it item) bool {
	bestV, bestCost := -1, int64(math.MaxInt64)
	var bestRoute []int
	for v := range routes {
		route, cost, ok := m.bestInsertion(routes[v], v, it)
		if ok && cost < bestCost {
			bestV, bestCost, bestRoute = v, cost, route
		}
	}
	if bestV < 0 {
		return false
	}
	routes[bestV] = bestRoute
	return true
}

// bestInsertion finds the cheapest feasible placement of it inside one route,
// returning the new interior sequence and its full-route cost.
func (m *Model) bestInsertion(interior []int, v int, it item) ([]int, int64, bool) {
	var best []int
	bestCost := int64(math.MaxInt64)
	n := len(interior)
	for i := 0; i <= n; i++ {
		if it.delivery < 0 {
			cand := insertAt(interior, i, it.pickup)
			if cost, ok := m.evaluate(v, cand); ok && cost < bestCost {
				best, bestCost = cand, cost
			}
			continue
		}
		withPickup := insertAt(interior, i, it.pickup)
		for j := i + 1; j <= n+1; j++ {
			cand := insertAt(withPickup, j, it.delivery)
			if cost, ok := m.evaluate(v, cand); ok && cost < bestCost {
				best, bestCost = cand, cost
			}
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestCost, true
}

func insertAt(seq []int, pos, node int) []int {
	out := make([]int, 0, len(seq)+1)
	out = append(out, seq[:pos]...)
	out = append(out, node)
	out = append(out, seq[pos:]...)
	return out
}

// randomRemoval picks k routed items uniformly.
func (m *Model) randomRemoval(routes [][]int, k int, rng *rand.Rand) []item {
	routed := m.routedItems(routes)
	rng.Shuffle(len(routed), func(i, j int) { routed[i], routed[j] = routed[j], routed[i] })
	if k > len(routed) {
		k = len(routed)
	}
	return routed[:k]
}

// relatedRemoval seeds on a random item and removes its nearest neighbors by
// arc cost between pickups, the callback-space analogue of geographic
// relatedness.
func (m *Model) relatedRemoval(routes [][]int, k int, rng *rand.Rand) []item {
	routed := m.routedItems(routes)
	if len(routed) == 0 {
		return nil
	}
	seed := routed[rng.Intn(len(routed))]
	dist := m.relatednessFn()
	type scored struct {
		it    item
		score int64
	}
	rel := make([]scored, 0, len(routed))
	for _, it := range routed {
		if it == seed {
			continue
		}
		rel = append(rel, scored{it: it, score: dist(seed.pickup, it.pickup)})
	}
	for i := 0; i < len(rel); i++ {
		for j := i + 1; j < len(rel); j++ {
			if rel[j].score < rel[i].score {
				rel[i], rel[j] = rel[j], rel[i]
			}
		}
	}
	out := []item{seed}
	for i := 0; i < len(rel) && len(out) < k; i++ {
		out = append(out, rel[i].it)
	}
	return out
}

// relatednessFn prefers the clock dimension's transit; falls back to any
// transit callback, then to a constant.
func (m *Model) relatednessFn() func(a, b int) int64 {
	if d := m.clockDim(); d != nil && d.cb.transit != nil {
		return d.cb.transit
	}
	for _, c := range m.callbacks {
		if c.transit != nil {
			return c.transit
		}
	}
	return func(a, b int) int64 { return 0 }
}

func (m *Model) routedItems(routes [][]int) []item {
	present := map[int]bool{}
	for _, r := range routes {
		for _, idx := range r {
			present[idx] = true
		}
	}
	var out []item
	for _, it := range m.collectItems() {
		if present[it.pickup] {
			out = append(out, it)
		}
	}
	return out
}

// removeItems returns a copy of routes without the removed items' nodes.
func (m *Model) removeItems(routes [][]int, removed []item) [][]int {
	drop := map[int]bool{}
	for _, it := range removed {
		drop[it.pickup] = true
		if it.delivery >= 0 {
			drop[it.delivery] = true
		}
	}
	out := make([][]int, len(routes))
	for v, r := range routes {
		for _, idx := range r {
			if !drop[idx] {
				out[v] = append(out[v], idx)
			}
		}
	}
	return out
}

// greedyInsert reinserts items cheapest-first; false when any item has no
// feasible slot.
func (m *Model) greedyInsert(routes [][]int, items []item) bool {
	for _, it := range items {
		if !m.insertCheapest(routes, it) {
			return false
		}
	}
	return true
}

// regretInsert reinserts by largest regret-2: the item whose second-best slot
// is most expensive relative to its best goes first.
func (m *Model) regretInsert(routes [][]int, items []item) bool {
	pending := append([]item(nil), items...)
	for len(pending) > 0 {
		bestIdx := -1
		var bestRegret int64 = -1
		var bestV int
		var bestRoute []int
		for pi, it := range pending {
			best1, best2 := int64(math.MaxInt64), int64(math.MaxInt64)
			var route1 []int
			v1 := -1
			for v := range routes {
				route, cost, ok := m.bestInsertion(routes[v], v, it)
				if !ok {
					continue
				}
				if cost < best1 {
					best2 = best1
					best1, route1, v1 = cost, route, v
				} else if cost < best2 {
					best2 = cost
				}
			}
			if v1 < 0 {
				return false
			}
			regret := satSub64(best2, best1)
			if regret > bestRegret {
				bestRegret, bestIdx = regret, pi
				bestV, bestRoute = v1, route1
			}
		}
		routes[bestV] = bestRoute
		pending = append(pending[:bestIdx], pending[bestIdx+1:]...)
	}
	return true
}

// twoOptImprove reverses intra-route segments when the result stays feasible
// and cheaper. Pair ordering is rechecked by evaluate, so reversals that flip
// a pickup past its delivery are rejected.
func (m *Model) twoOptImprove(routes [][]int) {
	for v := range routes {
		r := routes[v]
		n := len(r)
		if n < 3 {
			continue
		}
		base, ok := m.evaluate(v, r)
		if !ok {
			continue
		}
		improved := true
		for improved {
			improved = false
			for i := 0; i < n-1; i++ {
				for k := i + 1; k < n; k++ {
					cand := append([]int(nil), r...)
					for a, b := i, k; a < b; a, b = a+1, b-1 {
						cand[a], cand[b] = cand[b], cand[a]
					}
					cost, ok := m.evaluate(v, cand)
					if ok && cost < base {
						r, base = cand, cost
						improved = true
					}
				}
			}
		}
		routes[v] = r
	}
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
