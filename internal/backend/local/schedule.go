package local

// Route evaluation. A candidate route is feasible when every dimension can be
// propagated from start to end without breaking a cumul bound, a capacity, or
// the slack budget, and every registered cumul inequality holds. Propagation
// is also what prices a route: arc-cost evaluator plus per-dimension span
// costs plus the vehicle's fixed cost.

func satAdd64(a, b int64) int64 {
	if a > 0 && b > maxCost-a {
		return maxCost
	}
	if a < 0 && b < -maxCost-a {
		return -maxCost
	}
	return a + b
}

func satSub64(a, b int64) int64 {
	return satAdd64(a, -b)
}

func satMul64(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	c := a * b
	if c/b != a {
		if (a > 0) == (b > 0) {
			return maxCost
		}
		return -maxCost
	}
	return c
}

func (d *dimension) delta(from, to int) int64 {
	if d.cb.transit != nil {
		return d.cb.transit(from, to)
	}
	return d.cb.unary(from)
}

// fullRoute prefixes and suffixes the vehicle's endpoint nodes.
func (m *Model) fullRoute(v int, interior []int) []int {
	seq := make([]int, 0, len(interior)+2)
	seq = append(seq, m.starts[v])
	seq = append(seq, interior...)
	seq = append(seq, m.ends[v])
	return seq
}

// propagate walks seq forward computing the earliest feasible cumul value at
// each position and the slack (waiting) spent to reach it. Mandatory breaks
// are folded into the clock dimension as soon as the clock enters their
// allowed window.
func (m *Model) propagate(d *dimension, v int, seq []int) (values, waits []int64, ok bool) {
	values = make([]int64, len(seq))
	waits = make([]int64, len(seq))
	limit := d.capacities[v]

	var cum int64
	if !d.startAtZero {
		cum = d.cumulMin[seq[0]]
	}
	if cum < d.cumulMin[seq[0]] {
		need := satSub64(d.cumulMin[seq[0]], cum)
		if need > d.slackBound {
			return nil, nil, false
		}
		waits[0] = need
		cum = d.cumulMin[seq[0]]
	}
	if cum > d.cumulMax[seq[0]] || cum > limit {
		return nil, nil, false
	}
	values[0] = cum

	isClock := d == m.clockDim()
	var pending []int
	if isClock {
		for i, b := range m.breaks[v] {
			if !b.Optional {
				pending = append(pending, i)
			}
		}
	}

	for j := 1; j < len(seq); j++ {
		cum = satAdd64(cum, d.delta(seq[j-1], seq[j]))
		if isClock {
			remaining := pending[:0]
			for _, bi := range pending {
				b := m.breaks[v][bi]
				if cum >= b.WindowMin {
					cum = satAdd64(cum, b.Duration)
				} else {
					remaining = append(remaining, bi)
				}
			}
			pending = remaining
		}
		if cum < d.cumulMin[seq[j]] {
			need := satSub64(d.cumulMin[seq[j]], cum)
			if need > d.slackBound {
				return nil, nil, false
			}
			waits[j] = need
			cum = d.cumulMin[seq[j]]
		}
		if cum > d.cumulMax[seq[j]] || cum > limit {
			return nil, nil, false
		}
		values[j] = cum
	}
	return values, waits, true
}

// evaluate prices one vehicle's route, returning ok=false when any dimension
// or cumul inequality rejects it.
func (m *Model) evaluate(v int, interior []int) (int64, bool) {
	seq := m.fullRoute(v, interior)

	if len(m.pairs) > 0 {
		pos := make(map[int]int, len(interior))
		for j, idx := range interior {
			pos[idx] = j
		}
		// A pair must ride together, pickup first. A pair entirely on
		// another route is fine; a split pair is not.
		for _, p := range m.pairs {
			pj, pok := pos[p[0]]
			dj, dok := pos[p[1]]
			if pok != dok {
				return 0, false
			}
			if pok && pj > dj {
				return 0, false
			}
		}
	}

	var cost int64
	for _, d := range m.dims {
		values, _, ok := m.propagate(d, v, seq)
		if !ok {
			return 0, false
		}
		if coef := d.spanCost[v]; coef > 0 {
			span := satSub64(values[len(values)-1], values[0])
			cost = satAdd64(cost, satMul64(coef, span))
		}
		if len(d.lessOrEqual) > 0 {
			pos := make(map[int]int, len(seq))
			for j, idx := range seq {
				pos[idx] = j
			}
			// An inequality binds only when both indices sit on this
			// route; same-vehicle pairing is the search's invariant.
			for _, le := range d.lessOrEqual {
				lj, lok := pos[le[0]]
				rj, rok := pos[le[1]]
				if lok && rok && values[lj] > values[rj] {
					return 0, false
				}
			}
		}
	}

	if cb := m.arcCost[v]; cb >= 0 {
		fn := m.callbacks[cb].transit
		for j := 1; j < len(seq); j++ {
			cost = satAdd64(cost, fn(seq[j-1], seq[j]))
		}
	}
	if len(interior) > 0 || m.usedWhenEmpty[v] {
		cost = satAdd64(cost, m.fixedCost[v])
	}
	return cost, true
}

// solutionCost prices a full set of routes; empty vehicles still pay their
// fixed cost when marked used-when-empty.
func (m *Model) solutionCost(routes [][]int) (int64, bool) {
	var total int64
	for v, interior := range routes {
		c, ok := m.evaluate(v, interior)
		if !ok {
			return 0, false
		}
		total = satAdd64(total, c)
	}
	return total, true
}

// assignment is the engine's solution view: successor links plus the cumul
// and slack ranges of every dimension at every routed index.
type assignment struct {
	next     []int
	cumulMin map[string][]int64
	cumulMax map[string][]int64
	slackMin map[string][]int64
	slackMax map[string][]int64
}

func (a *assignment) Next(index int) int { return a.next[index] }

func (a *assignment) CumulMin(dim string, index int) int64 { return a.cumulMin[dim][index] }
func (a *assignment) CumulMax(dim string, index int) int64 { return a.cumulMax[dim][index] }
func (a *assignment) SlackMin(dim string, index int) int64 { return a.slackMin[dim][index] }
func (a *assignment) SlackMax(dim string, index int) int64 { return a.slackMax[dim][index] }

// buildAssignment derives per-index bounds for a confirmed set of routes.
// The forward pass gives the earliest values; a backward pass from each end
// node's upper bound gives the latest. Dimensions with no slack budget are
// rigid: earliest and latest coincide.
func (m *Model) buildAssignment(routes [][]int) *assignment {
	a := &assignment{
		next:     make([]int, m.nodes),
		cumulMin: map[string][]int64{},
		cumulMax: map[string][]int64{},
		slackMin: map[string][]int64{},
		slackMax: map[string][]int64{},
	}
	for i := range a.next {
		a.next[i] = i
	}
	for _, d := range m.dims {
		a.cumulMin[d.name] = make([]int64, m.nodes)
		a.cumulMax[d.name] = make([]int64, m.nodes)
		a.slackMin[d.name] = make([]int64, m.nodes)
		a.slackMax[d.name] = make([]int64, m.nodes)
	}

	for v, interior := range routes {
		seq := m.fullRoute(v, interior)
		for j := 0; j < len(seq)-1; j++ {
			a.next[seq[j]] = seq[j+1]
		}

		for _, d := range m.dims {
			values, waits, ok := m.propagate(d, v, seq)
			if !ok {
				// Confirmed routes propagate by construction.
				continue
			}
			latest := make([]int64, len(seq))
			if d.slackBound == 0 {
				copy(latest, values)
			} else {
				limit := d.capacities[v]
				last := len(seq) - 1
				latest[last] = d.cumulMax[seq[last]]
				if limit < latest[last] {
					latest[last] = limit
				}
				for j := last - 1; j >= 0; j-- {
					l := satSub64(latest[j+1], d.delta(seq[j], seq[j+1]))
					if d.cumulMax[seq[j]] < l {
						l = d.cumulMax[seq[j]]
					}
					if limit < l {
						l = limit
					}
					if l < values[j] {
						l = values[j]
					}
					latest[j] = l
				}
			}
			for j, idx := range seq {
				a.cumulMin[d.name][idx] = values[j]
				a.cumulMax[d.name][idx] = latest[j]
				if j < len(seq)-1 {
					smin := waits[j+1]
					smax := satSub64(latest[j+1], satAdd64(values[j], d.delta(seq[j], seq[j+1])))
					if smax > d.slackBound {
						smax = d.slackBound
					}
					if smax < smin {
						smax = smin
					}
					a.slackMin[d.name][idx] = smin
					a.slackMax[d.name][idx] = smax
				}
			}
		}
	}
	return a
}
