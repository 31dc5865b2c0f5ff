package model

// Edge is a directed travel link. The zero value is the Undefined edge:
// no direct path between the pair.
type Edge struct {
	Distance int64
	Duration int64
	Defined  bool
}

type edgeKey struct {
	from string
	to   string
}

// RouteMatrix maps ordered location pairs to travel edges. Lookups of absent
// pairs yield the Undefined edge, never an error.
type RouteMatrix struct {
	edges map[edgeKey]Edge
}

// NewRouteMatrix returns an empty matrix.
func NewRouteMatrix() *RouteMatrix {
	return &RouteMatrix{edges: map[edgeKey]Edge{}}
}

// Set registers the directed edge from -> to.
func (m *RouteMatrix) Set(from, to *Location, distance, duration int64) {
	m.edges[edgeKey{from.ID, to.ID}] = Edge{Distance: distance, Duration: duration, Defined: true}
}

// At returns the edge for the ordered pair, or the Undefined edge when either
// location is absent or no edge was registered.
func (m *RouteMatrix) At(from, to *Location) Edge {
	if from == nil || to == nil {
		return Edge{}
	}
	return m.edges[edgeKey{from.ID, to.ID}]
}

// Len reports the number of defined edges.
func (m *RouteMatrix) Len() int { return len(m.edges) }
