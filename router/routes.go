package router

import "github.com/pathvector/overlayd/m"

// routingTable is the Router's authoritative route store, keyed by prefix.
// Every mutation and iteration goes through Router's locked wrapper methods
// (getRoute/setRoute/rangeRoutes), which is what keeps it safe for the
// debug-state snapshot to read concurrently with the dispatch loop.
type routingTable map[m.Prefix]*m.Route

func newRoutingTable() routingTable {
	return make(routingTable)
}

func (t routingTable) get(pfx m.Prefix) (*m.Route, bool) {
	r, ok := t[pfx]
	return r, ok
}

func (t routingTable) set(r *m.Route) {
	t[r.Pfx] = r
}

// applyUpdateRule evaluates the five ordered conditions that decide whether
// candidate should replace existing for the same prefix. Returns the route
// that should end up installed, and whether a replacement occurred.
func applyUpdateRule(existing, candidate m.Route) (m.Route, bool) {
	switch {
	case !candidate.Valid:
		// Invalidations only ever arrive via failure advertisements, never
		// through this path.
		return existing, false
	case !existing.Valid:
		return candidate, true
	case samePath(existing.Path, candidate.Path) && existing.OutLink == candidate.OutLink:
		// Refreshes the route even if candidate.Cost is worse: essential for
		// route aging under steady-state reconvergence.
		return candidate, true
	case candidate.Cost <= 0.9*existing.Cost:
		return candidate, true
	case candidate.Timestamp >= existing.Timestamp+20:
		return candidate, true
	default:
		return existing, false
	}
}

func samePath(a, b []m.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
