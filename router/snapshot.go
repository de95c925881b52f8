package router

import "github.com/pathvector/overlayd/m"

// RouteSnapshot is one routing-table row, exported for debug-state export.
type RouteSnapshot struct {
	Prefix    string
	Cost      float64
	Path      string
	OutLink   int
	Valid     bool
	Timestamp float64
}

// LinkSnapshot is one link's liveness and cost state, exported for
// debug-state export.
type LinkSnapshot struct {
	PeerIP   string
	HostAddr string
	Cost     float64
	State    int
	Stats    m.Stats
}

// Snapshot returns a point-in-time copy of the routing table, for
// debug-state export. Safe to call from outside the router's dispatch
// goroutine; the copy is taken under routesMu, but nothing prevents a route
// update from landing immediately afterward.
func (r *Router) Snapshot() []RouteSnapshot {
	var out []RouteSnapshot
	r.rangeRoutes(func(rt *m.Route) {
		out = append(out, RouteSnapshot{
			Prefix:    rt.Pfx.String(),
			Cost:      rt.Cost,
			Path:      m.FormatPath(rt.Path),
			OutLink:   int(rt.OutLink),
			Valid:     rt.Valid,
			Timestamp: rt.Timestamp,
		})
	})
	return out
}

// LinkSnapshots returns a point-in-time copy of every link's liveness and
// cost state, for debug-state export.
func (r *Router) LinkSnapshots() []LinkSnapshot {
	out := make([]LinkSnapshot, len(r.links))
	for i, li := range r.links {
		out[i] = LinkSnapshot{
			PeerIP:   li.PeerIP.String(),
			HostAddr: li.HostAddr,
			Cost:     li.GetCost(),
			State:    int(li.GetState()),
			Stats:    li.Stats(),
		}
	}
	return out
}
