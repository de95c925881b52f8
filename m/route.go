package m

// Route is one entry in a router's routing table: a path-vector reachability
// claim for a prefix, learned either locally (own prefixes) or via ADVERT.
type Route struct {
	// Pfx is the advertised prefix.
	Pfx Prefix

	// Timestamp is seconds since this router's start, at the time this
	// route's information was produced (by the original advertiser, carried
	// through re-advertisements).
	Timestamp float64

	// Cost is the accumulated path cost, in seconds.
	Cost float64

	// Path is the sequence of overlay addresses from this router (head) to
	// the destination router (tail). Never empty.
	Path []Address

	// OutLink is the link index packets for this prefix should be forwarded
	// on.
	OutLink LinkIndex

	// Valid is false once a link failure has invalidated this route. Invalid
	// routes are kept (for aging/diagnostics), never deleted.
	Valid bool
}

// Clone returns a deep copy of the route, safe to mutate independently.
func (r Route) Clone() Route {
	path := make([]Address, len(r.Path))
	copy(path, r.Path)
	r.Path = path
	return r
}

// HasLoop reports whether addr already appears in the route's path.
func (r Route) HasLoop(addr Address) bool {
	return Contains(r.Path, addr)
}

// ContainsAdjacency reports whether the ordered pair (a, b) appears as
// consecutive hops anywhere in the path.
func (r Route) ContainsAdjacency(a, b Address) bool {
	for i := 0; i+1 < len(r.Path); i++ {
		if r.Path[i] == a && r.Path[i+1] == b {
			return true
		}
	}
	return false
}
