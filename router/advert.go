package router

import (
	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

// runPeriodicAdvert emits an ADVERT for every locally-originated prefix on
// every link. Unlike re-advertisement on receipt, the periodic (self
// originated) ADVERT does not apply split horizon — the prefix originates
// here, so there is no "receivedFrom" link to exclude.
func (r *Router) runPeriodicAdvert(w *mgr.WorkerCtx) {
	now := r.clock.now()
	for _, pfx := range r.prefixes {
		payload := buildAdvert(pfx, now, 0, []m.Address{r.myIP})
		for i := range r.links {
			r.sendToLink(w, payload, m.LinkIndex(i))
		}
	}
}

func (r *Router) handleAdvert(w *mgr.WorkerCtx, inLink m.LinkIndex, msg controlMessage) {
	if r.links[inLink].GetState() == m.HelloStateDown {
		return
	}
	if m.Contains(msg.path, r.myIP) {
		// Loop: we are already in the advertised path.
		return
	}

	newPath := make([]m.Address, 0, len(msg.path)+1)
	newPath = append(newPath, r.myIP)
	newPath = append(newPath, msg.path...)

	newRte := m.Route{
		Pfx:       msg.pfx,
		Timestamp: r.clock.now(),
		Cost:      msg.cost + r.links[inLink].GetCost(),
		Path:      newPath,
		OutLink:   inLink,
		Valid:     true,
	}

	existing, present := r.getRoute(msg.pfx)

	var installed m.Route
	changed := false
	outLinkChanged := false

	switch {
	case !present:
		installed = newRte
		changed = true
		outLinkChanged = true
	default:
		prevOutLink := existing.OutLink
		updated, replaced := applyUpdateRule(*existing, newRte)
		installed = updated
		changed = replaced
		outLinkChanged = replaced && updated.OutLink != prevOutLink
	}

	if !changed {
		return
	}

	route := installed
	r.setRoute(&route)

	if outLinkChanged {
		r.fwd.AddRoute(route.Pfx, route.OutLink)
	}

	r.readvertise(w, route, msg.receivedFrom)
}

// readvertise re-emits route on every link except the one whose peer sent
// it (split horizon), busy-wait-free via sendToLink.
func (r *Router) readvertise(w *mgr.WorkerCtx, route m.Route, receivedFrom m.Address) {
	payload := buildAdvert(route.Pfx, route.Timestamp, route.Cost, route.Path)
	for i, li := range r.links {
		if li.PeerIP == receivedFrom {
			continue
		}
		r.sendToLink(w, payload, m.LinkIndex(i))
	}
}
