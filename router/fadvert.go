package router

import (
	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

// sendFailureAdvert emits a failure advertisement for failedLink to every
// link whose liveness state is not down.
func (r *Router) sendFailureAdvert(w *mgr.WorkerCtx, failedLink m.LinkIndex) {
	peer := r.links[failedLink].PeerIP
	now := r.clock.now()
	payload := buildFailureAdvert(r.myIP, peer, now, []m.Address{r.myIP})

	for i, li := range r.links {
		if li.GetState() == m.HelloStateDown {
			continue
		}
		r.sendToLink(w, payload, m.LinkIndex(i))
	}
}

func (r *Router) handleFailureAdvert(w *mgr.WorkerCtx, msg controlMessage) {
	if m.Contains(msg.faPath, r.myIP) {
		return
	}

	changed := false
	r.rangeRoutes(func(rt *m.Route) {
		if rt.Valid && rt.ContainsAdjacency(msg.failA, msg.failB) {
			rt.Valid = false
			changed = true
		}
	})

	if !changed {
		return
	}

	newPath := make([]m.Address, 0, len(msg.faPath)+1)
	newPath = append(newPath, r.myIP)
	newPath = append(newPath, msg.faPath...)
	payload := buildFailureAdvert(msg.failA, msg.failB, msg.faTimestamp, newPath)

	receivedFrom := msg.faPath[0]
	for i, li := range r.links {
		if li.PeerIP == receivedFrom {
			continue
		}
		r.sendToLink(w, payload, m.LinkIndex(i))
	}
}
