package router

import (
	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

// runHelloRound processes the previous round's liveness for every link, then
// emits a fresh HELLO on each.
func (r *Router) runHelloRound(w *mgr.WorkerCtx) {
	for i := range r.links {
		link := m.LinkIndex(i)
		r.processHelloLiveness(w, link)
		r.sendToLink(w, buildHello(r.clock.now()), link)
	}
}

func (r *Router) processHelloLiveness(w *mgr.WorkerCtx, link m.LinkIndex) {
	li := r.links[link]

	if !li.TakeGotReply() {
		wasAboutToDie := li.GetState() == 1
		newState := li.DeclineState()

		if wasAboutToDie && newState == m.HelloStateDown {
			r.invalidateRoutesForLink(w, link)
		}
	}
}

// invalidateRoutesForLink marks every route whose outLink is link invalid,
// prints the routing table if anything changed and debug is on, and emits a
// failure advertisement if enabled.
func (r *Router) invalidateRoutesForLink(w *mgr.WorkerCtx, link m.LinkIndex) {
	changed := false
	r.rangeRoutes(func(rt *m.Route) {
		if rt.OutLink == link && rt.Valid {
			rt.Valid = false
			changed = true
		}
	})

	if !changed {
		return
	}

	if r.debugLvl >= 1 {
		r.printTable(w)
	}
	if r.enFA {
		r.sendFailureAdvert(w, link)
	}
}

func (r *Router) handleHello(w *mgr.WorkerCtx, link m.LinkIndex, msg controlMessage) {
	r.sendToLink(w, buildHelloReply(msg.timestamp), link)
}

func (r *Router) handleHelloReply(_ *mgr.WorkerCtx, link m.LinkIndex, msg controlMessage) {
	now := r.clock.now()
	rtt := now - msg.timestamp
	sample := rtt / 2

	li := r.links[link]
	li.UpdateCost(sample)
	li.MarkReplyReceived()
}
