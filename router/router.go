// Package router implements the Router: the path-vector routing protocol
// that discovers and maintains routes via HELLO liveness probing and
// ADVERT/FADVERT route exchange, installing the results into the Forwarder's
// forwarding table.
package router

import (
	"sync"
	"time"

	"github.com/pathvector/overlayd/config"
	"github.com/pathvector/overlayd/forwarder"
	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

const (
	helloInterval  = 1 * time.Second
	advertInterval = 10 * time.Second
)

// forwarderIface is the subset of the Forwarder module the Router drives.
type forwarderIface interface {
	AddRoute(pfx m.Prefix, link m.LinkIndex)
	SendPkt(p m.Packet, link m.LinkIndex, done <-chan struct{}) error
	ReceivePkt() forwarder.RoutedPacket
	Ready4Pkt() bool
	IncomingPkt() bool
}

// Router is the path-vector routing protocol module.
type Router struct {
	mgr *mgr.Manager

	myIP      m.Address
	prefixes  []m.Prefix
	neighbors []config.Neighbor
	debugLvl  int
	enFA      bool

	fwd forwarderIface

	links []*m.LinkInfo

	// routesMu guards routes. The routing table is driven exclusively by
	// the dispatch loop; the lock exists only so the debug-state snapshot
	// (taken from an unrelated goroutine) never observes a half-written
	// route.
	routesMu sync.Mutex
	routes   routingTable

	clock      *clock
	lastHello  time.Time
	lastAdvert time.Time
}

// New returns a new Router. debugLvl enables routing-table tracing at level
// >= 1; enFA enables failure-advertisement emission on link death.
func New(cfg *config.Config, debugLvl int, enFA bool, fwd forwarderIface) *Router {
	r := &Router{
		mgr:       mgr.New("router"),
		myIP:      cfg.MyIP,
		prefixes:  cfg.Prefixes,
		neighbors: cfg.Neighbors,
		debugLvl:  debugLvl,
		enFA:      enFA,
		fwd:       fwd,
		links:     make([]*m.LinkInfo, len(cfg.Neighbors)),
		routes:    newRoutingTable(),
		clock:     newClock(),
	}
	for i, n := range cfg.Neighbors {
		r.links[i] = m.NewLinkInfo(n.OverlayIP, n.HostAddr, n.Delay)
	}
	return r
}

// Manager returns the module's manager.
func (r *Router) Manager() *mgr.Manager {
	return r.mgr
}

// Start launches the router's single dispatch loop.
func (r *Router) Start() error {
	now := time.Now()
	r.lastHello = now
	r.lastAdvert = now
	r.mgr.Go("router-loop", r.mainLoop)
	return nil
}

// Stop is a no-op; mainLoop exits on context cancellation.
func (r *Router) Stop() error {
	return nil
}

// mainLoop checks, in strict priority order, the HELLO timer, the periodic
// ADVERT timer, and inbound control packets from the Forwarder, acting on
// the first that is due and running it to completion before reconsidering.
func (r *Router) mainLoop(w *mgr.WorkerCtx) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		if w.IsDone() {
			return nil
		}

		now := time.Now()
		switch {
		case now.Sub(r.lastHello) >= helloInterval:
			r.lastHello = now
			r.runHelloRound(w)
			continue
		case now.Sub(r.lastAdvert) >= advertInterval:
			r.lastAdvert = now
			r.runPeriodicAdvert(w)
			continue
		case r.fwd.IncomingPkt():
			r.handleInbound(w)
			continue
		}

		select {
		case <-w.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Router) handleInbound(w *mgr.WorkerCtx) {
	rp := r.fwd.ReceivePkt()
	msg, err := parseControlMessage(rp.Packet.Payload)
	if err != nil {
		if r.debugLvl >= 1 {
			w.Debug("dropping malformed control payload", "link", rp.Link, "err", err)
		}
		return
	}

	switch msg.typ {
	case msgHello:
		r.handleHello(w, rp.Link, msg)
	case msgHelloReply:
		r.handleHelloReply(w, rp.Link, msg)
	case msgAdvert:
		r.handleAdvert(w, rp.Link, msg)
	case msgFailureAdvert:
		r.handleFailureAdvert(w, msg)
	case msgUnknown:
		// Ignored per the wire grammar's robustness rule.
	}
}

func (r *Router) getRoute(pfx m.Prefix) (*m.Route, bool) {
	r.routesMu.Lock()
	defer r.routesMu.Unlock()
	return r.routes.get(pfx)
}

func (r *Router) setRoute(rt *m.Route) {
	r.routesMu.Lock()
	defer r.routesMu.Unlock()
	r.routes.set(rt)
}

// rangeRoutes calls fn for every route under lock. fn must not call back
// into any method that takes routesMu.
func (r *Router) rangeRoutes(fn func(*m.Route)) {
	r.routesMu.Lock()
	defer r.routesMu.Unlock()
	for _, rt := range r.routes {
		fn(rt)
	}
}

// sendToLink is the busy-wait-free send primitive every protocol handler
// uses: it hands the packet to the Forwarder's routing-plane egress, which
// blocks (without spinning) on fromRouter until there is room, same as
// forward() blocks on the Substrate's per-link queue for the next hop. It
// only gives up early if w is canceled mid-send.
func (r *Router) sendToLink(w *mgr.WorkerCtx, payload []byte, link m.LinkIndex) {
	peer := r.links[link].PeerIP
	pkt := m.NewControlPacket(r.myIP, peer, payload)
	if err := r.fwd.SendPkt(pkt, link, w.Done()); err != nil {
		if r.debugLvl >= 1 {
			w.Debug("failed to send control packet", "link", link, "err", err)
		}
	}
}
