// Package forwarder implements the Forwarder: the packet-dispatch module
// sitting between the Substrate (wire) and the Router and application
// planes. It owns the forwarding table and the four bounded queues that
// connect it to its neighbors.
package forwarder

import (
	"errors"
	"fmt"
	"time"

	"github.com/tevino/abool"

	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
	"github.com/pathvector/overlayd/substrate"
)

const queueCapacity = 1000

// ErrQueueFull is returned by Send when the from-source queue has no room.
// SendPkt never returns it: it blocks until there is room.
var ErrQueueFull = errors.New("queue full")

// ErrClosed is returned by Send once the forwarder has been stopped.
var ErrClosed = errors.New("forwarder closed")

// substrateIface is the subset of the Substrate module the Forwarder needs.
// Defined here, rather than depending on the concrete type directly, to keep
// the dispatch loop testable against a fake.
type substrateIface interface {
	TryRecv() (substrate.IncomingPacket, bool)
	Enqueue(pkt m.Packet, link m.LinkIndex) error
	Ready(link m.LinkIndex) bool
	Incoming() bool
}

// RoutedPacket pairs a packet with the link it arrived on or should be sent
// out on, depending on direction.
type RoutedPacket struct {
	Packet m.Packet
	Link   m.LinkIndex
}

type appSend struct {
	payload []byte
	dest    m.Address
}

type appRecv struct {
	payload []byte
	src     string
}

// Forwarder is the packet-dispatch module. It holds the forwarding table and
// the four queues linking the application, router, and substrate planes.
type Forwarder struct {
	mgr *mgr.Manager

	myIP      m.Address
	debugLvl  int
	substrate substrateIface

	closed *abool.AtomicBool

	table *table

	fromSource chan appSend
	toSink     chan appRecv
	fromRouter chan RoutedPacket
	toRouter   chan RoutedPacket
}

// New returns a new Forwarder for the given local address. substrate must
// already be constructed (but need not be started).
func New(myIP m.Address, debugLvl int, substrate substrateIface) *Forwarder {
	f := &Forwarder{
		mgr:        mgr.New("forwarder"),
		myIP:       myIP,
		debugLvl:   debugLvl,
		substrate:  substrate,
		closed:     abool.New(),
		table:      newTable(),
		fromSource: make(chan appSend, queueCapacity),
		toSink:     make(chan appRecv, queueCapacity),
		fromRouter: make(chan RoutedPacket, queueCapacity),
		toRouter:   make(chan RoutedPacket, queueCapacity),
	}
	f.table.addRoute(m.DefaultPrefix, 0)
	return f
}

// Manager returns the module's manager.
func (f *Forwarder) Manager() *mgr.Manager {
	return f.mgr
}

// Start launches the single dispatch worker.
func (f *Forwarder) Start() error {
	f.mgr.Go("forwarder-loop", f.dispatchLoop)
	return nil
}

// Stop marks the forwarder closed, rejecting further application sends, and
// lets dispatchLoop exit on context cancellation.
func (f *Forwarder) Stop() error {
	f.closed.Set()
	return nil
}

// AddRoute idempotently upserts prefix -> link into the forwarding table.
func (f *Forwarder) AddRoute(pfx m.Prefix, link m.LinkIndex) {
	f.table.addRoute(pfx, link)
}

// Snapshot returns the forwarding table's current entries, in lookup order,
// for debug-state export.
func (f *Forwarder) Snapshot() []TableEntry {
	entries := f.table.snapshot()
	out := make([]TableEntry, len(entries))
	for i, e := range entries {
		out[i] = TableEntry{Prefix: e.pfx.String(), Link: int(e.link)}
	}
	return out
}

// Send is the application-plane ingress: it builds a data packet addressed
// to dest and enqueues it for dispatch. Returns ErrQueueFull if the
// from-source queue has no room.
func (f *Forwarder) Send(payload []byte, dest string) error {
	if f.closed.IsSet() {
		return ErrClosed
	}

	destAdr, err := m.ParseAddress(dest)
	if err != nil {
		return fmt.Errorf("parse destination %q: %w", dest, err)
	}

	select {
	case f.fromSource <- appSend{payload: payload, dest: destAdr}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Receive blocks until a payload destined for this router is available.
func (f *Forwarder) Receive() (payload []byte, src string) {
	r := <-f.toSink
	return r.payload, r.src
}

// Ready reports whether Receive would return immediately.
func (f *Forwarder) Ready() bool {
	return len(f.toSink) > 0
}

// Incoming is an alias of Ready, matching the paired naming of the
// application- and router-plane accessors.
func (f *Forwarder) Incoming() bool {
	return f.Ready()
}

// SendPkt is the routing-plane egress: it enqueues p for dispatch on link,
// blocking (without spinning) until the queue has room. done is the
// caller's cancellation signal; if it fires first, SendPkt returns
// ErrClosed without enqueuing.
func (f *Forwarder) SendPkt(p m.Packet, link m.LinkIndex, done <-chan struct{}) error {
	select {
	case f.fromRouter <- RoutedPacket{Packet: p, Link: link}:
		return nil
	case <-done:
		return ErrClosed
	}
}

// ReceivePkt blocks until a control packet destined for this router is
// available, returning it along with the link it arrived on.
func (f *Forwarder) ReceivePkt() RoutedPacket {
	return <-f.toRouter
}

// Ready4Pkt reports whether ReceivePkt would return immediately.
func (f *Forwarder) Ready4Pkt() bool {
	return len(f.toRouter) > 0
}

// IncomingPkt is an alias of Ready4Pkt.
func (f *Forwarder) IncomingPkt() bool {
	return f.Ready4Pkt()
}

// dispatchLoop is the Forwarder's main loop: each iteration checks sources
// in strict priority order (substrate inbound, router outbound, application
// outbound), acting on the first that is ready, and sleeps 1ms only when
// none are.
func (f *Forwarder) dispatchLoop(w *mgr.WorkerCtx) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		if w.IsDone() {
			return nil
		}

		switch {
		case f.substrate.Incoming():
			f.handleSubstrateIncoming(w)
			continue
		case f.tryForwardFromRouter(w):
			continue
		case f.tryForwardFromSource(w):
			continue
		}

		select {
		case <-w.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (f *Forwarder) handleSubstrateIncoming(w *mgr.WorkerCtx) {
	item, ok := f.substrate.TryRecv()
	if !ok {
		return
	}
	pkt, inLink := item.Packet, item.Link

	if pkt.DestAdr == f.myIP {
		f.deliverLocal(w, pkt, inLink)
		return
	}

	pkt.ReduceTTL()
	if pkt.TTL == 0 {
		if f.debugLvl >= 1 {
			w.Debug("dropping expired packet", "src", pkt.SrcAdr, "dest", pkt.DestAdr)
		}
		return
	}

	link := f.table.lookup(pkt.DestAdr)
	if link == noRoute {
		// Unreachable by construction: the default route always matches.
		return
	}
	f.forward(w, pkt, link)
}

func (f *Forwarder) deliverLocal(w *mgr.WorkerCtx, pkt m.Packet, inLink m.LinkIndex) {
	switch pkt.Protocol {
	case m.ProtocolData:
		select {
		case f.toSink <- appRecv{payload: pkt.Payload, src: pkt.SrcAdr.String()}:
		default:
			if f.debugLvl >= 1 {
				w.Debug("sink queue full, dropping packet", "src", pkt.SrcAdr)
			}
		}
	case m.ProtocolControl:
		select {
		case f.toRouter <- RoutedPacket{Packet: pkt, Link: inLink}:
		default:
			if f.debugLvl >= 1 {
				w.Debug("router-inbound queue full, dropping packet", "src", pkt.SrcAdr)
			}
		}
	}
}

func (f *Forwarder) tryForwardFromRouter(w *mgr.WorkerCtx) bool {
	select {
	case rp := <-f.fromRouter:
		f.forward(w, rp.Packet, rp.Link)
		return true
	default:
		return false
	}
}

func (f *Forwarder) tryForwardFromSource(w *mgr.WorkerCtx) bool {
	select {
	case send := <-f.fromSource:
		pkt := m.NewDataPacket(f.myIP, send.dest, send.payload)
		link := f.table.lookup(pkt.DestAdr)
		if link == noRoute {
			return true
		}
		f.forward(w, pkt, link)
		return true
	default:
		return false
	}
}

// forward hands pkt to the substrate for link, blocking (without spinning)
// until the egress queue has room.
func (f *Forwarder) forward(w *mgr.WorkerCtx, pkt m.Packet, link m.LinkIndex) {
	if err := f.substrate.Enqueue(pkt, link); err != nil {
		if f.debugLvl >= 1 {
			w.Debug("failed to enqueue packet for egress", "link", link, "err", err)
		}
	}
}
