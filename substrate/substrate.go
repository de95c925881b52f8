// Package substrate emulates the overlay's link layer: per-link egress
// queues with artificial delay, a single UDP socket shared by ingress and
// egress, and wire encoding/decoding of overlay packets.
package substrate

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pathvector/overlayd/config"
	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

// Port is the fixed UDP port every router listens and sends on.
const Port = 31313

// senderGraceWindow / receiverGraceWindow are the termination-heuristic
// grace windows: each side exits once no data packet has been processed for
// this long, provided at least one ever was.
const (
	senderGraceWindow   = 3 * time.Second
	receiverGraceWindow = 5 * time.Second
)

// IncomingPacket is one item taken off the shared ingress queue.
type IncomingPacket struct {
	Packet m.Packet
	Link   m.LinkIndex
}

// Substrate is the emulated link layer module: it owns one egress queue per
// configured neighbor, a single ingress queue, and the shared UDP socket.
type Substrate struct {
	mgr *mgr.Manager

	cfg       config.Config
	static    bool
	debugLvl  int
	neighbors []config.Neighbor

	conn atomic.Pointer[net.UDPConn]

	egress []*linkQueue

	delaysMu sync.Mutex
	delays   []float64

	ingress chan IncomingPacket

	lastDataAt atomic.Int64 // UnixNano; 0 means "never seen"

	fatal chan error
}

// New returns a new Substrate for the given config. Static disables the
// dynamic per-second delay perturbation.
func New(cfg *config.Config, static bool, debugLvl int) *Substrate {
	s := &Substrate{
		mgr:       mgr.New("substrate"),
		cfg:       *cfg,
		static:    static,
		debugLvl:  debugLvl,
		neighbors: cfg.Neighbors,
		ingress:   make(chan IncomingPacket, queueCapacity),
		fatal:     make(chan error, 1),
	}

	s.egress = make([]*linkQueue, len(cfg.Neighbors))
	s.delays = make([]float64, len(cfg.Neighbors))
	for i, n := range cfg.Neighbors {
		s.egress[i] = newLinkQueue(queueCapacity)
		s.delays[i] = n.Delay
	}

	return s
}

// Manager returns the module's manager.
func (s *Substrate) Manager() *mgr.Manager {
	return s.mgr
}

// Start opens the shared UDP socket and starts the sender, receiver, and
// (unless static) delay-perturbation workers.
func (s *Substrate) Start() error {
	addr := net.JoinHostPort(s.cfg.HostIP, fmt.Sprintf("%d", Port))
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve bind address %s: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("open substrate socket on %s: %w", addr, err)
	}
	s.conn.Store(conn)

	s.mgr.Go("substrate-send", s.senderLoop)
	s.mgr.Go("substrate-recv", s.receiverLoop)
	if !s.static {
		s.mgr.Go("substrate-delay", s.delayLoop)
	}

	return nil
}

// Stop closes the shared socket, unblocking any in-flight reads, and wakes
// up producers blocked on a full egress queue.
func (s *Substrate) Stop() error {
	if conn := s.conn.Load(); conn != nil {
		_ = conn.Close()
	}
	for _, q := range s.egress {
		q.Close()
	}
	return nil
}

// FatalErr signals a condition the receiver cannot recover from (a datagram
// from an unrecognized host). The caller should exit the process with code 1.
func (s *Substrate) FatalErr() <-chan error {
	return s.fatal
}

// LinkCount returns the number of configured links.
func (s *Substrate) LinkCount() int {
	return len(s.neighbors)
}

// Enqueue blocks (without spinning) until the egress queue for link has
// room, then enqueues pkt for delayed release. Back-pressure semantics are
// preserved via linkQueue's condition variable rather than a busy-wait.
func (s *Substrate) Enqueue(pkt m.Packet, link m.LinkIndex) error {
	if int(link) < 0 || int(link) >= len(s.egress) {
		return fmt.Errorf("invalid link index %d", link)
	}
	s.egress[link].Put(pkt)
	return nil
}

// Ready reports whether the egress queue for link currently has room.
func (s *Substrate) Ready(link m.LinkIndex) bool {
	if int(link) < 0 || int(link) >= len(s.egress) {
		return false
	}
	return s.egress[link].Ready()
}

// TryRecv returns the next packet on the shared ingress queue, if any,
// without blocking.
func (s *Substrate) TryRecv() (IncomingPacket, bool) {
	select {
	case item := <-s.ingress:
		return item, true
	default:
		return IncomingPacket{}, false
	}
}

// Incoming reports whether the ingress queue has a packet waiting.
func (s *Substrate) Incoming() bool {
	return len(s.ingress) > 0
}

func (s *Substrate) delayFor(link int) float64 {
	s.delaysMu.Lock()
	defer s.delaysMu.Unlock()
	return s.delays[link]
}

// perturbDelay applies one tick of the dynamic delay emulation to link,
// under lock, and reports the resulting (possibly sign-flipped) value.
func (s *Substrate) perturbDelay(link int, delta float64, flipDraw float64) float64 {
	s.delaysMu.Lock()
	defer s.delaysMu.Unlock()

	s.delays[link] += delta
	if abs(s.delays[link]) > 0.5 || flipDraw < 0.02 {
		s.delays[link] = -s.delays[link]
	}
	return s.delays[link]
}

func (s *Substrate) markDataPacket() {
	s.lastDataAt.Store(time.Now().UnixNano())
}

// idleFor reports whether the substrate has seen at least one data packet
// and none in the last window.
func (s *Substrate) idleFor(window time.Duration) bool {
	last := s.lastDataAt.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.Unix(0, last)) > window
}
