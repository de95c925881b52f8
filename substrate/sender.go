package substrate

import (
	"fmt"
	"math"
	"net"
	"time"

	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

// senderLoop is the Substrate-egress scheduler: a single thread that scans
// every link queue and releases the head packet once its emulated delay has
// elapsed, serializing it onto the shared UDP socket.
func (s *Substrate) senderLoop(w *mgr.WorkerCtx) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.Done():
			return nil
		case <-ticker.C:
		}

		if s.idleFor(senderGraceWindow) {
			w.Debug("sender idle past grace window, stopping")
			return nil
		}

		for link := range s.egress {
			s.releaseIfDue(w, link)
		}
	}
}

func (s *Substrate) releaseIfDue(w *mgr.WorkerCtx, link int) {
	q := s.egress[link]
	head, ok := q.Peek()
	if !ok {
		return
	}

	delay := time.Duration(math.Abs(s.delayFor(link)) * float64(time.Second))
	if time.Since(head.enqueueAt) < delay {
		return
	}

	head, ok = q.Pop()
	if !ok {
		return
	}

	if err := s.transmit(head.pkt, link); err != nil {
		w.Warn("failed to transmit packet", "link", link, "err", err)
		return
	}

	if s.debugLvl >= 2 {
		w.Debug("released packet", "link", link, "dest", head.pkt.DestAdr)
	}

	if head.pkt.Protocol == m.ProtocolData {
		s.markDataPacket()
	}
}

func (s *Substrate) transmit(pkt m.Packet, link int) error {
	wire, err := pkt.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	conn := s.conn.Load()
	if conn == nil {
		return fmt.Errorf("socket not open")
	}

	peerAddr := net.JoinHostPort(s.neighbors[link].HostAddr, fmt.Sprintf("%d", Port))
	udpAddr, err := net.ResolveUDPAddr("udp", peerAddr)
	if err != nil {
		return fmt.Errorf("resolve peer %s: %w", peerAddr, err)
	}

	_, err = conn.WriteToUDP(wire, udpAddr)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
