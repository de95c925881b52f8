package substrate

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/mgr"
)

// receiverLoop is the Substrate-ingress worker: it reads datagrams off the
// shared socket, decodes them, maps the source host address to a link
// index, and enqueues onto the single receive queue.
func (s *Substrate) receiverLoop(w *mgr.WorkerCtx) error {
	for {
		if w.IsDone() {
			return nil
		}
		if s.idleFor(receiverGraceWindow) {
			w.Debug("receiver idle past grace window, stopping")
			return nil
		}

		conn := s.conn.Load()
		if conn == nil {
			return nil
		}
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		buf := make([]byte, m.MaxPacketSize)
		n, peer, err := conn.ReadFromUDP(buf)
		switch {
		case isTimeout(err):
			continue
		case w.IsDone():
			// Socket was closed by Stop(); exit quietly instead of
			// surfacing the resulting read error.
			return nil
		case err != nil:
			return fmt.Errorf("read: %w", err)
		}

		if err := s.handleDatagram(w, buf[:n], peer); err != nil {
			return err
		}
	}
}

func (s *Substrate) handleDatagram(w *mgr.WorkerCtx, data []byte, peer *net.UDPAddr) error {
	pkt, err := m.DecodePacket(data)
	if err != nil {
		// Short/oversized/malformed datagrams are fatal for the receiver.
		return fmt.Errorf("decode datagram from %s: %w", peer, err)
	}

	link, ok := s.linkForHost(peer.IP.String())
	if !ok {
		fatalErr := fmt.Errorf("datagram from unknown host %s", peer.IP)
		select {
		case s.fatal <- fatalErr:
		default:
		}
		s.mgr.Cancel()
		return fatalErr
	}

	select {
	case s.ingress <- IncomingPacket{Packet: pkt, Link: link}:
	default:
		// Ingress queue full: drop silently.
		if s.debugLvl >= 1 {
			w.Debug("ingress queue full, dropping packet", "link", link)
		}
	}

	if pkt.Protocol == m.ProtocolData {
		s.markDataPacket()
	}

	return nil
}

func (s *Substrate) linkForHost(hostIP string) (m.LinkIndex, bool) {
	for i, n := range s.neighbors {
		if n.HostAddr == hostIP {
			return m.LinkIndex(i), true
		}
	}
	return 0, false
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
