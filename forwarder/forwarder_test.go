package forwarder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathvector/overlayd/m"
	"github.com/pathvector/overlayd/substrate"
)

// fakeSubstrate is a minimal, in-memory stand-in for the Substrate module,
// used to drive the dispatch loop deterministically in tests.
type fakeSubstrate struct {
	mu      sync.Mutex
	ingress []substrate.IncomingPacket
	egress  map[m.LinkIndex][]m.Packet
}

func newFakeSubstrate() *fakeSubstrate {
	return &fakeSubstrate{egress: make(map[m.LinkIndex][]m.Packet)}
}

func (f *fakeSubstrate) pushIncoming(pkt m.Packet, link m.LinkIndex) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingress = append(f.ingress, substrate.IncomingPacket{Packet: pkt, Link: link})
}

func (f *fakeSubstrate) TryRecv() (substrate.IncomingPacket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ingress) == 0 {
		return substrate.IncomingPacket{}, false
	}
	head := f.ingress[0]
	f.ingress = f.ingress[1:]
	return head, true
}

func (f *fakeSubstrate) Incoming() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ingress) > 0
}

func (f *fakeSubstrate) Enqueue(pkt m.Packet, link m.LinkIndex) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.egress[link] = append(f.egress[link], pkt)
	return nil
}

func (f *fakeSubstrate) Ready(m.LinkIndex) bool { return true }

func (f *fakeSubstrate) sent(link m.LinkIndex) []m.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]m.Packet(nil), f.egress[link]...)
}

func newTestForwarder(t *testing.T) (*Forwarder, *fakeSubstrate) {
	t.Helper()
	sub := newFakeSubstrate()
	fwd := New(m.MustParseAddress("1.1.0.1"), 0, sub)
	fwd.AddRoute(m.MustParsePrefix("1.2.0.0/16"), 3)
	require.NoError(t, fwd.Start())
	t.Cleanup(func() {
		fwd.Manager().Cancel()
	})
	return fwd, sub
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition did not become true in time")
}

func TestForwarderDeliversLocalDataPacketToSink(t *testing.T) {
	t.Parallel()
	fwd, sub := newTestForwarder(t)

	pkt := m.NewDataPacket(m.MustParseAddress("1.1.0.2"), m.MustParseAddress("1.1.0.1"), []byte("hi"))
	sub.pushIncoming(pkt, 0)

	eventually(t, fwd.Ready)
	payload, src := fwd.Receive()
	assert.Equal(t, []byte("hi"), payload)
	assert.Equal(t, "1.1.0.2", src)
}

func TestForwarderDeliversLocalControlPacketToRouter(t *testing.T) {
	t.Parallel()
	fwd, sub := newTestForwarder(t)

	pkt := m.NewControlPacket(m.MustParseAddress("1.1.0.2"), m.MustParseAddress("1.1.0.1"), []byte("RPv0\n"))
	sub.pushIncoming(pkt, 2)

	eventually(t, fwd.Ready4Pkt)
	rp := fwd.ReceivePkt()
	assert.Equal(t, m.LinkIndex(2), rp.Link)
	assert.Equal(t, []byte("RPv0\n"), rp.Packet.Payload)
}

func TestForwarderTransitPacketForwardedByLookup(t *testing.T) {
	t.Parallel()
	fwd, sub := newTestForwarder(t)

	dest := m.MustParseAddress("1.2.3.9")
	pkt := m.NewDataPacket(m.MustParseAddress("9.9.9.9"), dest, []byte("transit"))
	sub.pushIncoming(pkt, 0)

	eventually(t, func() bool { return len(sub.sent(3)) > 0 })
	sent := sub.sent(3)
	require.Len(t, sent, 1)
	assert.Equal(t, uint8(98), sent[0].TTL)
}

func TestForwarderDropsExpiredTransitPacket(t *testing.T) {
	t.Parallel()
	fwd, sub := newTestForwarder(t)

	dest := m.MustParseAddress("1.2.3.9")
	pkt := m.NewDataPacket(m.MustParseAddress("9.9.9.9"), dest, []byte("dying"))
	pkt.TTL = 1
	sub.pushIncoming(pkt, 0)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sub.sent(3))
}

func TestForwarderApplicationSendLooksUpAndForwards(t *testing.T) {
	t.Parallel()
	fwd, sub := newTestForwarder(t)

	require.NoError(t, fwd.Send([]byte("ping"), "1.2.3.9"))

	eventually(t, func() bool { return len(sub.sent(3)) > 0 })
	sent := sub.sent(3)
	require.Len(t, sent, 1)
	assert.Equal(t, []byte("ping"), sent[0].Payload)
}

func TestForwarderRouterOutboundForwardedToSpecifiedLink(t *testing.T) {
	t.Parallel()
	fwd, sub := newTestForwarder(t)

	pkt := m.NewControlPacket(m.MustParseAddress("1.1.0.1"), m.MustParseAddress("1.1.0.5"), []byte("RPv0\n"))
	require.NoError(t, fwd.SendPkt(pkt, 4, nil))

	eventually(t, func() bool { return len(sub.sent(4)) > 0 })
}

func TestForwarderSendRejectedAfterStop(t *testing.T) {
	t.Parallel()
	fwd, _ := newTestForwarder(t)

	require.NoError(t, fwd.Stop())
	assert.ErrorIs(t, fwd.Send([]byte("ping"), "1.2.3.9"), ErrClosed)
}
