package substrate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathvector/overlayd/config"
	"github.com/pathvector/overlayd/m"
)

func TestLinkQueueFIFOOrder(t *testing.T) {
	t.Parallel()

	q := newLinkQueue(4)
	for i := 0; i < 3; i++ {
		pkt := m.NewDataPacket(m.Address(1), m.Address(2), []byte{byte('a' + i)})
		require.True(t, q.Put(pkt))
	}

	for i := 0; i < 3; i++ {
		head, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, []byte{byte('a' + i)}, head.pkt.Payload)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestLinkQueuePutBlocksUntilRoom(t *testing.T) {
	t.Parallel()

	q := newLinkQueue(1)
	pkt := m.NewDataPacket(m.Address(1), m.Address(2), []byte("x"))
	require.True(t, q.Put(pkt))
	assert.False(t, q.Ready())

	var wg sync.WaitGroup
	wg.Add(1)
	putDone := make(chan struct{})
	go func() {
		defer wg.Done()
		q.Put(m.NewDataPacket(m.Address(1), m.Address(2), []byte("y")))
		close(putDone)
	}()

	select {
	case <-putDone:
		t.Fatal("Put returned before queue had room")
	case <-time.After(50 * time.Millisecond):
	}

	_, ok := q.Pop()
	require.True(t, ok)

	select {
	case <-putDone:
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock after room freed")
	}
	wg.Wait()
}

func TestLinkQueueCloseUnblocksPut(t *testing.T) {
	t.Parallel()

	q := newLinkQueue(1)
	require.True(t, q.Put(m.NewDataPacket(m.Address(1), m.Address(2), []byte("x"))))

	result := make(chan bool, 1)
	go func() {
		result <- q.Put(m.NewDataPacket(m.Address(1), m.Address(2), []byte("y")))
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock on Close")
	}
}

func TestSubstrateEnqueueRejectsInvalidLink(t *testing.T) {
	t.Parallel()

	s := &Substrate{
		egress: []*linkQueue{newLinkQueue(4)},
	}

	err := s.Enqueue(m.NewDataPacket(m.Address(1), m.Address(2), nil), m.LinkIndex(5))
	assert.Error(t, err)
	assert.False(t, s.Ready(m.LinkIndex(5)))
	assert.True(t, s.Ready(m.LinkIndex(0)))
}

func TestPerturbDelayFlipsSignPastThreshold(t *testing.T) {
	t.Parallel()

	s := &Substrate{delays: []float64{0.49}}

	got := s.perturbDelay(0, 0.02, 0.5)
	assert.Less(t, got, 0.0)
	assert.InDelta(t, -0.51, got, 1e-9)
}

func TestPerturbDelayFlipsOnRandomDraw(t *testing.T) {
	t.Parallel()

	s := &Substrate{delays: []float64{0.01}}

	got := s.perturbDelay(0, 0.0, 0.01)
	assert.InDelta(t, -0.01, got, 1e-9)
}

func TestPerturbDelayAlwaysAddsPositiveIncrementRegardlessOfSign(t *testing.T) {
	t.Parallel()

	s := &Substrate{delays: []float64{-0.1}}

	got := s.perturbDelay(0, 0.02, 0.9)
	assert.InDelta(t, -0.08, got, 1e-9)
}

func TestIdleForRequiresAtLeastOneDataPacket(t *testing.T) {
	t.Parallel()

	s := &Substrate{}
	assert.False(t, s.idleFor(time.Nanosecond))

	s.markDataPacket()
	time.Sleep(2 * time.Millisecond)
	assert.True(t, s.idleFor(time.Millisecond))
	assert.False(t, s.idleFor(time.Hour))
}

func TestLinkForHost(t *testing.T) {
	t.Parallel()

	s := &Substrate{
		neighbors: []config.Neighbor{
			{HostAddr: "10.0.0.1"},
			{HostAddr: "10.0.0.2"},
		},
	}

	link, ok := s.linkForHost("10.0.0.2")
	require.True(t, ok)
	assert.Equal(t, m.LinkIndex(1), link)

	_, ok = s.linkForHost("10.0.0.9")
	assert.False(t, ok)
}
