package m

import "sync"

// LinkIndex is the stable ordinal of a neighbor in the configured neighbor
// list. It is used everywhere a link is named: forwarding-table entries,
// route.outLink, and the per-link substrate queues.
type LinkIndex int

// HelloState tracks neighbor liveness, counting down from 3 (healthy) to 0
// (down) as HELLO rounds go unanswered.
type HelloState int

// HelloState bounds, per spec: 0 <= helloState <= 3.
const (
	HelloStateDown    HelloState = 0
	HelloStateHealthy HelloState = 3
)

// LinkInfo holds everything the router tracks about one neighbor link:
// identity, liveness, and EWMA cost estimation.
type LinkInfo struct {
	lock sync.Mutex

	// PeerIP is the neighbor's overlay address.
	PeerIP Address
	// HostAddr is the neighbor's substrate (UDP) host address: a bare IP,
	// without a port.
	HostAddr string

	// Cost is the current EWMA link cost estimate, in seconds.
	Cost float64

	// GotReply is reset before each HELLO round and set when the matching
	// HELLO-REPLY arrives.
	GotReply bool

	// State is the liveness counter, 3 (healthy) down to 0 (down).
	State HelloState

	// Cost statistics, updated on every EWMA sample.
	Count     int
	TotalCost float64
	MinCost   float64
	MaxCost   float64
}

// NewLinkInfo creates a link-info entry with the given initial delay used
// as the starting cost estimate.
func NewLinkInfo(peerIP Address, hostAddr string, initialDelay float64) *LinkInfo {
	return &LinkInfo{
		PeerIP:   peerIP,
		HostAddr: hostAddr,
		Cost:     initialDelay,
		State:    HelloStateHealthy,
		MinCost:  initialDelay,
		MaxCost:  initialDelay,
	}
}

// EWMAAlpha is the exponential weighting coefficient used for link cost
// estimation.
const EWMAAlpha = 0.1

// UpdateCost applies the EWMA update for a HELLO-REPLY round-trip sample and
// records statistics against the updated cost. Returns the new cost.
func (li *LinkInfo) UpdateCost(sample float64) float64 {
	li.lock.Lock()
	defer li.lock.Unlock()

	li.Cost = EWMAAlpha*sample + (1-EWMAAlpha)*li.Cost

	li.Count++
	li.TotalCost += li.Cost
	if li.Count == 1 || li.Cost < li.MinCost {
		li.MinCost = li.Cost
	}
	if li.Count == 1 || li.Cost > li.MaxCost {
		li.MaxCost = li.Cost
	}

	return li.Cost
}

// GetCost returns the current cost estimate.
func (li *LinkInfo) GetCost() float64 {
	li.lock.Lock()
	defer li.lock.Unlock()
	return li.Cost
}

// MarkReplyReceived resets liveness to healthy and records that a reply was
// seen for the current HELLO round.
func (li *LinkInfo) MarkReplyReceived() {
	li.lock.Lock()
	defer li.lock.Unlock()
	li.GotReply = true
	li.State = HelloStateHealthy
}

// TakeGotReply returns whether a reply was received since the last reset,
// then resets the flag for the next round.
func (li *LinkInfo) TakeGotReply() bool {
	li.lock.Lock()
	defer li.lock.Unlock()
	got := li.GotReply
	li.GotReply = false
	return got
}

// DeclineState steps the liveness counter down by one, not going below
// HelloStateDown. Returns the new state.
func (li *LinkInfo) DeclineState() HelloState {
	li.lock.Lock()
	defer li.lock.Unlock()
	if li.State > HelloStateDown {
		li.State--
	}
	return li.State
}

// GetState returns the current liveness state.
func (li *LinkInfo) GetState() HelloState {
	li.lock.Lock()
	defer li.lock.Unlock()
	return li.State
}

// IsUp reports whether the link is considered usable (state > 0).
func (li *LinkInfo) IsUp() bool {
	return li.GetState() > HelloStateDown
}

// Stats is a point-in-time snapshot of the cost statistics, for status
// reporting.
type Stats struct {
	Count     int
	TotalCost float64
	MinCost   float64
	MaxCost   float64
	AvgCost   float64
}

// Stats returns a snapshot of the link's cost statistics.
func (li *LinkInfo) Stats() Stats {
	li.lock.Lock()
	defer li.lock.Unlock()

	s := Stats{
		Count:     li.Count,
		TotalCost: li.TotalCost,
		MinCost:   li.MinCost,
		MaxCost:   li.MaxCost,
	}
	if s.Count > 0 {
		s.AvgCost = s.TotalCost / float64(s.Count)
	}
	return s
}
