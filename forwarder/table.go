package forwarder

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/pathvector/overlayd/m"
)

// noRoute is the sentinel returned by lookup when no entry matches. By
// construction a default route (0.0.0.0/0) is always present, so this value
// is never actually returned; the branch is kept because the design it is
// grounded on handles it defensively.
const noRoute m.LinkIndex = -1

type tableEntry struct {
	pfx  m.Prefix
	link m.LinkIndex
}

// table is the forwarding table: prefix -> link, held in descending
// prefix-length order so the first match on a linear scan is the longest
// match. It is mutated by the Router (via Forwarder.AddRoute) and read by the Forwarder's main
// loop concurrently, so every access goes through mu.
type table struct {
	mu      sync.RWMutex
	entries []tableEntry
}

func newTable() *table {
	return &table{}
}

// addRoute performs the idempotent upsert described for forwarding-table
// maintenance: replace an existing entry for the same prefix in place,
// otherwise insert just before the first strictly-shorter entry, otherwise
// append.
func (t *table) addRoute(pfx m.Prefix, link m.LinkIndex) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].pfx.Equal(pfx) {
			t.entries[i].link = link
			return
		}
	}

	// Entries are kept sorted by descending prefix length; find the
	// first entry strictly shorter than pfx and insert just before it.
	insertIndex, _ := slices.BinarySearchFunc(t.entries, pfx.Length, func(e tableEntry, length int) int {
		if e.pfx.Length >= length {
			return -1
		}
		return 1
	})
	t.entries = slices.Insert(t.entries, insertIndex, tableEntry{pfx: pfx, link: link})
}

// lookup returns the link for the longest matching prefix, or noRoute if
// none matches (unreachable once a default route has been installed).
func (t *table) lookup(addr m.Address) m.LinkIndex {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.entries {
		if e.pfx.Matches(addr) {
			return e.link
		}
	}
	return noRoute
}

// snapshot returns a copy of the table's entries in their current order,
// for debug printing.
func (t *table) snapshot() []tableEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]tableEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// TableEntry is a forwarding-table row, exported for debug-state snapshots.
type TableEntry struct {
	Prefix string
	Link   int
}
