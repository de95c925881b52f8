package forwarder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathvector/overlayd/m"
)

func TestTableLongestPrefixMatch(t *testing.T) {
	t.Parallel()

	tb := newTable()
	tb.addRoute(m.DefaultPrefix, 0)
	tb.addRoute(m.MustParsePrefix("1.2.0.0/16"), 3)
	tb.addRoute(m.MustParsePrefix("1.2.3.0/24"), 5)

	snap := tb.snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 24, snap[0].pfx.Length)
	assert.Equal(t, 16, snap[1].pfx.Length)
	assert.Equal(t, 0, snap[2].pfx.Length)

	assert.Equal(t, m.LinkIndex(5), tb.lookup(m.MustParseAddress("1.2.3.9")))
	assert.Equal(t, m.LinkIndex(3), tb.lookup(m.MustParseAddress("1.2.9.9")))
	assert.Equal(t, m.LinkIndex(0), tb.lookup(m.MustParseAddress("9.9.9.9")))
}

func TestTableOrderingInvariantNonIncreasing(t *testing.T) {
	t.Parallel()

	tb := newTable()
	tb.addRoute(m.DefaultPrefix, 0)
	tb.addRoute(m.MustParsePrefix("10.0.0.0/8"), 1)
	tb.addRoute(m.MustParsePrefix("10.1.0.0/16"), 2)
	tb.addRoute(m.MustParsePrefix("10.1.1.0/24"), 3)

	snap := tb.snapshot()
	for i := 1; i < len(snap); i++ {
		assert.GreaterOrEqual(t, snap[i-1].pfx.Length, snap[i].pfx.Length)
	}
}

func TestAddRouteIsIdempotent(t *testing.T) {
	t.Parallel()

	tb := newTable()
	tb.addRoute(m.DefaultPrefix, 0)
	tb.addRoute(m.MustParsePrefix("1.2.0.0/16"), 3)

	before := tb.snapshot()
	tb.addRoute(m.MustParsePrefix("1.2.0.0/16"), 3)
	after := tb.snapshot()

	assert.Equal(t, before, after)
}

func TestAddRouteReplacesExistingPrefixLink(t *testing.T) {
	t.Parallel()

	tb := newTable()
	tb.addRoute(m.DefaultPrefix, 0)
	tb.addRoute(m.MustParsePrefix("1.2.0.0/16"), 3)
	tb.addRoute(m.MustParsePrefix("1.2.0.0/16"), 7)

	snap := tb.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, m.LinkIndex(7), tb.lookup(m.MustParseAddress("1.2.9.9")))
}
