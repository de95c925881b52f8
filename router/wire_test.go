package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathvector/overlayd/m"
)

func TestParseHello(t *testing.T) {
	t.Parallel()

	msg, err := parseControlMessage(buildHello(10.0))
	require.NoError(t, err)
	assert.Equal(t, msgHello, msg.typ)
	assert.InDelta(t, 10.0, msg.timestamp, 1e-9)
}

func TestParseHelloReplyPreservesOriginalTimestamp(t *testing.T) {
	t.Parallel()

	reply := buildHelloReply(10.000)
	msg, err := parseControlMessage(reply)
	require.NoError(t, err)
	assert.Equal(t, msgHelloReply, msg.typ)
	assert.InDelta(t, 10.0, msg.timestamp, 1e-9)
}

func TestParseAdvertRoundTrip(t *testing.T) {
	t.Parallel()

	pfx := m.MustParsePrefix("1.2.0.0/16")
	path := []m.Address{m.MustParseAddress("1.1.0.1"), m.MustParseAddress("1.1.0.2")}
	wire := buildAdvert(pfx, 5.5, 0.123, path)

	msg, err := parseControlMessage(wire)
	require.NoError(t, err)
	assert.Equal(t, msgAdvert, msg.typ)
	assert.True(t, msg.pfx.Equal(pfx))
	assert.InDelta(t, 5.5, msg.senderTS, 1e-9)
	assert.InDelta(t, 0.123, msg.cost, 1e-9)
	assert.Equal(t, path, msg.path)
	assert.Equal(t, path[0], msg.receivedFrom)
}

func TestParseFailureAdvertRoundTrip(t *testing.T) {
	t.Parallel()

	a := m.MustParseAddress("1.1.0.1")
	b := m.MustParseAddress("1.1.0.2")
	path := []m.Address{m.MustParseAddress("1.1.0.3")}
	wire := buildFailureAdvert(a, b, 7.0, path)

	msg, err := parseControlMessage(wire)
	require.NoError(t, err)
	assert.Equal(t, msgFailureAdvert, msg.typ)
	assert.Equal(t, a, msg.failA)
	assert.Equal(t, b, msg.failB)
	assert.InDelta(t, 7.0, msg.faTimestamp, 1e-9)
	assert.Equal(t, path, msg.faPath)
}

func TestParseDropsWrongMagicLine(t *testing.T) {
	t.Parallel()

	_, err := parseControlMessage([]byte("NOTRPv0\ntype: hello\ntimestamp: 1.000\n"))
	assert.ErrorIs(t, err, errMalformed)
}

func TestParseDropsWrongSecondLineKey(t *testing.T) {
	t.Parallel()

	_, err := parseControlMessage([]byte("RPv0\nkind: hello\ntimestamp: 1.000\n"))
	assert.ErrorIs(t, err, errMalformed)
}

func TestParseIgnoresUnknownType(t *testing.T) {
	t.Parallel()

	msg, err := parseControlMessage([]byte("RPv0\ntype: bogus\nfoo: bar\n"))
	require.NoError(t, err)
	assert.Equal(t, msgUnknown, msg.typ)
}
