package router

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pathvector/overlayd/m"
)

// msgType is the tagged union discriminant for a parsed control message,
// modeled once at ingress rather than branching on the raw type string in
// every handler.
type msgType int

const (
	msgUnknown msgType = iota
	msgHello
	msgHelloReply
	msgAdvert
	msgFailureAdvert
)

// controlMessage is a parsed RPv0 control payload.
type controlMessage struct {
	typ msgType

	// hello / hello2u
	timestamp float64

	// advert
	pfx            m.Prefix
	senderTS       float64
	cost           float64
	path           []m.Address
	receivedFrom   m.Address

	// fadvert
	failA, failB m.Address
	faTimestamp  float64
	faPath       []m.Address
}

// errMalformed marks a control payload that fails the wire grammar and must
// be silently dropped.
var errMalformed = errors.New("malformed control payload")

// parseControlMessage parses a US-ASCII RPv0 payload. Per the wire grammar's
// robustness rules, a payload whose first line isn't "RPv0" or whose second
// line's key isn't "type" is reported as errMalformed so the caller can drop
// it; an unrecognized type value parses successfully as msgUnknown so callers
// can ignore it without treating it as a wire error.
func parseControlMessage(payload []byte) (controlMessage, error) {
	lines := strings.Split(string(payload), "\n")
	if len(lines) < 2 || lines[0] != "RPv0" {
		return controlMessage{}, errMalformed
	}

	key, val, ok := strings.Cut(lines[1], ":")
	if !ok || strings.TrimSpace(key) != "type" {
		return controlMessage{}, errMalformed
	}
	typeVal := strings.TrimSpace(val)

	if len(lines) < 3 {
		return controlMessage{}, errMalformed
	}
	line3 := lines[2]

	switch typeVal {
	case "hello":
		ts, err := parseTimestampLine(line3)
		if err != nil {
			return controlMessage{}, err
		}
		return controlMessage{typ: msgHello, timestamp: ts}, nil

	case "hello2u":
		ts, err := parseTimestampLine(line3)
		if err != nil {
			return controlMessage{}, err
		}
		return controlMessage{typ: msgHelloReply, timestamp: ts}, nil

	case "advert":
		return parsePathvecLine(line3)

	case "fadvert":
		return parseLinkfailLine(line3)

	default:
		return controlMessage{typ: msgUnknown}, nil
	}
}

func parseTimestampLine(line string) (float64, error) {
	key, val, ok := strings.Cut(line, ":")
	if !ok || strings.TrimSpace(key) != "timestamp" {
		return 0, errMalformed
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, errMalformed
	}
	return ts, nil
}

// parsePathvecLine parses "pathvec: <prefix> <timestamp> <cost> <a1> <a2> ..."
// The fields are numbered including the "pathvec:" token itself, so the
// address sequence starts at field index 4.
func parsePathvecLine(line string) (controlMessage, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "pathvec:" {
		return controlMessage{}, errMalformed
	}

	pfx, err := m.ParsePrefix(fields[1])
	if err != nil {
		return controlMessage{}, errMalformed
	}
	senderTS, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return controlMessage{}, errMalformed
	}
	cost, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return controlMessage{}, errMalformed
	}
	path, err := m.ParsePath(fields[4:])
	if err != nil {
		return controlMessage{}, errMalformed
	}

	return controlMessage{
		typ:          msgAdvert,
		pfx:          pfx,
		senderTS:     senderTS,
		cost:         cost,
		path:         path,
		receivedFrom: path[0],
	}, nil
}

// parseLinkfailLine parses "linkfail: <ipA> <ipB> <timestamp> <ip1> <ip2> ..."
func parseLinkfailLine(line string) (controlMessage, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "linkfail:" {
		return controlMessage{}, errMalformed
	}

	a, err := m.ParseAddress(fields[1])
	if err != nil {
		return controlMessage{}, errMalformed
	}
	b, err := m.ParseAddress(fields[2])
	if err != nil {
		return controlMessage{}, errMalformed
	}
	ts, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return controlMessage{}, errMalformed
	}
	path, err := m.ParsePath(fields[4:])
	if err != nil {
		return controlMessage{}, errMalformed
	}

	return controlMessage{
		typ:         msgFailureAdvert,
		failA:       a,
		failB:       b,
		faTimestamp: ts,
		faPath:      path,
	}, nil
}

func buildHello(now float64) []byte {
	return []byte(fmt.Sprintf("RPv0\ntype: hello\ntimestamp: %.3f\n", now))
}

func buildHelloReply(originalTimestamp float64) []byte {
	return []byte(fmt.Sprintf("RPv0\ntype: hello2u\ntimestamp: %.3f\n", originalTimestamp))
}

func buildAdvert(pfx m.Prefix, now, cost float64, path []m.Address) []byte {
	return []byte(fmt.Sprintf(
		"RPv0\ntype: advert\npathvec: %s %.3f %.3f %s\n",
		pfx.String(), now, cost, m.FormatPath(path),
	))
}

func buildFailureAdvert(a, b m.Address, now float64, path []m.Address) []byte {
	return []byte(fmt.Sprintf(
		"RPv0\ntype: fadvert\nlinkfail: %s %s %.3f %s\n",
		a.String(), b.String(), now, m.FormatPath(path),
	))
}
