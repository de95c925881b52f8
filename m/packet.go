package m

import (
	"errors"
	"fmt"
)

// Protocol identifies the payload carried by a Packet.
type Protocol uint8

// Protocol values.
const (
	ProtocolData    Protocol = 1
	ProtocolControl Protocol = 2
)

// HeaderSize is the fixed size of the wire header, in bytes.
const HeaderSize = 10

// MaxPacketSize is the largest packet (header + payload) this implementation
// will encode or accept.
const MaxPacketSize = 1400

// MaxPayloadSize is the largest payload that fits alongside the header
// within MaxPacketSize.
const MaxPayloadSize = MaxPacketSize - HeaderSize

// Errors returned by Decode.
var (
	ErrPacketTooShort  = errors.New("packet shorter than header")
	ErrPacketTooLarge  = errors.New("packet exceeds maximum size")
	ErrPayloadNotASCII = errors.New("payload is not US-ASCII")
	ErrUnknownProtocol = errors.New("unknown protocol")
)

// Packet is an overlay datagram: a fixed 10-byte big-endian header followed
// by a US-ASCII payload.
//
//	offset size field
//	0      1    protocol (1=data, 2=control)
//	1      1    ttl
//	2      4    srcAdr
//	6      4    destAdr
//	10     ...  payload
type Packet struct {
	Protocol Protocol
	TTL      uint8
	SrcAdr   Address
	DestAdr  Address
	Payload  []byte
}

// NewDataPacket builds an application-plane packet with ttl=99.
func NewDataPacket(src, dst Address, payload []byte) Packet {
	return Packet{
		Protocol: ProtocolData,
		TTL:      99,
		SrcAdr:   src,
		DestAdr:  dst,
		Payload:  payload,
	}
}

// NewControlPacket builds a routing-plane packet with ttl=99.
func NewControlPacket(src, dst Address, payload []byte) Packet {
	return Packet{
		Protocol: ProtocolControl,
		TTL:      99,
		SrcAdr:   src,
		DestAdr:  dst,
		Payload:  payload,
	}
}

// Encode serializes the packet to its wire form.
func (p Packet) Encode() ([]byte, error) {
	total := HeaderSize + len(p.Payload)
	if total > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}

	buf := make([]byte, total)
	buf[0] = byte(p.Protocol)
	buf[1] = p.TTL
	PutUint32(buf[2:6], uint32(p.SrcAdr))
	PutUint32(buf[6:10], uint32(p.DestAdr))
	copy(buf[HeaderSize:], p.Payload)

	return buf, nil
}

// DecodePacket parses a wire-form packet.
func DecodePacket(buf []byte) (Packet, error) {
	switch {
	case len(buf) < HeaderSize:
		return Packet{}, ErrPacketTooShort
	case len(buf) > MaxPacketSize:
		return Packet{}, ErrPacketTooLarge
	}

	payload := buf[HeaderSize:]
	if !isASCII(payload) {
		return Packet{}, ErrPayloadNotASCII
	}

	p := Packet{
		Protocol: Protocol(buf[0]),
		TTL:      buf[1],
		SrcAdr:   Address(GetUint32(buf[2:6])),
		DestAdr:  Address(GetUint32(buf[6:10])),
		Payload:  append([]byte(nil), payload...),
	}

	if p.Protocol != ProtocolData && p.Protocol != ProtocolControl {
		return Packet{}, fmt.Errorf("%w: %d", ErrUnknownProtocol, p.Protocol)
	}

	return p, nil
}

// ReduceTTL decrements the TTL by one, saturating at zero. TTL is unsigned;
// callers must check TTL == 0 after calling to detect expiry.
func (p *Packet) ReduceTTL() {
	if p.TTL > 0 {
		p.TTL--
	}
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c > 127 {
			return false
		}
	}
	return true
}
