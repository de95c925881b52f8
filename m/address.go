package m

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Address is a 32-bit overlay identifier, written externally in dotted-quad
// form. It has no relation to the substrate (UDP host) address used to
// actually reach the peer.
type Address uint32

// Zero is the unset address, 0.0.0.0.
const Zero Address = 0

// ParseAddress parses a dotted-quad string into an Address.
func ParseAddress(s string) (Address, error) {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return 0, fmt.Errorf("invalid overlay address %q: need 4 octets", s)
	}

	var addr uint32
	for _, octet := range octets {
		n, err := strconv.ParseUint(octet, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid overlay address %q: %w", s, err)
		}
		addr = addr<<8 | uint32(n)
	}

	return Address(addr), nil
}

// MustParseAddress parses a dotted-quad string and panics on failure.
// Only meant for tests and constants derived from literals.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String returns the dotted-quad representation of the address.
func (a Address) String() string {
	return fmt.Sprintf(
		"%d.%d.%d.%d",
		byte(a>>24), byte(a>>16), byte(a>>8), byte(a),
	)
}

// IsZero reports whether the address is the unset 0.0.0.0 value.
func (a Address) IsZero() bool {
	return a == Zero
}

// ErrEmptyPath is returned when a path-vector route has no hops.
var ErrEmptyPath = errors.New("empty path")

// ParsePath parses a whitespace separated list of dotted-quad addresses into
// a path, in the order given (head first).
func ParsePath(fields []string) ([]Address, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyPath
	}

	path := make([]Address, 0, len(fields))
	for _, f := range fields {
		addr, err := ParseAddress(f)
		if err != nil {
			return nil, err
		}
		path = append(path, addr)
	}
	return path, nil
}

// FormatPath renders a path as a space-separated list of dotted-quad
// addresses, in the order given (head first).
func FormatPath(path []Address) string {
	parts := make([]string, len(path))
	for i, addr := range path {
		parts[i] = addr.String()
	}
	return strings.Join(parts, " ")
}

// Contains reports whether addr appears anywhere in path.
func Contains(path []Address, addr Address) bool {
	for _, hop := range path {
		if hop == addr {
			return true
		}
	}
	return false
}
