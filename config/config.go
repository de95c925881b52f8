package config

import (
	"errors"
	"fmt"

	"github.com/mitchellh/copystructure"

	"github.com/pathvector/overlayd/m"
)

// Neighbor is one validated neighbor descriptor. Its index in
// Config.Neighbors is the stable link index used by the forwarder,
// substrate, and router.
type Neighbor struct {
	OverlayIP m.Address
	HostAddr  string
	Delay     float64
}

// Config is the validated, typed configuration handed to every component at
// construction. It is treated as immutable after Parse returns it.
type Config struct {
	// HostIP is the substrate-layer bind address: a bare IP. The substrate
	// always listens on the fixed overlay port.
	HostIP string

	// MyIP is this router's overlay address.
	MyIP m.Address

	// Prefixes are the local prefixes this router originates ADVERTs for.
	Prefixes []m.Prefix

	// Neighbors is the ordered neighbor list; index == link index.
	Neighbors []Neighbor

	// Destinations are consumed only by the traffic generator.
	Destinations []string
}

// Parse validates a Store and derives a typed Config from it.
func (s Store) Parse() (*Config, error) {
	if s.HostIP == "" {
		return nil, errors.New("missing required key hostIp")
	}
	if s.MyIP == "" {
		return nil, errors.New("missing required key myIp")
	}

	myIP, err := m.ParseAddress(s.MyIP)
	if err != nil {
		return nil, fmt.Errorf("myIp: %w", err)
	}

	prefixes := make([]m.Prefix, 0, len(s.Prefixes))
	for _, raw := range s.Prefixes {
		p, err := m.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("prefix %q: %w", raw, err)
		}
		prefixes = append(prefixes, p)
	}

	if len(s.Neighbors) == 0 {
		return nil, errors.New("at least one neighbor is required")
	}
	neighbors := make([]Neighbor, 0, len(s.Neighbors))
	for i, n := range s.Neighbors {
		overlayIP, err := m.ParseAddress(n.OverlayIP)
		if err != nil {
			return nil, fmt.Errorf("neighbor %d: %w", i, err)
		}
		if n.HostAddr == "" {
			return nil, fmt.Errorf("neighbor %d: missing hostIp", i)
		}
		if n.Delay < 0 {
			return nil, fmt.Errorf("neighbor %d: negative delay", i)
		}
		neighbors = append(neighbors, Neighbor{
			OverlayIP: overlayIP,
			HostAddr:  n.HostAddr,
			Delay:     n.Delay,
		})
	}

	return &Config{
		HostIP:       s.HostIP,
		MyIP:         myIP,
		Prefixes:     prefixes,
		Neighbors:    neighbors,
		Destinations: append([]string(nil), s.Destinations...),
	}, nil
}

// Clone returns a deep copy of the config, safe to hand to a test fixture
// that mutates it independently of the original.
func (c *Config) Clone() (*Config, error) {
	copied, err := copystructure.Copy(*c)
	if err != nil {
		return nil, err
	}
	cloned := copied.(Config) //nolint:forcetypeassert
	return &cloned, nil
}
