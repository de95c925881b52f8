// Package config loads and validates the router's line-oriented config file.
package config

import (
	"github.com/mitchellh/copystructure"
)

// NeighborConfig is one "neighbor: <overlayIp> <hostIp> <delay>" line. Its
// position in Store.Neighbors defines the stable link index used throughout
// the forwarder and router.
type NeighborConfig struct {
	OverlayIP string  `json:"overlayIp" yaml:"overlayIp"`
	HostAddr  string  `json:"hostIp"    yaml:"hostIp"`
	Delay     float64 `json:"delay"     yaml:"delay"`
}

// Store holds the raw, repeatable lines parsed from the config file, before
// type validation. It mirrors the file's grammar closely: Parse derives the
// validated Config from it.
type Store struct {
	HostIP       string           `json:"hostIp"       yaml:"hostIp"`
	MyIP         string           `json:"myIp"         yaml:"myIp"`
	Prefixes     []string         `json:"prefix"       yaml:"prefix"`
	Neighbors    []NeighborConfig `json:"neighbor"     yaml:"neighbor"`
	Destinations []string         `json:"destination"  yaml:"destination"`
}

// Clone returns a full deep copy of the store.
func (s Store) Clone() (Store, error) {
	copied, err := copystructure.Copy(s)
	if err != nil {
		return Store{}, err
	}
	return copied.(Store), nil //nolint:forcetypeassert
}
