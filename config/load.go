package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadConfig reads and parses the config file at filename.
//
// The grammar is a flat, line-oriented "key: value" format (not YAML/JSON):
// blank lines and lines starting with "#" are ignored, every other line must
// contain a colon separating key from value. "prefix", "neighbor" and
// "destination" are repeatable; "neighbor" lines additionally carry three
// space-separated fields (overlay address, substrate host address, initial
// delay in seconds) and their order defines the link index.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file at %s: %w", filename, err)
	}
	defer f.Close() //nolint:errcheck

	store, err := parseStore(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	return store.Parse()
}

func parseStore(f *os.File) (Store, error) {
	var store Store

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return Store{}, fmt.Errorf("line %d: missing ':' separator: %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "hostIp":
			store.HostIP = value
		case "myIp":
			store.MyIP = value
		case "prefix":
			store.Prefixes = append(store.Prefixes, value)
		case "destination":
			store.Destinations = append(store.Destinations, value)
		case "neighbor":
			n, err := parseNeighborLine(value)
			if err != nil {
				return Store{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			store.Neighbors = append(store.Neighbors, n)
		default:
			return Store{}, fmt.Errorf("line %d: unknown key %q", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return Store{}, err
	}

	return store, nil
}

func parseNeighborLine(value string) (NeighborConfig, error) {
	fields := strings.Fields(value)
	if len(fields) != 3 {
		return NeighborConfig{}, fmt.Errorf("neighbor line needs 3 fields, got %d: %q", len(fields), value)
	}

	delay, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return NeighborConfig{}, fmt.Errorf("invalid neighbor delay %q: %w", fields[2], err)
	}

	return NeighborConfig{
		OverlayIP: fields[0],
		HostAddr:  fields[1],
		Delay:     delay,
	}, nil
}
