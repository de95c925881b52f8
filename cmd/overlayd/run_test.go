package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunArgsMinimal(t *testing.T) {
	ra, err := parseRunArgs([]string{"r1.conf", "0.5", "30"})
	require.NoError(t, err)

	assert.Equal(t, "r1.conf", ra.configFile)
	assert.Equal(t, 500*time.Millisecond, ra.delta)
	assert.Equal(t, 30*time.Second, ra.runLength)
	assert.False(t, ra.static)
	assert.Equal(t, 0, ra.debugLvl)
	assert.False(t, ra.enFA)
}

func TestParseRunArgsAllOptions(t *testing.T) {
	ra, err := parseRunArgs([]string{"r1.conf", "1", "60", "static", "debuggg", "enFA"})
	require.NoError(t, err)

	assert.True(t, ra.static)
	assert.Equal(t, 3, ra.debugLvl)
	assert.True(t, ra.enFA)
}

func TestParseRunArgsRejectsUnknownToken(t *testing.T) {
	_, err := parseRunArgs([]string{"r1.conf", "1", "60", "bogus"})
	assert.Error(t, err)
}

func TestParseRunArgsRejectsBadDelta(t *testing.T) {
	_, err := parseRunArgs([]string{"r1.conf", "not-a-number", "60"})
	assert.Error(t, err)
}
