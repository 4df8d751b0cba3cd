package main

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfinder-for-autonomous-navigation/psim-sub000/sim"
)

func TestRun(t *testing.T) {
	if testing.Short() {
		t.Skip("simulates two minutes")
	}
	s, err := loadScenario(viper.New(), "testdata/short.toml")
	require.NoError(t, err)

	var logs bytes.Buffer
	records := make(chan sim.Record, 16)
	var csv bytes.Buffer
	exported := make(chan error)
	go func() {
		exported <- sim.StreamStates(sim.ExportConfig{Every: s.csvEvery}, &csv, records)
	}()
	sum, err := run(s, kitlog.NewLogfmtLogger(&logs), records)
	require.NoError(t, err)
	require.NoError(t, <-exported)

	assert.Equal(t, 1200, sum.ticks)
	assert.Equal(t, 1, sum.burns)
	assert.Greater(t, sum.fused, 100)
	assert.Less(t, sum.finalErr, 10.0)
	last := sum.history[len(sum.history)-1]
	assert.False(t, math.IsNaN(last.ground), "the ground propagator caught up")
	assert.Less(t, last.ground, 500.0)
	assert.Contains(t, logs.String(), "burn")
	// Header and one row every ten seconds.
	assert.Equal(t, 13, bytes.Count(csv.Bytes(), []byte("\n")))

	png := filepath.Join(t.TempDir(), "errors.png")
	require.NoError(t, plotErrors(sum.history, png))
	assert.FileExists(t, png)
}
