package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

func TestLoadDefaults(t *testing.T) {
	s, err := loadScenario(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, time.March, 14, 15, 9, 26, 0, time.UTC), s.start)
	assert.Equal(t, 30*time.Minute, s.duration)
	assert.Equal(t, 100*time.Millisecond, s.tick)
	assert.Equal(t, "zonal", s.gravity)
	assert.Equal(t, 10, s.estimator.Slack)
	assert.Equal(t, 5.0, s.estimator.MeasurementSigmaR)
	assert.InDelta(t, orb.Deg2rad(45), s.elements.I, 1e-15)
	assert.True(t, s.ground)
	assert.Empty(t, s.maneuvers)
}

func TestLoadExampleScenario(t *testing.T) {
	s, err := loadScenario(viper.New(), "scenario.toml")
	require.NoError(t, err)
	require.Len(t, s.maneuvers, 1)
	m := s.maneuvers[0]
	assert.Equal(t, 15*time.Minute, m.At)
	assert.Equal(t, time.Minute, m.Duration)
	assert.Equal(t, r3.Vec{Y: 1}, m.direction())
	assert.Equal(t, "orbsim.csv", s.csvPath)
}

func TestLoadJulianDayAndEnv(t *testing.T) {
	t.Setenv("ORBSIM_GPS_SIGMA_R", "7.5")
	t.Setenv("ORBSIM_ESTIMATOR_GRAVITY", "PointMass")
	s, err := loadScenario(viper.New(), "testdata/short")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Date(2020, time.March, 14, 15, 9, 26, 0, time.UTC), s.start, time.Second)
	assert.Equal(t, 2*time.Minute, s.duration)
	assert.Equal(t, uint64(7), s.seed)
	assert.Equal(t, 6.95e6, s.elements.A)
	assert.Equal(t, 7.5, s.gpsσR)
	assert.Equal(t, 7.5, s.estimator.MeasurementSigmaR)
	assert.Equal(t, "pointmass", s.gravity)
	assert.Equal(t, 2, s.callsOnTick)
}

func TestLoadInvalid(t *testing.T) {
	_, err := loadScenario(viper.New(), "testdata/bad.toml")
	require.Error(t, err)
	for _, key := range []string{
		"mission.duration",
		"mission.tick",
		"orbit: radii",
		"estimator.gravity",
		"estimator.slack",
		"maneuvers[0].at",
		"maneuvers[0].direction",
	} {
		assert.Contains(t, err.Error(), key)
	}

	_, err = loadScenario(viper.New(), "testdata/missing.toml")
	assert.Error(t, err)
}
