package sim

import (
	"bytes"
	"errors"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

func TestMissionFromOrbit(t *testing.T) {
	o := leo(orb.EarthZonal())
	m := NewMissionFromOrbit(o)
	r, v := m.ECEF()
	requireVecWithin(t, o.R(), r, 1e-6, "position")
	requireVecWithin(t, o.V(), v, 1e-9, "velocity")
	rI, vI := m.ECI()
	assert.InDelta(t, r3.Norm(o.R()), r3.Norm(rI), 1e-6)
	assert.InDelta(t, r3.Norm(r3.Add(o.V(), r3.Cross(orb.EarthRate(), o.R()))), r3.Norm(vI), 1e-9)
	assert.Panics(t, func() { NewMissionFromOrbit(orb.Orbit{}) })
}

func TestMissionMatchesLongSteps(t *testing.T) {
	if testing.Short() {
		t.Skip("propagates a few orbits")
	}
	model := orb.EarthZonal()
	o := leo(model)
	m := NewMissionFromOrbit(o)
	end := t0 + 13700_000_000_000
	require.NoError(t, m.PropagateUntil(end))
	require.Equal(t, end, m.NsGPSTime())

	o.StartPropagating(end, orb.EarthRate())
	o.FinishPropagating()
	truth := m.Orbit(model)
	require.True(t, truth.Valid())
	requireVecWithin(t, truth.R(), o.R(), 1, "position")
	requireVecWithin(t, truth.V(), o.V(), 1e-3, "velocity")
}

func TestMissionMatchesShortSteps(t *testing.T) {
	model := orb.EarthZonal()
	o := leo(model)
	m := NewMissionFromOrbit(o, WithStepSize(100*time.Millisecond))
	for i := 0; i < 1000; i++ {
		o.ShortUpdate(100_000_000, orb.EarthRate())
	}
	end := t0 + 100_000_000_000
	require.Equal(t, end, o.NsGPSTime())
	require.NoError(t, m.PropagateUntil(end))

	truth := m.Orbit(model)
	require.True(t, truth.Valid())
	requireVecWithin(t, truth.R(), o.R(), 1e-2, "position")
	requireVecWithin(t, truth.V(), o.V(), 2e-4, "velocity")
}

func TestMissionUnevenLeg(t *testing.T) {
	o := leo(orb.EarthPointMass())
	coarse := NewMissionFromOrbit(o, WithStepSize(10*time.Second))
	fine := NewMissionFromOrbit(o)
	end := t0 + 95_123_456_789
	require.NoError(t, coarse.PropagateUntil(end))
	require.NoError(t, fine.PropagateUntil(end))
	assert.Equal(t, end, coarse.NsGPSTime())
	rc, vc := coarse.ECI()
	rf, vf := fine.ECI()
	requireVecWithin(t, rf, rc, 1e-2, "position")
	requireVecWithin(t, vf, vc, 1e-5, "velocity")
}

func TestMissionManeuver(t *testing.T) {
	var buf bytes.Buffer
	model := orb.EarthZonal()
	o := leo(model)
	sc := DefaultSpacecraft()
	m := NewMissionFromOrbit(o, WithVehicle(sc), WithMissionLogger(kitlog.NewLogfmtLogger(&buf)))
	burnAt := t0 + 600_000_000_000
	require.NoError(t, m.Schedule(Maneuver{NsGPSTime: burnAt, Thruster: ColdGas{}, Duration: time.Minute, Direction: r3.Vec{Y: 1}}))
	end := t0 + 1200_000_000_000
	require.NoError(t, m.PropagateUntil(end))

	burns := m.Burns()
	require.Len(t, burns, 1)
	b := burns[0]
	assert.Equal(t, burnAt, b.NsGPSTime)
	assert.InDelta(t, 0.1429, r3.Norm(b.DeltaVECI), 1e-3)
	assert.InDelta(t, r3.Norm(b.DeltaVECI), r3.Norm(b.DeltaVECEF), 1e-12)
	assert.Less(t, sc.FuelMass, 0.2)
	assert.Contains(t, buf.String(), "burn")

	// The flight orbit applies the same burn.
	o.StartPropagating(burnAt, orb.EarthRate())
	o.FinishPropagating()
	a0 := o.Elements(orb.EarthRate()).A
	o.ApplyDeltaV(b.DeltaVECEF)
	assert.Greater(t, o.Elements(orb.EarthRate()).A, a0, "an along track burn raises the orbit")
	o.StartPropagating(end, orb.EarthRate())
	o.FinishPropagating()
	truth := m.Orbit(model)
	requireVecWithin(t, truth.R(), o.R(), 1, "position")
	requireVecWithin(t, truth.V(), o.V(), 1e-3, "velocity")
}

func TestMissionManeuverErrors(t *testing.T) {
	sc := &Spacecraft{Name: "empty", DryMass: 4, FuelMass: 1e-6}
	m := NewMissionFromOrbit(leo(orb.EarthPointMass()), WithVehicle(sc))
	require.NoError(t, m.Schedule(Maneuver{NsGPSTime: t0 + 10_000_000_000, Thruster: ColdGas{}, Duration: time.Minute, Direction: r3.Vec{Y: 1}}))
	err := m.PropagateUntil(t0 + 20_000_000_000)
	assert.True(t, errors.Is(err, ErrInsufficientFuel), "got %v", err)
	assert.Equal(t, t0+20_000_000_000, m.NsGPSTime(), "the mission goes on")
	assert.Empty(t, m.Burns())
	assert.Equal(t, 1e-6, sc.FuelMass)

	assert.ErrorIs(t, m.PropagateUntil(t0), ErrPast)
	assert.ErrorIs(t, m.Schedule(Maneuver{NsGPSTime: t0}), ErrPast)
}
