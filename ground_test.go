package orb

import (
	"bytes"
	"math/rand/v2"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// uplink returns a ground orbit with data at epoch.
func uplink(epoch uint64) Orbit {
	o := leo(EarthPointMass())
	return NewOrbit(o.Model(), epoch, o.R(), o.V())
}

func requireGroundSorted(t *testing.T, g *GroundPropagator) {
	t.Helper()
	s := g.Slots()
	for i := 1; i < len(s); i++ {
		if !s[i].Valid() {
			continue
		}
		require.True(t, s[i-1].Valid(), "slot %d is valid but slot %d is not", i, i-1)
		require.LessOrEqual(t, s[i-1].NumGravCallsLeft(), s[i].NumGravCallsLeft(), "slots %d and %d are out of order", i-1, i)
	}
	require.Equal(t, s[0], g.BestEstimate())
}

func TestGroundPropagatorCatchUp(t *testing.T) {
	var buf bytes.Buffer
	g := NewGroundPropagator(WithGroundLogger(kitlog.NewLogfmtLogger(&buf)))
	now := t0 + 300_000_000_000
	g.Input(uplink(t0), now, EarthRate())
	require.Equal(t, int32(21), g.BestEstimate().NumGravCallsLeft())
	for i := 0; i < 21; i++ {
		g.OneGravCall()
	}
	old := g.BestEstimate()
	require.Equal(t, now, old.NsGPSTime())
	require.Equal(t, int32(0), old.NumGravCallsLeft())

	// Fresher data which needs more work waits in catching_up.
	g.Input(uplink(t0+100_000_000_000), now, EarthRate())
	s := g.Slots()
	require.Equal(t, old, s[0])
	require.Equal(t, int32(14), s[1].NumGravCallsLeft())
	for i := 0; i < 13; i++ {
		g.OneGravCall()
		require.Equal(t, old, g.BestEstimate())
		requireGroundSorted(t, g)
	}
	g.OneGravCall()
	s = g.Slots()
	assert.NotEqual(t, old, s[0], "the caught up orbit replaces current")
	assert.Equal(t, now, s[0].NsGPSTime())
	assert.False(t, s[1].Valid())
	assert.False(t, s[2].Valid())
	assert.Contains(t, buf.String(), "replaced")
}

func TestGroundPropagatorStaleInput(t *testing.T) {
	g := NewGroundPropagator()
	now := t0 + 10_000_000_000
	g.Input(uplink(t0), now, EarthRate())
	// Older data which needs more calls is useless.
	g.Input(uplink(t0-100_000_000_000), now, EarthRate())
	s := g.Slots()
	assert.Equal(t, t0, g.slots[0].epoch)
	assert.False(t, s[1].Valid())

	// Invalid input only retargets.
	g.Input(Orbit{}, now+1_000_000_000, EarthRate())
	assert.Equal(t, now+1_000_000_000, g.BestEstimate().TargetGPSTime())
	assert.False(t, g.Slots()[1].Valid())
}

func TestGroundPropagatorToCatchUpWaits(t *testing.T) {
	g := NewGroundPropagator()
	now := t0 + 500_000_000_000
	g.Input(uplink(t0+400_000_000_000), now, EarthRate())
	g.Input(uplink(t0+450_000_000_000), now, EarthRate())
	g.Input(uplink(t0+480_000_000_000), now, EarthRate())
	// Every upload needs 7 calls, so only the latest survives.
	s := g.Slots()
	require.True(t, s[0].Valid())
	require.False(t, s[1].Valid())
	assert.Equal(t, t0+480_000_000_000, g.slots[0].epoch)

	g.ResetOrbits()
	g.Input(uplink(t0+499_900_000_000), now, EarthRate()) // 1 call
	g.Input(uplink(t0+300_000_000_000), now, EarthRate()) // 14 calls, older: dropped
	g.Input(uplink(t0+499_950_000_000), now, EarthRate()) // 1 call, newer: replaces
	s = g.Slots()
	require.True(t, s[0].Valid())
	assert.Equal(t, t0+499_950_000_000, g.slots[0].epoch)

	g.ResetOrbits()
	g.Input(uplink(t0+499_000_000_000), now, EarthRate()) // 5 calls
	g.Input(uplink(t0+450_000_000_000), now, EarthRate()) // 7 calls, older: dropped
	g.Input(uplink(t0+499_500_000_000), now, EarthRate()) // 3 calls
	g.Input(uplink(t0+499_800_000_000), now, EarthRate()) // 1 call
	s = g.Slots()
	require.True(t, s[0].Valid())
	assert.Equal(t, t0+499_800_000_000, g.slots[0].epoch)
	assert.False(t, s[1].Valid())
}

func TestGroundPropagatorThreeSlots(t *testing.T) {
	g := NewGroundPropagator()
	now := t0 + 1000_000_000_000
	g.Input(uplink(t0+990_000_000_000), now, EarthRate())
	for g.BestEstimate().NumGravCallsLeft() > 0 {
		g.OneGravCall()
	}
	g.Input(uplink(t0+995_000_000_000), now, EarthRate())
	for i := 0; i < 4; i++ {
		g.OneGravCall()
	}
	require.Equal(t, int32(3), g.Slots()[1].NumGravCallsLeft())
	g.Input(uplink(t0+998_000_000_000), now, EarthRate())
	s := g.Slots()
	require.True(t, s[2].Valid(), "three uploads are kept: %v", s)
	assert.Equal(t, []int32{0, 3, 7}, []int32{s[0].NumGravCallsLeft(), s[1].NumGravCallsLeft(), s[2].NumGravCallsLeft()})

	g.OneGravCall()
	s = g.Slots()
	assert.Equal(t, []int32{0, 2, 7}, []int32{s[0].NumGravCallsLeft(), s[1].NumGravCallsLeft(), s[2].NumGravCallsLeft()}, "to_catch_up never runs")
	requireGroundSorted(t, g)

	// A fourth upload overwrites to_catch_up.
	g.Input(uplink(t0+999_000_000_000), now, EarthRate())
	assert.Equal(t, t0+999_000_000_000, g.slots[2].epoch)
}

func TestGroundPropagatorRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	for run := 0; run < 5; run++ {
		g := NewGroundPropagator()
		now := t0 + 1000_000_000_000
		for step := 0; step < 400; step++ {
			now += 100_000_000
			switch r := rng.Float64(); {
			case r < 0.05:
				g.Input(Orbit{}, now, EarthRate())
			case r < 0.2:
				epoch := now - uint64(rng.Int64N(300_000_000_000))
				g.Input(uplink(epoch), now, EarthRate())
			case r < 0.21:
				g.ResetOrbits()
			default:
				g.OneGravCall()
			}
			requireGroundSorted(t, g)
		}
	}
}

func TestGroundPropagatorEarthRate(t *testing.T) {
	g := NewGroundPropagator()
	g.Input(uplink(t0), t0+1_000_000_000, r3.Vec{})
	for g.BestEstimate().NumGravCallsLeft() > 0 {
		g.OneGravCall()
	}
	exp := uplink(t0)
	exp.StartPropagating(t0+1_000_000_000, r3.Vec{})
	exp.FinishPropagating()
	requireVecWithin(t, exp.R(), g.BestEstimate().R(), 0, "position")
}

func TestGroundPropagatorResetOrbits(t *testing.T) {
	g := NewGroundPropagator()
	now := t0 + 10_000_000_000
	g.Input(uplink(t0), now, EarthRate())
	require.True(t, g.BestEstimate().Valid())
	g.ResetOrbits()
	for i, o := range g.Slots() {
		assert.False(t, o.Valid(), "slot %d", i)
	}
	g.OneGravCall()
	assert.False(t, g.BestEstimate().Valid())

	g.Input(uplink(t0), now, EarthRate())
	assert.True(t, g.BestEstimate().Valid())
}

func TestGroundPropagatorTieGoesToLatest(t *testing.T) {
	var buf bytes.Buffer
	g := NewGroundPropagator(WithGroundLogger(kitlog.NewLogfmtLogger(&buf)))
	now := t0 + 10_000_000_000
	g.Input(uplink(t0), now, EarthRate())
	g.Input(uplink(t0), now, EarthRate())
	assert.Equal(t, uint64(2), g.slots[0].seq)
	assert.Equal(t, t0, g.slots[0].epoch)
	assert.False(t, g.slots[1].orbit.Valid())
	assert.False(t, g.slots[2].orbit.Valid())
	assert.Contains(t, buf.String(), "replaced")
	requireGroundSorted(t, g)
}
