package sim

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

func TestGPSReceiverLatency(t *testing.T) {
	m := NewMissionFromOrbit(leo(orb.EarthPointMass()))
	g := NewGPSReceiver(0, 0, 500*time.Millisecond, rand.NewPCG(1, 2))
	g.Sample(m)
	require.NoError(t, m.PropagateUntil(t0+100_000_000))
	g.Sample(m)

	assert.Empty(t, g.Ready(t0+400_000_000))
	ready := g.Ready(t0 + 500_000_000)
	require.Len(t, ready, 1)
	assert.Equal(t, t0, ready[0].NsGPSTime)
	assert.Equal(t, 1, g.Pending())

	ready = g.Ready(t0 + 10_000_000_000)
	require.Len(t, ready, 1)
	r, v := m.ECEF()
	assert.Equal(t, orb.GPSMeasurement{NsGPSTime: t0 + 100_000_000, R: r, V: v}, ready[0])
	assert.Equal(t, 0, g.Pending())
}

func TestGPSReceiverNoise(t *testing.T) {
	m := NewMissionFromOrbit(leo(orb.EarthPointMass()))
	g := NewGPSReceiver(5, 0.05, 0, rand.NewPCG(3, 4))
	const n = 2000
	for i := 0; i < n; i++ {
		g.Sample(m)
	}
	r, v := m.ECEF()
	var sr, sv float64
	for _, fix := range g.Ready(t0) {
		sr += r3.Norm2(r3.Sub(fix.R, r))
		sv += r3.Norm2(r3.Sub(fix.V, v))
	}
	assert.InEpsilon(t, 5, math.Sqrt(sr/(3*n)), 0.1)
	assert.InEpsilon(t, 0.05, math.Sqrt(sv/(3*n)), 0.1)

	assert.Panics(t, func() { NewGPSReceiver(5, 0, 0, rand.NewPCG(3, 4)) })
}
