package sim

import (
	"math/rand/v2"
	"time"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

// GPSReceiver samples the true ECEF state with Gaussian noise. A fix becomes
// available Latency after the time it is stamped with.
type GPSReceiver struct {
	Latency time.Duration
	noise   stateNoise
	pending []orb.GPSMeasurement
}

// NewGPSReceiver returns a receiver with position and velocity noise of standard
// deviations σr (m) and σv (m/s).
func NewGPSReceiver(σr, σv float64, latency time.Duration, src rand.Source) *GPSReceiver {
	return &GPSReceiver{Latency: latency, noise: newStateNoise(σr, σv, src)}
}

// Sample takes a fix of the current state of the mission.
func (g *GPSReceiver) Sample(m *Mission) {
	r, v := g.noise.add(m.ECEF())
	g.pending = append(g.pending, orb.GPSMeasurement{NsGPSTime: m.NsGPSTime(), R: r, V: v})
}

// Ready returns, oldest first, the fixes available at nowNs and forgets them.
func (g *GPSReceiver) Ready(nowNs uint64) []orb.GPSMeasurement {
	n := 0
	for n < len(g.pending) && g.pending[n].NsGPSTime+uint64(g.Latency) <= nowNs {
		n++
	}
	ready := append([]orb.GPSMeasurement(nil), g.pending[:n]...)
	g.pending = g.pending[n:]
	return ready
}

// Pending returns the number of fixes not yet available.
func (g *GPSReceiver) Pending() int {
	return len(g.pending)
}
