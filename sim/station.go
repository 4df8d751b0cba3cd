package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

// ErrNoUplink is returned when no ground orbit has reached the satellite.
var ErrNoUplink = errors.New("sim: no uplink available")

// GroundStation determines the orbit of the satellite from the ground and uploads
// it Delay later.
type GroundStation struct {
	Name    string
	Delay   time.Duration
	model   orb.GravityModel
	noise   stateNoise
	pending []uplink
}

// uplink is a determined orbit waiting for upload.
type uplink struct {
	epoch uint64
	orbit orb.Orbit
}

// NewGroundStation returns a station whose orbits have position and velocity errors
// of standard deviations σr (m) and σv (m/s), and propagate with model.
func NewGroundStation(name string, model orb.GravityModel, σr, σv float64, delay time.Duration, src rand.Source) *GroundStation {
	return &GroundStation{Name: name, Delay: delay, model: model, noise: newStateNoise(σr, σv, src)}
}

// Track determines the orbit at the current time of the mission and queues it for upload.
func (s *GroundStation) Track(m *Mission) {
	r, v := s.noise.add(m.ECEF())
	s.pending = append(s.pending, uplink{m.NsGPSTime(), orb.NewOrbit(s.model, m.NsGPSTime(), r, v)})
}

// Uplink returns the newest orbit which reached the satellite by nowNs. Older arrived
// orbits are superseded and forgotten.
func (s *GroundStation) Uplink(nowNs uint64) (orb.Orbit, error) {
	n := 0
	for n < len(s.pending) && s.pending[n].epoch+uint64(s.Delay) <= nowNs {
		n++
	}
	if n == 0 {
		return orb.Orbit{}, fmt.Errorf("%s at %d: %w", s.Name, nowNs, ErrNoUplink)
	}
	o := s.pending[n-1].orbit
	s.pending = s.pending[n:]
	return o, nil
}

func (s *GroundStation) String() string {
	return fmt.Sprintf("%s (delay %s, %d pending)", s.Name, s.Delay, len(s.pending))
}
