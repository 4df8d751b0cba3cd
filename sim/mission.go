// Package sim simulates the truth a flight orbit estimator is fed from: the orbit
// of the satellite, its GPS receiver, the ground station uploading orbits and the
// thrusters changing it.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
	"github.com/pathfinder-for-autonomous-navigation/psim-sub000/integrator"
)

const (
	// StepSize is the default step size of the truth propagation.
	StepSize = time.Second
)

// ErrPast is returned when asked to go back in time.
var ErrPast = errors.New("sim: the mission cannot go back in time")

// Mission propagates the true orbit of a satellite in the ECI frame with an RK4
// integrator. The ECEF frame turns about Z at orb.EarthRotationRate, starting from
// the mean sidereal angle at the epoch of the mission.
type Mission struct {
	Vehicle   *Spacecraft
	model     orb.GravityModel
	step      time.Duration
	epoch     uint64
	θ0        float64
	nsGPSTime uint64
	r, v      r3.Vec
	maneuvers []Maneuver
	burns     []Burn
	collided  bool
	logger    kitlog.Logger

	// Current integration leg.
	legStart, legSpan, legSteps uint64
}

// MissionOption configures a Mission.
type MissionOption func(*Mission)

// WithStepSize sets the integration step size.
func WithStepSize(step time.Duration) MissionOption {
	return func(m *Mission) {
		m.step = step
	}
}

// WithVehicle sets the spacecraft which executes the maneuvers.
func WithVehicle(sc *Spacecraft) MissionOption {
	return func(m *Mission) {
		m.Vehicle = sc
	}
}

// WithMissionLogger sets the logger of the mission.
func WithMissionLogger(logger kitlog.Logger) MissionOption {
	return func(m *Mission) {
		m.logger = logger
	}
}

// NewMission returns a mission starting at nsGPSTime from an ECI state.
func NewMission(model orb.GravityModel, nsGPSTime uint64, rECI, vECI r3.Vec, opts ...MissionOption) *Mission {
	if model == nil {
		panic("sim: mission gravity model may not be nil")
	}
	m := &Mission{
		Vehicle:   DefaultSpacecraft(),
		model:     model,
		step:      StepSize,
		epoch:     nsGPSTime,
		θ0:        orb.GreenwichSiderealAngle(nsGPSTime),
		nsGPSTime: nsGPSTime,
		r:         rECI,
		v:         vECI,
		logger:    kitlog.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.step <= 0 {
		panic(fmt.Errorf("sim: step size must be positive, got %s", m.step))
	}
	return m
}

// NewMissionFromOrbit returns a mission starting from a valid ECEF orbit, with the
// orbit's gravity model.
func NewMissionFromOrbit(o orb.Orbit, opts ...MissionOption) *Mission {
	if !o.Valid() {
		panic("sim: cannot start a mission from an invalid orbit")
	}
	θ := orb.GreenwichSiderealAngle(o.NsGPSTime())
	r := o.R()
	vInertial := r3.Add(o.V(), r3.Cross(orb.EarthRate(), r))
	return NewMission(o.Model(), o.NsGPSTime(), orb.ECEF2ECI(r, θ), orb.ECEF2ECI(vInertial, θ), opts...)
}

// NsGPSTime returns the current time of the mission.
func (m *Mission) NsGPSTime() uint64 {
	return m.nsGPSTime
}

// SiderealAngle returns the angle between the ECI and ECEF frames at ns.
func (m *Mission) SiderealAngle(ns uint64) float64 {
	return m.θ0 + orb.EarthRotationRate*float64(int64(ns-m.epoch))/1e9
}

// ECI returns the current inertial position and velocity.
func (m *Mission) ECI() (r, v r3.Vec) {
	return m.r, m.v
}

// ECEF returns the current position and velocity relative to the Earth.
func (m *Mission) ECEF() (r, v r3.Vec) {
	θ := m.SiderealAngle(m.nsGPSTime)
	r = orb.ECI2ECEF(m.r, θ)
	v = orb.ECI2ECEF(r3.Sub(m.v, r3.Cross(orb.EarthRate(), m.r)), θ)
	return r, v
}

// Orbit returns the current true orbit with the provided gravity model.
func (m *Mission) Orbit(model orb.GravityModel) orb.Orbit {
	r, v := m.ECEF()
	return orb.NewOrbit(model, m.nsGPSTime, r, v)
}

// Schedule queues a maneuver. Maneuvers in the past are refused.
func (m *Mission) Schedule(mv Maneuver) error {
	if mv.NsGPSTime < m.nsGPSTime {
		return fmt.Errorf("sim: maneuver at %d: %w", mv.NsGPSTime, ErrPast)
	}
	i := sort.Search(len(m.maneuvers), func(i int) bool { return m.maneuvers[i].NsGPSTime > mv.NsGPSTime })
	m.maneuvers = append(m.maneuvers, Maneuver{})
	copy(m.maneuvers[i+1:], m.maneuvers[i:])
	m.maneuvers[i] = mv
	return nil
}

// Burns returns the executed maneuvers.
func (m *Mission) Burns() []Burn {
	return append([]Burn(nil), m.burns...)
}

// PropagateUntil propagates the mission until ns, executing the maneuvers due on the
// way. Maneuvers which cannot be executed are skipped and their errors returned.
func (m *Mission) PropagateUntil(ns uint64) error {
	if ns < m.nsGPSTime {
		return fmt.Errorf("sim: propagate from %d to %d: %w", m.nsGPSTime, ns, ErrPast)
	}
	var errs []error
	for {
		for len(m.maneuvers) > 0 && m.maneuvers[0].NsGPSTime <= m.nsGPSTime {
			mv := m.maneuvers[0]
			m.maneuvers = m.maneuvers[1:]
			if err := m.execute(mv); err != nil {
				errs = append(errs, err)
			}
		}
		if m.nsGPSTime == ns {
			return errors.Join(errs...)
		}
		stop := ns
		if len(m.maneuvers) > 0 && m.maneuvers[0].NsGPSTime < stop {
			stop = m.maneuvers[0].NsGPSTime
		}
		if _, _, err := m.leg(stop); err != nil {
			return err
		}
	}
}

// leg integrates from the current time to stop in equal steps no longer than the
// step size.
func (m *Mission) leg(stop uint64) (uint64, float64, error) {
	m.legStart = m.nsGPSTime
	m.legSpan = stop - m.nsGPSTime
	m.legSteps = (m.legSpan + uint64(m.step) - 1) / uint64(m.step)
	h := float64(m.legSpan) / float64(m.legSteps) / 1e9
	return integrator.NewRK4(0, h, m).Solve()
}

// execute fires the thruster of a maneuver in the RTN frame of the current orbit.
func (m *Mission) execute(mv Maneuver) error {
	dv, err := m.Vehicle.Fire(mv.Thruster, mv.Duration)
	if err != nil {
		level.Error(m.logger).Log("subsys", "prop", "maneuver", mv.NsGPSTime, "err", err)
		return fmt.Errorf("sim: maneuver at %d: %w", mv.NsGPSTime, err)
	}
	dvECI := r3.Scale(dv, rtnToInertial(m.r, m.v, mv.Direction))
	m.v = r3.Add(m.v, dvECI)
	b := Burn{
		NsGPSTime:  m.nsGPSTime,
		DeltaVECI:  dvECI,
		DeltaVECEF: orb.ECI2ECEF(dvECI, m.SiderealAngle(m.nsGPSTime)),
	}
	m.burns = append(m.burns, b)
	level.Info(m.logger).Log("subsys", "prop", "burn", b.NsGPSTime, "Δv(m/s)", dv, "fuel(kg)", m.Vehicle.FuelMass)
	return nil
}

// rtnToInertial expresses a radial, along track and normal direction in the frame of r and v.
func rtnToInertial(r, v, dir r3.Vec) r3.Vec {
	radial := r3.Unit(r)
	normal := r3.Unit(r3.Cross(r, v))
	along := r3.Cross(normal, radial)
	u := r3.Unit(dir)
	return r3.Add(r3.Add(r3.Scale(u.X, radial), r3.Scale(u.Y, along)), r3.Scale(u.Z, normal))
}

// GetState returns the state for the integrator.
func (m *Mission) GetState() []float64 {
	return []float64{m.r.X, m.r.Y, m.r.Z, m.v.X, m.v.Y, m.v.Z}
}

// SetState sets the updated state of iteration i of the current leg.
func (m *Mission) SetState(i uint64, s []float64) {
	m.r = r3.Vec{X: s[0], Y: s[1], Z: s[2]}
	m.v = r3.Vec{X: s[3], Y: s[4], Z: s[5]}
	if i+1 == m.legSteps {
		m.nsGPSTime = m.legStart + m.legSpan
	} else {
		m.nsGPSTime = m.legStart + uint64(math.Round(float64(m.legSpan)*float64(i+1)/float64(m.legSteps)))
	}

	if rNorm := r3.Norm(m.r); !m.collided && rNorm < orb.EarthRadius {
		m.collided = true
		level.Error(m.logger).Log("subsys", "astro", "collided", m.nsGPSTime, "r", rNorm)
	}
}

// Stop implements the stop call of the integrator.
func (m *Mission) Stop(i uint64) bool {
	return i >= m.legSteps
}

// Func returns the time derivative of the ECI state, t seconds into the current leg.
func (m *Mission) Func(t float64, s []float64) []float64 {
	θ := m.SiderealAngle(m.legStart) + orb.EarthRotationRate*t
	r := r3.Vec{X: s[0], Y: s[1], Z: s[2]}
	g, _ := m.model.Gravity(orb.ECI2ECEF(r, θ))
	a := orb.ECEF2ECI(g, θ)
	return []float64{s[3], s[4], s[5], a.X, a.Y, a.Z}
}
