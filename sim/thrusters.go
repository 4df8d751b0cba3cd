package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// StandardGravity is used to convert a specific impulse to an exhaust velocity.
const StandardGravity = 9.80665

// ErrInsufficientFuel is returned when a burn needs more fuel than left.
var ErrInsufficientFuel = errors.New("sim: insufficient fuel")

// Thruster defines a thruster by its thrust and specific impulse.
type Thruster interface {
	// Returns the thrust in Newtons and isp in seconds.
	Thrust() (thrust, isp float64)
}

// ColdGas is a cold gas thruster sized for a 3U CubeSat.
type ColdGas struct{}

// Thrust implements the Thruster interface.
func (t ColdGas) Thrust() (thrust, isp float64) {
	return 10e-3, 45
}

// GenericThruster is a thruster of fixed thrust and isp.
type GenericThruster struct {
	thrust float64
	isp    float64
}

// Thrust implements the Thruster interface.
func (t *GenericThruster) Thrust() (thrust, isp float64) {
	return t.thrust, t.isp
}

// NewGenericThruster returns a generic thruster.
func NewGenericThruster(thrust, isp float64) *GenericThruster {
	if thrust <= 0 || isp <= 0 {
		panic(fmt.Errorf("sim: thrust (%f N) and isp (%f s) must be positive", thrust, isp))
	}
	return &GenericThruster{thrust, isp}
}

// Spacecraft holds the masses of a satellite, in kg.
type Spacecraft struct {
	Name     string
	DryMass  float64
	FuelMass float64
}

// DefaultSpacecraft returns a 3U CubeSat with a small cold gas tank.
func DefaultSpacecraft() *Spacecraft {
	return &Spacecraft{Name: "sat", DryMass: 4, FuelMass: 0.2}
}

// Mass returns the wet mass.
func (sc *Spacecraft) Mass() float64 {
	return sc.DryMass + sc.FuelMass
}

// Fire burns the thruster for d, as an impulse, and returns the magnitude of the
// velocity change from the rocket equation. The fuel is spent only on success.
func (sc *Spacecraft) Fire(t Thruster, d time.Duration) (float64, error) {
	thrust, isp := t.Thrust()
	ve := isp * StandardGravity
	fuel := thrust / ve * d.Seconds()
	if fuel > sc.FuelMass {
		return 0, fmt.Errorf("%w: %s needs %.6f kg, %.6f kg left", ErrInsufficientFuel, sc.Name, fuel, sc.FuelMass)
	}
	m0 := sc.Mass()
	sc.FuelMass -= fuel
	return ve * math.Log(m0/sc.Mass()), nil
}

// Maneuver is an impulsive burn along a direction of the radial, along track and
// normal frame of the orbit.
type Maneuver struct {
	NsGPSTime uint64
	Thruster  Thruster
	Duration  time.Duration
	Direction r3.Vec // radial, along track, normal
}

// Burn is an executed maneuver. The velocity change is the same vector expressed in
// both frames, so a flight orbit applies DeltaVECEF with orb.Orbit.ApplyDeltaV.
type Burn struct {
	NsGPSTime  uint64
	DeltaVECI  r3.Vec
	DeltaVECEF r3.Vec
}
