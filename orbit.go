package orb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sanity band on the orbital radius, in meters.
const (
	MinOrbitRadius = 6.678e6
	MaxOrbitRadius = 7.978e6
)

// phase is either atRest or inBlock.
type phase interface {
	state() (r, v r3.Vec, t uint64)
	finite() bool
}

// atRest holds the absolute ECEF state.
type atRest struct {
	r, v r3.Vec
	t    uint64
}

func (p atRest) state() (r3.Vec, r3.Vec, uint64) { return p.r, p.v, p.t }

func (p atRest) finite() bool {
	if !finite(p.r) || !finite(p.v) {
		return false
	}
	rNorm := r3.Norm(p.r)
	return rNorm >= MinOrbitRadius && rNorm <= MaxOrbitRadius
}

// inBlock is a long step in flight: the state is relative to a reference orbit
// built at t0, and stage sub-steps of the composition have been done.
type inBlock struct {
	t0     uint64
	ref    reference
	rel    relative
	spanNs int64
	stage  int
}

// state reconstructs the ECEF state of the current composition stage. It is only
// as accurate as a partial composition.
func (p inBlock) state() (r3.Vec, r3.Vec, uint64) {
	r, v := p.ref.absolute(p.rel)
	return r, v, uint64(int64(p.t0) + int64(math.Round(p.rel.tau*nsPerSecond)))
}

func (p inBlock) finite() bool {
	return finite(p.rel.r) && finite(p.rel.v)
}

// Orbit is the ECEF position and velocity of a satellite at a GPS time, along
// with its propagation budget. Orbit is a value: copies are independent.
// The zero Orbit is invalid.
type Orbit struct {
	model     GravityModel
	phase     phase // nil when invalid
	callsLeft int32
	target    uint64
	earthRate r3.Vec // Earth rate of the propagation in flight
}

// NewOrbit returns the orbit at nsGPSTime with the provided ECEF position (m) and velocity (m/s).
// The orbit is invalid if any component is not finite or if the radius is out of
// [MinOrbitRadius, MaxOrbitRadius].
func NewOrbit(model GravityModel, nsGPSTime uint64, rECEF, vECEF r3.Vec) Orbit {
	if model == nil {
		panic("orb: nil gravity model")
	}
	o := Orbit{model: model, phase: atRest{rECEF, vECEF, nsGPSTime}}
	o.check()
	return o
}

// check invalidates the orbit if its state is not sane.
func (o *Orbit) check() {
	if o.phase != nil && o.phase.finite() {
		return
	}
	o.phase = nil
	o.callsLeft = 0
	o.target = 0
	o.earthRate = r3.Vec{}
}

// Valid returns whether the orbit holds a sane state.
func (o Orbit) Valid() bool {
	return o.phase != nil
}

// Model returns the gravity model of this orbit.
func (o Orbit) Model() GravityModel {
	return o.model
}

// R returns the ECEF position in meters, or NaNs if the orbit is invalid.
func (o Orbit) R() r3.Vec {
	if o.phase == nil {
		return nanVec
	}
	r, _, _ := o.phase.state()
	return r
}

// V returns the ECEF velocity in meters per second, or NaNs if the orbit is invalid.
func (o Orbit) V() r3.Vec {
	if o.phase == nil {
		return nanVec
	}
	_, v, _ := o.phase.state()
	return v
}

// NsGPSTime returns the time of the state in nanoseconds since the GPS epoch, or 0
// if the orbit is invalid.
// While a long step is in flight, R, V and NsGPSTime are those of the current
// stage of the composition.
func (o Orbit) NsGPSTime() uint64 {
	if o.phase == nil {
		return 0
	}
	_, _, t := o.phase.state()
	return t
}

// NumGravCallsLeft returns the number of gravity calls left to reach the target time.
func (o Orbit) NumGravCallsLeft() int32 {
	return o.callsLeft
}

// TargetGPSTime returns the target of the last StartPropagating.
func (o Orbit) TargetGPSTime() uint64 {
	return o.target
}

// Stage returns the number of sub-steps done in the long step in flight, 0 if none.
func (o Orbit) Stage() int {
	if b, ok := o.phase.(inBlock); ok {
		return b.stage
	}
	return 0
}

// ApplyDeltaV adds an impulsive velocity change given in ECEF (m/s).
func (o *Orbit) ApplyDeltaV(dv r3.Vec) {
	switch p := o.phase.(type) {
	case atRest:
		p.v = r3.Add(p.v, dv)
		o.phase = p
	case inBlock:
		p.rel.v = r3.Add(p.rel.v, toECEF0(dv, p.ref.earthRate, p.rel.tau))
		o.phase = p
	default:
		return
	}
	o.check()
}

// ShortUpdate propagates the orbit by dtNs nanoseconds with one gravity call and
// returns the specific energy (J/kg) at the half step.
// earthRate is the Earth angular rate in ECEF (rad/s).
// It panics if |dtNs| > MaxShortTimeStepNs. An invalid orbit is left untouched and
// NaN is returned. A propagation in flight is finished first.
func (o *Orbit) ShortUpdate(dtNs int32, earthRate r3.Vec) float64 {
	energy, _ := o.shortUpdate(dtNs, earthRate, false)
	return energy
}

// ShortUpdateWithJacobian is ShortUpdate which also returns the 6x6 Jacobian of the
// new ECEF state with respect to the previous one, for a point mass Earth.
func (o *Orbit) ShortUpdateWithJacobian(dtNs int32, earthRate r3.Vec) (float64, *mat.Dense) {
	return o.shortUpdate(dtNs, earthRate, true)
}

func (o *Orbit) shortUpdate(dtNs int32, earthRate r3.Vec, withJacobian bool) (float64, *mat.Dense) {
	if dtNs > MaxShortTimeStepNs || dtNs < -MaxShortTimeStepNs {
		panic(fmt.Errorf("orb: short update of %d ns is out of [-%d, %d]", dtNs, MaxShortTimeStepNs, MaxShortTimeStepNs))
	}
	o.FinishPropagating()
	rest, ok := o.phase.(atRest)
	if !ok {
		if withJacobian {
			return math.NaN(), nanDense(6, 6)
		}
		return math.NaN(), nil
	}
	if dtNs == 0 {
		_, U := o.model.Gravity(rest.r)
		V := r3.Add(rest.v, r3.Cross(earthRate, rest.r))
		var J *mat.Dense
		if withJacobian {
			J = eye(6)
		}
		return 0.5*r3.Norm2(V) - U, J
	}
	dt := float64(dtNs) / nsPerSecond
	ref, rel := relativize(rest.r, rest.v, earthRate)
	rel, energy, rHalf := ref.step(o.model, rel, dt)
	r, v := ref.absolute(rel)
	o.phase = atRest{r, v, uint64(int64(rest.t) + int64(dtNs))}
	o.check()
	if !withJacobian {
		return energy, nil
	}
	if !o.Valid() {
		return energy, nanDense(6, 6)
	}
	return energy, jacobian(rHalf, dt, earthRate)
}

// SpecificEnergy returns the specific energy (J/kg) of the orbit in the inertial
// frame, spending one gravity call.
func (o Orbit) SpecificEnergy(earthRate r3.Vec) float64 {
	if o.phase == nil {
		return math.NaN()
	}
	r, v, _ := o.phase.state()
	_, U := o.model.Gravity(r)
	return 0.5*r3.Norm2(r3.Add(v, r3.Cross(earthRate, r))) - U
}

// Elements returns the osculating elements of the orbit in the inertial frame which
// coincides with ECEF at the orbit time.
func (o Orbit) Elements(earthRate r3.Vec) Elements {
	r, v := o.R(), o.V()
	return ElementsFromRV(r, r3.Add(v, r3.Cross(earthRate, r)), EarthGM)
}

// String implements the Stringer interface.
func (o Orbit) String() string {
	if !o.Valid() {
		return "invalid orbit"
	}
	r, v, t := o.phase.state()
	return fmt.Sprintf("t=%d r=(%.3f, %.3f, %.3f) v=(%.6f, %.6f, %.6f) calls=%d", t, r.X, r.Y, r.Z, v.X, v.Y, v.Z, o.callsLeft)
}
