package orb

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// reference is a circular orbit with the same energy and plane as the state it was
// built from. Its motion is analytic, so only the small residual relative to it
// is integrated. All vectors are expressed in ECEF0, the inertial frame which
// coincides with ECEF when the reference is built.
type reference struct {
	xAxis, yAxis r3.Vec  // a·x̂ and a·ŷ, spanning the orbital plane
	omega        r3.Vec  // n·ĥ
	n2           float64 // n², the centripetal factor μ/a³
	earthRate    r3.Vec
}

// relative is the state relative to the reference, tau seconds after it was built.
type relative struct {
	r, v r3.Vec
	tau  float64
}

// newReference builds the reference orbit matching the inertial state R, V.
func newReference(R, V, earthRate r3.Vec) reference {
	E := 0.5*r3.Norm2(V) - EarthGM/r3.Norm(R)
	a := -EarthGM / (2 * E)
	x := unit(R)
	h := unit(r3.Cross(R, V))
	if h == (r3.Vec{}) {
		// Radial motion: any plane containing R will do.
		h = unit(r3.Cross(x, r3.Vec{Z: 1}))
		if h == (r3.Vec{}) {
			h = unit(r3.Cross(x, r3.Vec{X: 1}))
		}
	}
	y := r3.Cross(h, x)
	n2 := EarthGM / (a * a * a)
	return reference{
		xAxis:     r3.Scale(a, x),
		yAxis:     r3.Scale(a, y),
		omega:     r3.Scale(math.Sqrt(n2), h),
		n2:        n2,
		earthRate: earthRate,
	}
}

// position of the reference orbit tau seconds after it was built.
func (ref reference) position(tau float64) r3.Vec {
	s, c := math.Sincos(math.Sqrt(ref.n2) * tau)
	return r3.Add(r3.Scale(c, ref.xAxis), r3.Scale(s, ref.yAxis))
}

// velocity of the reference orbit tau seconds after it was built.
func (ref reference) velocity(tau float64) r3.Vec {
	return r3.Cross(ref.omega, ref.position(tau))
}

// relativize converts an ECEF state to the reference representation.
func relativize(r, v, earthRate r3.Vec) (reference, relative) {
	V := r3.Add(v, r3.Cross(earthRate, r))
	ref := newReference(r, V, earthRate)
	return ref, relative{
		r: r3.Sub(r, ref.xAxis),
		v: r3.Sub(V, r3.Scale(math.Sqrt(ref.n2), ref.yAxis)),
	}
}

// absolute converts the relative state back to ECEF at rel.tau.
func (ref reference) absolute(rel relative) (r, v r3.Vec) {
	R := r3.Add(ref.position(rel.tau), rel.r)
	V := r3.Add(ref.velocity(rel.tau), rel.v)
	r = toECEF(R, ref.earthRate, rel.tau)
	v = r3.Sub(toECEF(V, ref.earthRate, rel.tau), r3.Cross(ref.earthRate, r))
	return r, v
}

// step performs one drift-kick-drift sub-step of dt seconds, spending one gravity call.
// It returns the specific energy at the half step and the half step position in ECEF0.
func (ref reference) step(model GravityModel, rel relative, dt float64) (relative, float64, r3.Vec) {
	rel.r = r3.Add(rel.r, r3.Scale(dt/2, rel.v))
	rel.tau += dt / 2

	p := ref.position(rel.tau)
	rHalf := r3.Add(p, rel.r)
	g, U := model.Gravity(toECEF(rHalf, ref.earthRate, rel.tau))
	acc := r3.Add(toECEF0(g, ref.earthRate, rel.tau), r3.Scale(ref.n2, p))
	vHalf := r3.Add(r3.Add(ref.velocity(rel.tau), rel.v), r3.Scale(dt/2, acc))
	energy := 0.5*r3.Norm2(vHalf) - U

	rel.v = r3.Add(rel.v, r3.Scale(dt, acc))
	rel.r = r3.Add(rel.r, r3.Scale(dt/2, rel.v))
	rel.tau += dt / 2
	return rel, energy, rHalf
}
