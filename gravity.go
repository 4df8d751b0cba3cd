package orb

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Earth gravitational constants, in SI units.
const (
	EarthGM     = 3.986004418e14 // m^3/s^2
	EarthRadius = 6378137.0      // m
	EarthJ2     = 1082.6269e-6
	EarthJ3     = -2.5324e-6
	EarthJ4     = -1.6204e-6
)

// GravityModel evaluates the gravity field at a given ECEF position.
// It returns the acceleration in ECEF (m/s^2) and the positive geopotential U (m^2/s^2),
// so that the specific energy of a state is ½|v|² - U.
// Each call is one unit of the propagation budget.
type GravityModel interface {
	Gravity(rECEF r3.Vec) (g r3.Vec, potential float64)
}

// GravityFunc allows a plain function to be used as a GravityModel.
type GravityFunc func(rECEF r3.Vec) (r3.Vec, float64)

// Gravity implements the GravityModel interface.
func (f GravityFunc) Gravity(rECEF r3.Vec) (r3.Vec, float64) {
	return f(rECEF)
}

// PointMass is a spherical body.
type PointMass struct {
	GM float64
}

// Gravity implements the GravityModel interface.
func (p PointMass) Gravity(r r3.Vec) (r3.Vec, float64) {
	rNorm := r3.Norm(r)
	return r3.Scale(-p.GM/(rNorm*rNorm*rNorm), r), p.GM / rNorm
}

// Zonal is an axisymmetric body whose field is expanded up to the Jn-th zonal harmonic.
type Zonal struct {
	GM         float64
	Radius     float64
	J2, J3, J4 float64
	Jn         uint8 // Zonal terms to be used (only up to 4 supported)
}

// Gravity implements the GravityModel interface.
func (z Zonal) Gravity(R r3.Vec) (r3.Vec, float64) {
	g, U := PointMass{z.GM}.Gravity(R)
	if z.Jn < 2 {
		return g, U
	}
	x, y, zz := R.X, R.Y, R.Z
	r2 := r3.Norm2(R)
	r := math.Sqrt(r2)
	z2 := zz * zz
	s2 := z2 / r2 // sin² of the geocentric latitude
	r5 := r2 * r2 * r
	r7 := r5 * r2
	// J2
	accJ2 := (3 / 2.) * z.J2 * z.Radius * z.Radius * z.GM
	g.X += accJ2 * x / r5 * (5*s2 - 1)
	g.Y += accJ2 * y / r5 * (5*s2 - 1)
	g.Z += accJ2 * zz / r5 * (5*s2 - 3)
	U -= z.GM * z.J2 * math.Pow(z.Radius, 2) / (r2 * r) * (3*s2 - 1) / 2
	if z.Jn >= 3 {
		accJ3 := z.J3 * math.Pow(z.Radius, 3) * z.GM
		z3 := z2 * zz
		r9 := r7 * r2
		g.X += (5 / 2.) * accJ3 * (7*x*z3/r9 - 3*x*zz/r7)
		g.Y += (5 / 2.) * accJ3 * (7*y*z3/r9 - 3*y*zz/r7)
		g.Z += 0.5 * accJ3 * (35*z2*z2/r9 - 30*z2/r7 + 3/r5)
		U -= z.GM * z.J3 * math.Pow(z.Radius, 3) / (r2 * r2) * (5*s2 - 3) * (zz / r) / 2
	}
	if z.Jn >= 4 {
		accJ4 := z.J4 * math.Pow(z.Radius, 4) * z.GM
		s4 := s2 * s2
		g.X += (15 / 8.) * accJ4 * x / r7 * (1 - 14*s2 + 21*s4)
		g.Y += (15 / 8.) * accJ4 * y / r7 * (1 - 14*s2 + 21*s4)
		g.Z += (5 / 8.) * accJ4 * zz / r7 * (15 - 70*s2 + 63*s4)
		U -= z.GM * z.J4 * math.Pow(z.Radius, 4) / (r2 * r2 * r) * (35*s4 - 30*s2 + 3) / 8
	}
	return g, U
}

// EarthPointMass returns the spherical Earth model.
func EarthPointMass() PointMass {
	return PointMass{GM: EarthGM}
}

// EarthZonal returns the Earth model with the zonal harmonics up to J4.
func EarthZonal() Zonal {
	return Zonal{GM: EarthGM, Radius: EarthRadius, J2: EarthJ2, J3: EarthJ3, J4: EarthJ4, Jn: 4}
}

// pointMassGradient returns the gravity gradient ∂g/∂r of a point mass at R.
// The gradient is invariant by rotation of the frame, so R may be in ECEF or ECEF0.
func pointMassGradient(μ float64, R r3.Vec) [3][3]float64 {
	r2 := r3.Norm2(R)
	r := math.Sqrt(r2)
	r3inv := μ / (r2 * r)
	r5inv := 3 * μ / (r2 * r2 * r)
	c := [3]float64{R.X, R.Y, R.Z}
	var G [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			G[i][j] = r5inv * c[i] * c[j]
			if i == j {
				G[i][j] -= r3inv
			}
		}
	}
	return G
}
