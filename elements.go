package orb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	eccentricityε = 5e-5                         // 0.00005
	angleε        = (5e-3 / 360) * (2 * math.Pi) // 0.005 degrees
)

// Elements are the classical orbital elements of an inertial state.
// Distances are in meters, angles in radians.
type Elements struct {
	A, E, I      float64
	RAAN         float64 // Ω
	ArgPeriapsis float64 // ω
	TrueAnomaly  float64 // ν
}

// String implements the Stringer interface.
func (el Elements) String() string {
	return fmt.Sprintf("a=%.3f e=%.6f i=%.4f Ω=%.4f ω=%.4f ν=%.4f", el.A, el.E, Rad2deg(el.I), Rad2deg(el.RAAN), Rad2deg(el.ArgPeriapsis), Rad2deg(el.TrueAnomaly))
}

// Period returns the orbital period in seconds.
func (el Elements) Period(μ float64) float64 {
	return 2 * math.Pi * math.Sqrt(math.Pow(el.A, 3)/μ)
}

// ElementsFromRV returns the orbital elements from inertial position and velocity
// (Vallado's RV2COE, page 113).
func ElementsFromRV(R, V r3.Vec, μ float64) Elements {
	hVec := r3.Cross(R, V)
	n := r3.Cross(r3.Vec{Z: 1}, hVec)
	v := r3.Norm(V)
	r := r3.Norm(R)
	ξ := (v*v)/2 - μ/r
	a := -μ / (2 * ξ)
	eVec := r3.Scale(1/μ, r3.Sub(r3.Scale(v*v-μ/r, R), r3.Scale(r3.Dot(R, V), V)))
	e := r3.Norm(eVec)
	i := math.Acos(hVec.Z / r3.Norm(hVec))
	ω := math.Acos(r3.Dot(n, eVec) / (r3.Norm(n) * e))
	if math.IsNaN(ω) {
		ω = 0
	}
	if eVec.Z < 0 {
		ω = 2*math.Pi - ω
	}
	Ω := math.Acos(n.X / r3.Norm(n))
	if math.IsNaN(Ω) {
		Ω = 0
	}
	if n.Y < 0 {
		Ω = 2*math.Pi - Ω
	}
	cosν := r3.Dot(eVec, R) / (e * r)
	if abscosν := math.Abs(cosν); abscosν > 1 && scalar.EqualWithinAbs(abscosν, 1, 1e-12) {
		cosν = sign(cosν)
	}
	ν := math.Acos(cosν)
	if math.IsNaN(ν) {
		ν = 0
	}
	if r3.Dot(R, V) < 0 {
		ν = 2*math.Pi - ν
	}
	return Elements{
		A:            a,
		E:            e,
		I:            math.Mod(i, 2*math.Pi),
		RAAN:         math.Mod(Ω, 2*math.Pi),
		ArgPeriapsis: math.Mod(ω, 2*math.Pi),
		TrueAnomaly:  math.Mod(ν, 2*math.Pi),
	}
}

// RV returns the inertial position and velocity of these elements.
func (el Elements) RV(μ float64) (R, V r3.Vec) {
	p := el.A * (1 - el.E*el.E)
	ν, ω, Ω := el.TrueAnomaly, el.ArgPeriapsis, el.RAAN
	if el.E < eccentricityε {
		ω = 0
		if el.I < angleε {
			// Circular equatorial
			Ω = 0
			ν = math.Mod(el.ArgPeriapsis+el.RAAN+el.TrueAnomaly, 2*math.Pi)
		} else {
			// Circular inclined
			ν = math.Mod(el.TrueAnomaly+el.ArgPeriapsis, 2*math.Pi)
		}
	} else if el.I < angleε {
		Ω = 0
		ω = math.Mod(el.ArgPeriapsis+el.RAAN, 2*math.Pi)
	}
	sinν, cosν := math.Sincos(ν)
	R = PQW2ECI(el.I, ω, Ω, r3.Vec{X: p * cosν / (1 + el.E*cosν), Y: p * sinν / (1 + el.E*cosν)})
	V = PQW2ECI(el.I, ω, Ω, r3.Vec{X: -math.Sqrt(μ/p) * sinν, Y: math.Sqrt(μ/p) * (el.E + cosν)})
	return R, V
}

// NewElements returns the elements from angles given in degrees.
func NewElements(a, e, i, Ω, ω, ν float64) Elements {
	return Elements{A: a, E: e, I: Deg2rad(i), RAAN: Deg2rad(Ω), ArgPeriapsis: Deg2rad(ω), TrueAnomaly: Deg2rad(ν)}
}

// NewOrbitFromElements creates an ECEF orbit from inertial elements, at a time where
// the inertial and ECEF frames coincide.
func NewOrbitFromElements(model GravityModel, nsGPSTime uint64, el Elements, earthRate r3.Vec) Orbit {
	R, V := el.RV(EarthGM)
	return NewOrbit(model, nsGPSTime, R, r3.Sub(V, r3.Cross(earthRate, R)))
}
