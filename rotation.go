package orb

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

// EarthRate returns the nominal Earth angular rate expressed in ECEF.
func EarthRate() r3.Vec {
	return r3.Vec{Z: EarthRotationRate}
}

// rotate rotates v by the angle |w|*dt about w (right hand rule).
// A nil rate or a nil duration leaves v untouched.
func rotate(v, w r3.Vec, dt float64) r3.Vec {
	n := r3.Norm(w)
	θ := n * dt
	if n == 0 || θ == 0 {
		return v
	}
	k := r3.Scale(1/n, w)
	s, c := math.Sincos(θ)
	// Rodrigues' rotation formula.
	out := r3.Scale(c, v)
	out = r3.Add(out, r3.Scale(s, r3.Cross(k, v)))
	return r3.Add(out, r3.Scale(r3.Dot(k, v)*(1-c), k))
}

// toECEF expresses a vector given in the ECEF0 frame in the ECEF frame, dt seconds
// after both frames coincided. The ECEF frame spins at w with respect to ECEF0.
func toECEF(v, w r3.Vec, dt float64) r3.Vec {
	return rotate(v, w, -dt)
}

// toECEF0 is the inverse of toECEF.
func toECEF0(v, w r3.Vec, dt float64) r3.Vec {
	return rotate(v, w, dt)
}

// rotationMatrix returns the 3x3 matrix M such that M*v = toECEF(v, w, dt).
func rotationMatrix(w r3.Vec, dt float64) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for j, e := range []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}} {
		col := toECEF(e, w, dt)
		m.Set(0, j, col.X)
		m.Set(1, j, col.Y)
		m.Set(2, j, col.Z)
	}
	return m
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a 3x3 matrix with a vector.
func MxV33(m mat.Matrix, v r3.Vec) r3.Vec {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// ECI2ECEF converts the provided ECI vector to ECEF for the θgst given in radians.
func ECI2ECEF(R r3.Vec, θgst float64) r3.Vec {
	return MxV33(R3(θgst), R)
}

// ECEF2ECI converts the provided ECEF vector to ECI for the θgst given in radians.
func ECEF2ECI(R r3.Vec, θgst float64) r3.Vec {
	return ECI2ECEF(R, -θgst)
}

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// PQW2ECI converts a perifocal vector to the inertial frame.
func PQW2ECI(i, ω, Ω float64, vI r3.Vec) r3.Vec {
	var m mat.Dense
	m.Product(R3(-Ω), R1(-i), R3(-ω))
	return MxV33(&m, vI)
}
