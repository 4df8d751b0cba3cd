package orb

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// jacobian returns the sensitivity of a drift-kick-drift step of dt seconds, from
// the ECEF state before the step to the ECEF state after it. Gravity is linearized
// as a point mass about rHalf, the half step position in ECEF0.
//
//	J = T1 · L · T0
//
// T0 moves to ECEF0 (v0 = v + ω×r), L is the leapfrog step with A = G·dt and T1
// rotates back to ECEF and removes the ω×r term.
func jacobian(rHalf r3.Vec, dt float64, earthRate r3.Vec) *mat.Dense {
	G := pointMassGradient(EarthGM, rHalf)
	L := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a := G[i][j] * dt
			L.Set(i, j, a*dt/2)
			L.Set(i, j+3, a*dt*dt/4)
			L.Set(i+3, j, a)
			L.Set(i+3, j+3, a*dt/2)
		}
		L.Set(i, i, L.At(i, i)+1)
		L.Set(i, i+3, L.At(i, i+3)+dt)
		L.Set(i+3, i+3, L.At(i+3, i+3)+1)
	}

	W := skew(earthRate)
	T0 := eye(6)
	T0.Slice(3, 6, 0, 3).(*mat.Dense).Copy(W)

	M := rotationMatrix(earthRate, dt)
	var WM mat.Dense
	WM.Mul(W, M)
	WM.Scale(-1, &WM)
	T1 := mat.NewDense(6, 6, nil)
	T1.Slice(0, 3, 0, 3).(*mat.Dense).Copy(M)
	T1.Slice(3, 6, 3, 6).(*mat.Dense).Copy(M)
	T1.Slice(3, 6, 0, 3).(*mat.Dense).Copy(&WM)

	var J mat.Dense
	J.Product(T1, L, T0)
	return &J
}
