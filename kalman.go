package orb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Square root covariances are upper triangular matrices S with P = SᵀS.

// UpperTriangularize returns the upper triangular n by n matrix C such that CᵀC = AᵀA,
// where a is m by n with m >= n. The diagonal of C is non-negative.
func UpperTriangularize(a mat.Matrix) *mat.TriDense {
	m, n := a.Dims()
	if m < n {
		panic(fmt.Errorf("orb: cannot triangularize a %dx%d matrix", m, n))
	}
	var qr mat.QR
	qr.Factorize(a)
	var r mat.Dense
	qr.RTo(&r)
	c := mat.NewTriDense(n, mat.Upper, nil)
	for i := 0; i < n; i++ {
		s := 1.0
		if math.Signbit(r.At(i, i)) {
			s = -1
		}
		for j := i; j < n; j++ {
			c.SetTri(i, j, s*r.At(i, j))
		}
	}
	return c
}

// MatrixHypot returns the upper triangular C such that CᵀC = AᵀA + BᵀB.
func MatrixHypot(a, b mat.Matrix) *mat.TriDense {
	var stacked mat.Dense
	stacked.Stack(a, b)
	return UpperTriangularize(&stacked)
}

// CovarianceFromSqrt returns P = SᵀS.
func CovarianceFromSqrt(s mat.Matrix) *mat.SymDense {
	var p mat.SymDense
	p.SymOuterK(1, s.T())
	return &p
}

// PotterUpdate is the square root measurement update for a scalar measurement
// z = hᵀx + noise of variance r. It returns the updated square root covariance and
// state, and leaves its inputs untouched.
func PotterUpdate(sqrtP *mat.TriDense, x, h mat.Vector, z, r float64) (*mat.TriDense, *mat.VecDense) {
	n, _ := sqrtP.Dims()
	var φ mat.VecDense
	φ.MulVec(sqrtP, h)
	α := 1 / (mat.Dot(&φ, &φ) + r)
	β := α / (1 + math.Sqrt(α*r))

	// Uᵀφ is the unscaled gain.
	var uφ mat.VecDense
	uφ.MulVec(sqrtP.T(), &φ)

	var updated mat.Dense
	updated.Outer(-β, &φ, &uφ)
	updated.Add(&updated, sqrtP)

	xNew := mat.NewVecDense(n, nil)
	xNew.CopyVec(x)
	xNew.AddScaledVec(xNew, α*(z-mat.Dot(h, x)), &uφ)
	return UpperTriangularize(&updated), xNew
}
