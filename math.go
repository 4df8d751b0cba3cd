package orb

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	deg2rad = math.Pi / 180
	// nsPerSecond converts the integer nanosecond clocks to float seconds.
	nsPerSecond = 1e9
)

var nanVec = r3.Vec{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}

// unit returns the unit vector of a given vector, or the zero vector if its norm is nil.
func unit(a r3.Vec) r3.Vec {
	n := r3.Norm(a)
	if scalar.EqualWithinAbs(n, 0, 1e-12) {
		return r3.Vec{}
	}
	return r3.Scale(1/n, a)
}

// sign returns the sign of a given number.
func sign(v float64) float64 {
	if scalar.EqualWithinAbs(v, 0, 1e-12) {
		return 1
	}
	return v / math.Abs(v)
}

// finite returns whether none of the components is NaN or infinite.
func finite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// finiteMatrix returns whether all the elements of m are finite.
func finiteMatrix(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// skew returns the cross product matrix [w]x such that [w]x*v = w x v.
func skew(w r3.Vec) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -w.Z, w.Y,
		w.Z, 0, -w.X,
		-w.Y, w.X, 0})
}

// stateVector stacks position and velocity into a 6x1 vector.
func stateVector(r, v r3.Vec) *mat.VecDense {
	return mat.NewVecDense(6, []float64{r.X, r.Y, r.Z, v.X, v.Y, v.Z})
}

// splitState is the inverse of stateVector.
func splitState(x mat.Vector) (r, v r3.Vec) {
	r = r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	v = r3.Vec{X: x.AtVec(3), Y: x.AtVec(4), Z: x.AtVec(5)}
	return
}

// nanDense returns an r by c matrix filled with NaN.
func nanDense(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = math.NaN()
	}
	return mat.NewDense(r, c, data)
}

// Deg2rad converts degrees to radians, and enforced only positive numbers.
func Deg2rad(a float64) float64 {
	if a < 0 {
		a += 360
	}
	return math.Mod(a*deg2rad, 2*math.Pi)
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}

// eye returns the n by n identity matrix.
func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
