package sim

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distmv"
)

// stateNoise is a zero mean Gaussian on position and velocity.
// A nil stateNoise adds nothing.
type stateNoise struct {
	normal *distmv.Normal
}

// newStateNoise returns the noise of standard deviations σr (m) and σv (m/s).
// Both zero means no noise.
func newStateNoise(σr, σv float64, src rand.Source) stateNoise {
	if σr == 0 && σv == 0 {
		return stateNoise{}
	}
	if σr <= 0 || σv <= 0 {
		panic(fmt.Errorf("sim: noise deviations must be positive, got %f m and %f m/s", σr, σv))
	}
	vr, vv := σr*σr, σv*σv
	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, vr)
		cov.SetSym(i+3, i+3, vv)
	}
	normal, ok := distmv.NewNormal(make([]float64, 6), cov, src)
	if !ok {
		panic(fmt.Errorf("sim: invalid noise covariance for %g m and %g m/s", σr, σv))
	}
	return stateNoise{normal}
}

// add returns r and v with a noise sample.
func (n stateNoise) add(r, v r3.Vec) (r3.Vec, r3.Vec) {
	if n.normal == nil {
		return r, v
	}
	s := n.normal.Rand(nil)
	return r3.Add(r, r3.Vec{X: s[0], Y: s[1], Z: s[2]}), r3.Add(v, r3.Vec{X: s[3], Y: s[4], Z: s[5]})
}
