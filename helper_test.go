package orb

import (
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// t0 is an arbitrary GPS time, in nanoseconds.
const t0 = uint64(1_000_000_000_000)

// leo returns a slightly eccentric and inclined orbit at t0.
func leo(model GravityModel) Orbit {
	return NewOrbitFromElements(model, t0, NewElements(6.9e6, 0.001, 45, 30, 10, 20), EarthRate())
}

// requireVecWithin fails if a and b are further apart than tol.
func requireVecWithin(t *testing.T, exp, got r3.Vec, tol float64, what string) {
	t.Helper()
	if d := r3.Norm(r3.Sub(exp, got)); !(d <= tol) {
		t.Fatalf("%s differs by %g (tolerance %g)\nexp %+v\ngot %+v", what, d, tol, exp, got)
	}
}

// anglesEqual returns whether two angles in radians are equal.
func anglesEqual(a, b float64) (bool, error) {
	diff := math.Mod(math.Abs(a-b), 2*math.Pi)
	if diff < angleε || 2*math.Pi-diff < angleε {
		return true, nil
	}
	return false, fmt.Errorf("difference of %3.10f degrees", math.Abs(Rad2deg(diff)))
}
