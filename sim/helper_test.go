package sim

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

// t0 is an arbitrary GPS time, in nanoseconds (mid 2011).
const t0 = uint64(1_000_000_000_000_000_000)

func leo(model orb.GravityModel) orb.Orbit {
	return orb.NewOrbitFromElements(model, t0, orb.NewElements(6.9e6, 0.001, 45, 30, 10, 20), orb.EarthRate())
}

func requireVecWithin(t *testing.T, exp, got r3.Vec, tol float64, what string) {
	t.Helper()
	if d := r3.Norm(r3.Sub(exp, got)); !(d <= tol) {
		t.Fatalf("%s differs by %g (tolerance %g)\nexp %+v\ngot %+v", what, d, tol, exp, got)
	}
}
