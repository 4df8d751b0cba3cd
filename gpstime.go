package orb

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

// GPSEpoch is the origin of the GPS time scale. GPS time has no leap seconds.
var GPSEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// TimeFromGPSNs returns the time of a GPS timestamp in nanoseconds.
func TimeFromGPSNs(ns uint64) time.Time {
	return GPSEpoch.Add(time.Duration(ns))
}

// GPSNsFromTime returns the GPS timestamp of t. It panics if t precedes the GPS epoch.
func GPSNsFromTime(t time.Time) uint64 {
	d := t.Sub(GPSEpoch)
	if d < 0 {
		panic(fmt.Errorf("orb: %s precedes the GPS epoch", t))
	}
	return uint64(d)
}

// JulianDay returns the Julian day of a GPS timestamp.
func JulianDay(ns uint64) float64 {
	return julian.TimeToJD(TimeFromGPSNs(ns))
}

// GreenwichSiderealAngle returns the mean sidereal angle at Greenwich in radians,
// within [0, 2π).
func GreenwichSiderealAngle(ns uint64) float64 {
	seconds := float64(sidereal.Mean(JulianDay(ns)))
	θ := math.Mod(seconds*2*math.Pi/86400, 2*math.Pi)
	if θ < 0 {
		θ += 2 * math.Pi
	}
	return θ
}
