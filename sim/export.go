package sim

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

// Record is one sample of the simulation. Invalid orbits export as NaN.
type Record struct {
	NsGPSTime uint64
	Truth     orb.Orbit
	Estimate  orb.Orbit
	Sigma     float64 // position standard deviation of the estimate, m
	Ground    orb.Orbit
}

// ExportConfig configures the exporting of the simulation.
type ExportConfig struct {
	Every    time.Duration // minimum time between two rows, zero exports everything
	Elements bool          // append the a, e, i of the truth
}

// Header returns the CSV column names.
func (c ExportConfig) Header() []string {
	h := []string{
		"gps_s", "jd",
		"truth_x", "truth_y", "truth_z",
		"est_x", "est_y", "est_z",
		"est_err", "est_sigma", "ground_err",
	}
	if c.Elements {
		h = append(h, "a", "e", "i_deg")
	}
	return h
}

// StreamStates writes the records from the channel as CSV rows to w, until the
// channel is closed. Positions are in ECI, in meters. The channel is always drained
// so the producer never blocks, and the first write error is returned.
func StreamStates(conf ExportConfig, w io.Writer, records <-chan Record) error {
	cw := csv.NewWriter(w)
	err := cw.Write(conf.Header())
	var prev uint64
	first := true
	for rec := range records {
		if err != nil {
			continue
		}
		// Only write one row per export period.
		if !first && rec.NsGPSTime-prev < uint64(conf.Every) {
			continue
		}
		first = false
		prev = rec.NsGPSTime
		err = cw.Write(conf.row(rec))
	}
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}

func (c ExportConfig) row(rec Record) []string {
	θ := orb.GreenwichSiderealAngle(rec.NsGPSTime)
	truth := eci(rec.Truth, θ)
	est := eci(rec.Estimate, θ)
	row := []string{
		strconv.FormatFloat(float64(rec.NsGPSTime)/1e9, 'f', 3, 64),
		strconv.FormatFloat(orb.JulianDay(rec.NsGPSTime), 'f', 8, 64),
	}
	row = appendVec(row, truth)
	row = appendVec(row, est)
	row = append(row,
		format(distance(rec.Truth, rec.Estimate)),
		format(rec.Sigma),
		format(distance(rec.Truth, rec.Ground)),
	)
	if c.Elements {
		el := rec.Truth.Elements(orb.EarthRate())
		row = append(row, format(el.A), format(el.E), format(orb.Rad2deg(el.I)))
	}
	return row
}

func eci(o orb.Orbit, θ float64) r3.Vec {
	return orb.ECEF2ECI(o.R(), θ)
}

// distance returns the distance between two orbits, NaN unless both are valid and
// at the same time.
func distance(a, b orb.Orbit) float64 {
	if !a.Valid() || !b.Valid() || a.NsGPSTime() != b.NsGPSTime() {
		return math.NaN()
	}
	return r3.Norm(r3.Sub(a.R(), b.R()))
}

func appendVec(row []string, v r3.Vec) []string {
	return append(row, format(v.X), format(v.Y), format(v.Z))
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
