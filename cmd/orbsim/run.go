package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
	"github.com/pathfinder-for-autonomous-navigation/psim-sub000/internal/metrics"
	"github.com/pathfinder-for-autonomous-navigation/psim-sub000/sim"
)

// gravityModels are the models the flight estimators may use.
var gravityModels = map[string]func() orb.GravityModel{
	"pointmass": func() orb.GravityModel { return orb.EarthPointMass() },
	"zonal":     func() orb.GravityModel { return orb.EarthZonal() },
}

// sample is the error of the flight estimates at one tick, in meters.
type sample struct {
	seconds  float64
	estimate float64
	ground   float64
}

// summary describes a finished run.
type summary struct {
	ticks    int
	fused    int
	dropped  int
	burns    int
	finalErr float64
	history  []sample
}

// run simulates the scenario, sending one record per tick to records if it is not nil.
// records is closed on return.
func run(s scenario, logger kitlog.Logger, records chan<- sim.Record) (summary, error) {
	if records != nil {
		defer close(records)
	}
	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	newSource := func() rand.Source { return rand.NewPCG(rng.Uint64(), rng.Uint64()) }

	start := orb.GPSNsFromTime(s.start)
	end := start + uint64(s.duration)
	tick := uint64(s.tick)
	flight := metrics.NewCountingGravity("estimator", gravityModels[s.gravity]())
	groundModel := metrics.NewCountingGravity("ground", gravityModels[s.gravity]())
	truthModel := metrics.NewCountingGravity("truth", orb.EarthZonal())

	mission := sim.NewMissionFromOrbit(
		orb.NewOrbitFromElements(truthModel, start, s.elements, orb.EarthRate()),
		sim.WithStepSize(s.truthStep),
		sim.WithMissionLogger(kitlog.With(logger, "subsys", "truth")),
	)
	for _, m := range s.maneuvers {
		err := mission.Schedule(sim.Maneuver{
			NsGPSTime: start + uint64(m.At),
			Thruster:  sim.NewGenericThruster(m.Thrust, m.Isp),
			Duration:  m.Duration,
			Direction: m.direction(),
		})
		if err != nil {
			return summary{}, err
		}
	}

	// The estimator starts from a poor fix.
	seed := sim.NewGPSReceiver(s.initialσR, s.initialσV, 0, newSource())
	seed.Sample(mission)
	fix := seed.Ready(start)[0]
	sqrtP0 := mat.NewDiagDense(6, []float64{s.initialσR, s.initialσR, s.initialσR, s.initialσV, s.initialσV, s.initialσV})
	estLogger := kitlog.With(logger, "subsys", "estimator")
	initial := orb.NewOrbitEstimate(flight, start, fix.R, fix.V, sqrtP0, orb.WithEstimateLogger(estLogger))
	estimator := orb.NewGPSPosVelEstimator(initial, s.estimator, orb.WithGPSLogger(estLogger))

	receiver := sim.NewGPSReceiver(s.gpsσR, s.gpsσV, s.gpsLatency, newSource())
	ground := orb.NewGroundPropagator(orb.WithGroundLogger(kitlog.With(logger, "subsys", "ground")))
	station := sim.NewGroundStation("ground", groundModel, s.groundσR, s.groundσV, s.groundDelay, newSource())

	var sum summary
	nextFix, nextTrack := start, start
	for now := start + tick; now <= end; now += tick {
		burnsBefore := len(mission.Burns())
		if err := mission.PropagateUntil(now); err != nil {
			level.Warn(logger).Log("subsys", "truth", "err", err)
		}
		// The flight software knows the burns it commanded.
		if burns := mission.Burns(); len(burns) > burnsBefore {
			best := estimator.Best()
			for _, b := range burns[burnsBefore:] {
				best.ApplyDeltaV(b.DeltaVECEF)
			}
			estimator.Reset(best)
			sum.burns += len(burns) - burnsBefore
		}

		if now >= nextFix {
			receiver.Sample(mission)
			nextFix = now + uint64(s.gpsPeriod)
		}
		if err := estimator.Step(now, orb.EarthRate()); err != nil {
			return sum, fmt.Errorf("tick at %d: %w", now, err)
		}
		for _, m := range receiver.Ready(now) {
			err := estimator.Input(m)
			metrics.ObserveGPS(err)
			if err == nil {
				sum.fused++
			}
		}

		if s.ground {
			if now >= nextTrack {
				station.Track(mission)
				nextTrack = now + uint64(s.groundEvery)
			}
			up, err := station.Uplink(now)
			if err != nil {
				up = orb.Orbit{}
			}
			ground.Input(up, now, orb.EarthRate())
			for i := 0; i < s.callsOnTick; i++ {
				ground.OneGravCall()
			}
			metrics.ObserveGround(ground)
		}

		truth := mission.Orbit(flight)
		best := estimator.Best()
		metrics.ObserveEstimate(best, truth)
		rec := sim.Record{NsGPSTime: now, Truth: truth, Estimate: best.Orbit(), Sigma: sigma(best), Ground: ground.BestEstimate()}
		if records != nil {
			records <- rec
		}
		sum.ticks++
		sum.history = append(sum.history, sample{
			seconds:  float64(now-start) / float64(time.Second),
			estimate: distance(rec.Truth, rec.Estimate),
			ground:   distance(rec.Truth, rec.Ground),
		})
	}
	sum.dropped = estimator.Dropped()
	if n := len(sum.history); n > 0 {
		sum.finalErr = sum.history[n-1].estimate
	}
	return sum, nil
}

// sigma returns the position standard deviation of an estimate.
func sigma(e *orb.OrbitEstimate) float64 {
	P := e.Covariance()
	return math.Sqrt(P.At(0, 0) + P.At(1, 1) + P.At(2, 2))
}

func distance(a, b orb.Orbit) float64 {
	if !a.Valid() || !b.Valid() || a.NsGPSTime() != b.NsGPSTime() {
		return math.NaN()
	}
	return r3.Norm(r3.Sub(a.R(), b.R()))
}
