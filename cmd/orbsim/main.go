// Command orbsim runs a closed loop simulation of the flight orbit estimators:
// a truth orbit feeds a GPS receiver and a ground station, whose data the GPS
// estimator and the ground propagator turn into orbit estimates.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/viper"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
	"github.com/pathfinder-for-autonomous-navigation/psim-sub000/internal/metrics"
	"github.com/pathfinder-for-autonomous-navigation/psim-sub000/sim"
)

var (
	scenarioPath string
	debug        bool
)

func init() {
	flag.StringVar(&scenarioPath, "scenario", "", "scenario TOML file, defaults only if unset")
	flag.BoolVar(&debug, "debug", false, "verbose debug")
}

func main() {
	flag.Parse()
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.DefaultCaller)
	if debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	if err := mainErr(logger); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func mainErr(logger kitlog.Logger) error {
	s, err := loadScenario(viper.New(), scenarioPath)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	level.Info(logger).Log("subsys", "conf", "start", s.start, "duration", s.duration, "tick", s.tick, "gravity", s.gravity, "maneuvers", len(s.maneuvers))

	if s.listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(s.listen, mux); err != nil {
				level.Error(logger).Log("subsys", "metrics", "err", err)
			}
		}()
	}

	var records chan sim.Record
	exported := make(chan error, 1)
	if s.csvPath != "" {
		f, err := os.Create(s.csvPath)
		if err != nil {
			return err
		}
		defer f.Close()
		records = make(chan sim.Record, 64)
		go func() {
			exported <- sim.StreamStates(sim.ExportConfig{Every: s.csvEvery, Elements: true}, f, records)
		}()
	} else {
		exported <- nil
	}

	sum, err := run(s, logger, records)
	if exportErr := <-exported; exportErr != nil {
		return fmt.Errorf("%s: %w", s.csvPath, exportErr)
	}
	if err != nil {
		return err
	}
	level.Info(logger).Log("subsys", "astro", "status", "finished", "ticks", sum.ticks, "fused", sum.fused,
		"dropped", sum.dropped, "burns", sum.burns, "err(m)", sum.finalErr,
		"end", orb.TimeFromGPSNs(orb.GPSNsFromTime(s.start)+uint64(s.duration)))

	if s.pngPath != "" {
		if err := plotErrors(sum.history, s.pngPath); err != nil {
			return fmt.Errorf("%s: %w", s.pngPath, err)
		}
		level.Info(logger).Log("subsys", "plot", "saved", s.pngPath)
	}
	return nil
}
