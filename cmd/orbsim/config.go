package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

// scenario is a validated simulation configuration.
type scenario struct {
	start     time.Time
	duration  time.Duration
	tick      time.Duration
	truthStep time.Duration
	seed      uint64

	elements orb.Elements
	gravity  string

	estimator   orb.GPSEstimatorConfig
	initialσR   float64
	initialσV   float64
	gpsPeriod   time.Duration
	gpsLatency  time.Duration
	gpsσR       float64
	gpsσV       float64
	ground      bool
	groundEvery time.Duration
	groundDelay time.Duration
	groundσR    float64
	groundσV    float64
	callsOnTick int

	maneuvers []maneuverConfig

	csvPath  string
	pngPath  string
	csvEvery time.Duration
	listen   string
}

// maneuverConfig is a burn of the [[maneuvers]] array, at an offset from the start.
type maneuverConfig struct {
	At        time.Duration `mapstructure:"at"`
	Duration  time.Duration `mapstructure:"duration"`
	Direction []float64     `mapstructure:"direction"`
	Thrust    float64       `mapstructure:"thrust"`
	Isp       float64       `mapstructure:"isp"`
}

func (m maneuverConfig) direction() r3.Vec {
	return r3.Vec{X: m.Direction[0], Y: m.Direction[1], Z: m.Direction[2]}
}

// setDefaults sets a default for every key, so that an empty scenario runs.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mission.start", "2020-03-14T15:09:26Z")
	v.SetDefault("mission.duration", "30m")
	v.SetDefault("mission.tick", "100ms")
	v.SetDefault("mission.truth_step", "1s")
	v.SetDefault("mission.seed", 1)

	v.SetDefault("orbit.sma", 6.9e6)
	v.SetDefault("orbit.ecc", 0.001)
	v.SetDefault("orbit.inc", 45.0)
	v.SetDefault("orbit.RAAN", 30.0)
	v.SetDefault("orbit.argPeri", 10.0)
	v.SetDefault("orbit.tAnomaly", 20.0)

	v.SetDefault("estimator.gravity", "zonal")
	v.SetDefault("estimator.slack", 10)
	v.SetDefault("estimator.process_noise_r", 1e-3)
	v.SetDefault("estimator.process_noise_v", 1e-4)
	v.SetDefault("estimator.initial_sigma_r", 20.0)
	v.SetDefault("estimator.initial_sigma_v", 0.2)

	v.SetDefault("gps.period", "1s")
	v.SetDefault("gps.latency", "300ms")
	v.SetDefault("gps.sigma_r", 5.0)
	v.SetDefault("gps.sigma_v", 0.05)

	v.SetDefault("ground.enabled", true)
	v.SetDefault("ground.period", "10m")
	v.SetDefault("ground.delay", "2m")
	v.SetDefault("ground.sigma_r", 50.0)
	v.SetDefault("ground.sigma_v", 0.05)
	v.SetDefault("ground.calls_per_tick", 3)

	v.SetDefault("output.csv", "")
	v.SetDefault("output.png", "")
	v.SetDefault("output.every", "10s")
	v.SetDefault("metrics.listen", "")
}

// loadScenario reads the TOML scenario at path, if any, with ORBSIM_ environment
// overrides (ORBSIM_GPS_SIGMA_R overrides gps.sigma_r).
func loadScenario(v *viper.Viper, path string) (scenario, error) {
	setDefaults(v)
	v.SetEnvPrefix("ORBSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		if !strings.HasSuffix(path, ".toml") {
			path += ".toml"
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return scenario{}, fmt.Errorf("%s: %w", path, err)
		}
	}

	var s scenario
	var err error
	if s.start, err = readJDEorTime(v, "mission.start"); err != nil {
		return scenario{}, err
	}
	s.duration = v.GetDuration("mission.duration")
	s.tick = v.GetDuration("mission.tick")
	s.truthStep = v.GetDuration("mission.truth_step")
	s.seed = v.GetUint64("mission.seed")

	s.elements = orb.NewElements(
		v.GetFloat64("orbit.sma"),
		v.GetFloat64("orbit.ecc"),
		v.GetFloat64("orbit.inc"),
		v.GetFloat64("orbit.RAAN"),
		v.GetFloat64("orbit.argPeri"),
		v.GetFloat64("orbit.tAnomaly"),
	)
	s.gravity = strings.ToLower(v.GetString("estimator.gravity"))

	s.estimator = orb.GPSEstimatorConfig{
		Slack:             v.GetInt("estimator.slack"),
		ProcessNoiseR:     v.GetFloat64("estimator.process_noise_r"),
		ProcessNoiseV:     v.GetFloat64("estimator.process_noise_v"),
		MeasurementSigmaR: v.GetFloat64("gps.sigma_r"),
		MeasurementSigmaV: v.GetFloat64("gps.sigma_v"),
	}
	s.initialσR = v.GetFloat64("estimator.initial_sigma_r")
	s.initialσV = v.GetFloat64("estimator.initial_sigma_v")
	s.gpsPeriod = v.GetDuration("gps.period")
	s.gpsLatency = v.GetDuration("gps.latency")
	s.gpsσR = v.GetFloat64("gps.sigma_r")
	s.gpsσV = v.GetFloat64("gps.sigma_v")

	s.ground = v.GetBool("ground.enabled")
	s.groundEvery = v.GetDuration("ground.period")
	s.groundDelay = v.GetDuration("ground.delay")
	s.groundσR = v.GetFloat64("ground.sigma_r")
	s.groundσV = v.GetFloat64("ground.sigma_v")
	s.callsOnTick = v.GetInt("ground.calls_per_tick")

	if err := v.UnmarshalKey("maneuvers", &s.maneuvers); err != nil {
		return scenario{}, fmt.Errorf("maneuvers: %w", err)
	}

	s.csvPath = v.GetString("output.csv")
	s.pngPath = v.GetString("output.png")
	s.csvEvery = v.GetDuration("output.every")
	s.listen = v.GetString("metrics.listen")
	return s, s.validate()
}

// readJDEorTime reads a date given either as a Julian day or as a time.
func readJDEorTime(v *viper.Viper, key string) (time.Time, error) {
	if jde := v.GetFloat64(key); jde != 0 {
		return julian.JDToTime(jde).UTC(), nil
	}
	dt := v.GetTime(key)
	if dt.IsZero() {
		return time.Time{}, fmt.Errorf("%s: cannot read %q as a Julian day or a time", key, v.GetString(key))
	}
	return dt.UTC(), nil
}

// validate returns every problem of the scenario.
func (s scenario) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(!s.start.Before(orb.GPSEpoch), "mission.start: %s precedes the GPS epoch", s.start)
	check(s.duration > 0, "mission.duration: must be positive, got %s", s.duration)
	check(s.tick > 0 && s.tick <= orb.MaxShortTimeStepNs*time.Nanosecond, "mission.tick: must be in (0, %s], got %s", time.Duration(orb.MaxShortTimeStepNs), s.tick)
	check(s.truthStep > 0, "mission.truth_step: must be positive, got %s", s.truthStep)

	r := s.elements.A * (1 - s.elements.E)
	check(s.elements.E >= 0 && s.elements.E < 1, "orbit.ecc: must be in [0, 1), got %f", s.elements.E)
	check(r >= orb.MinOrbitRadius && s.elements.A*(1+s.elements.E) <= orb.MaxOrbitRadius,
		"orbit: radii must stay within [%.0f, %.0f] m", orb.MinOrbitRadius, orb.MaxOrbitRadius)
	_, known := gravityModels[s.gravity]
	check(known, "estimator.gravity: unknown model %q", s.gravity)

	check(s.estimator.Slack >= 1, "estimator.slack: must be at least 1, got %d", s.estimator.Slack)
	check(s.estimator.ProcessNoiseR >= 0 && s.estimator.ProcessNoiseV >= 0, "estimator.process_noise: must not be negative")
	check(s.initialσR > 0 && s.initialσV > 0, "estimator.initial_sigma: must be positive")
	check(s.gpsPeriod >= s.tick, "gps.period: must be at least a tick, got %s", s.gpsPeriod)
	check(s.gpsLatency >= 0, "gps.latency: must not be negative, got %s", s.gpsLatency)
	check(s.gpsσR > 0 && s.gpsσV > 0, "gps.sigma: must be positive")
	if s.ground {
		check(s.groundEvery >= s.tick, "ground.period: must be at least a tick, got %s", s.groundEvery)
		check(s.groundDelay >= 0, "ground.delay: must not be negative, got %s", s.groundDelay)
		check(s.groundσR >= 0 && s.groundσV >= 0, "ground.sigma: must not be negative")
		check(s.callsOnTick >= 1, "ground.calls_per_tick: must be at least 1, got %d", s.callsOnTick)
	}
	for i, m := range s.maneuvers {
		check(m.At >= 0 && m.At <= s.duration, "maneuvers[%d].at: %s is outside of the mission", i, m.At)
		check(m.Duration > 0, "maneuvers[%d].duration: must be positive", i)
		check(m.Thrust > 0 && m.Isp > 0, "maneuvers[%d]: thrust and isp must be positive", i)
		if len(m.Direction) != 3 {
			errs = append(errs, fmt.Errorf("maneuvers[%d].direction: needs 3 components, got %d", i, len(m.Direction)))
			continue
		}
		check(r3.Norm(m.direction()) > 0, "maneuvers[%d].direction: must not be zero", i)
	}
	check(s.csvEvery >= 0, "output.every: must not be negative, got %s", s.csvEvery)
	return errors.Join(errs...)
}
