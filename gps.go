package orb

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrMeasurementOutsideSlack is returned for a GPS measurement which cannot be
// placed between the oldest and the newest buffered estimates.
var ErrMeasurementOutsideSlack = errors.New("orb: gps measurement outside of the slack window")

// GPSMeasurement is a position and velocity fix in ECEF.
type GPSMeasurement struct {
	NsGPSTime uint64
	R, V      r3.Vec
}

// GPSEstimatorConfig holds the noise parameters of a GPSPosVelEstimator.
type GPSEstimatorConfig struct {
	Slack             int     // number of buffered estimates
	ProcessNoiseR     float64 // position random walk, m/√s
	ProcessNoiseV     float64 // velocity random walk, m/s/√s
	MeasurementSigmaR float64 // m
	MeasurementSigmaV float64 // m/s
}

// snapshot is a buffered estimate, the Earth rate used to reach it, and the fixes
// stamped after the previous snapshot and no later than t, in time order.
type snapshot struct {
	t         uint64
	est       *OrbitEstimate
	earthRate r3.Vec
	fixes     []GPSMeasurement
}

// GPSPosVelEstimator fuses delayed GPS fixes. It buffers the estimates of the last
// Slack steps with the fixes fused into each of them, so that a fix stamped in the
// past is applied where it belongs and the later estimates are rebuilt from the
// corrected one. The result does not depend on the order the fixes arrive in.
type GPSPosVelEstimator struct {
	cfg     GPSEstimatorConfig
	ring    []snapshot
	newest  int
	count   int
	dropped int
	sqrtR   *mat.DiagDense
	logger  kitlog.Logger
}

// GPSOption configures a GPSPosVelEstimator.
type GPSOption func(*GPSPosVelEstimator)

// WithGPSLogger sets the logger used to report dropped measurements.
func WithGPSLogger(logger kitlog.Logger) GPSOption {
	return func(g *GPSPosVelEstimator) {
		g.logger = logger
	}
}

// NewGPSPosVelEstimator returns an estimator seeded with initial.
func NewGPSPosVelEstimator(initial *OrbitEstimate, cfg GPSEstimatorConfig, opts ...GPSOption) *GPSPosVelEstimator {
	if cfg.Slack < 1 {
		panic(fmt.Errorf("orb: gps estimator slack must be positive, got %d", cfg.Slack))
	}
	sr, sv := cfg.MeasurementSigmaR, cfg.MeasurementSigmaV
	g := &GPSPosVelEstimator{
		cfg:    cfg,
		ring:   make([]snapshot, cfg.Slack),
		sqrtR:  mat.NewDiagDense(6, []float64{sr, sr, sr, sv, sv, sv}),
		logger: kitlog.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.Reset(initial)
	return g
}

// Reset drops every buffered estimate and restarts from initial.
func (g *GPSPosVelEstimator) Reset(initial *OrbitEstimate) {
	for i := range g.ring {
		g.ring[i] = snapshot{}
	}
	g.newest = 0
	g.count = 1
	g.ring[0] = snapshot{t: initial.Orbit().NsGPSTime(), est: initial.Clone()}
}

// Best returns a copy of the newest estimate.
func (g *GPSPosVelEstimator) Best() *OrbitEstimate {
	return g.ring[g.newest].est.Clone()
}

// Dropped returns the number of measurements which could not be used.
func (g *GPSPosVelEstimator) Dropped() int {
	return g.dropped
}

// sqrtQ is the process noise square root for a step of dt seconds.
func (g *GPSPosVelEstimator) sqrtQ(dt float64) *mat.DiagDense {
	s := math.Sqrt(math.Abs(dt))
	qr, qv := g.cfg.ProcessNoiseR*s, g.cfg.ProcessNoiseV*s
	return mat.NewDiagDense(6, []float64{qr, qr, qr, qv, qv, qv})
}

// predict moves e to nowNs with short updates.
func (g *GPSPosVelEstimator) predict(e *OrbitEstimate, nowNs uint64, earthRate r3.Vec) {
	for e.Valid() && e.Orbit().NsGPSTime() != nowNs {
		remaining := int64(nowNs - e.Orbit().NsGPSTime())
		dt := remaining
		if dt > MaxShortTimeStepNs {
			dt = MaxShortTimeStepNs
		} else if dt < -MaxShortTimeStepNs {
			dt = -MaxShortTimeStepNs
		}
		e.Predict(int32(dt), earthRate, g.sqrtQ(float64(dt)/nsPerSecond))
	}
}

// fuse predicts e to the time of m and applies it.
func (g *GPSPosVelEstimator) fuse(e *OrbitEstimate, m GPSMeasurement, earthRate r3.Vec) {
	g.predict(e, m.NsGPSTime, earthRate)
	e.ShortUpdateGPS(0, earthRate, m.R, m.V, g.sqrtQ(0), g.sqrtR)
}

// replay rebuilds the snapshots from the k-th on, each from the one before it.
func (g *GPSPosVelEstimator) replay(k int) {
	for i := k; i < g.count; i++ {
		s := g.at(i)
		next := g.at(i - 1).est.Clone()
		for _, m := range s.fixes {
			g.fuse(next, m, s.earthRate)
		}
		g.predict(next, s.t, s.earthRate)
		s.est = next
	}
}

// at returns the k-th buffered snapshot, 0 being the oldest.
func (g *GPSPosVelEstimator) at(k int) *snapshot {
	n := len(g.ring)
	return &g.ring[(g.newest-g.count+1+k+n)%n]
}

// Step predicts the newest estimate to nowNs and buffers it.
func (g *GPSPosVelEstimator) Step(nowNs uint64, earthRate r3.Vec) error {
	last := g.ring[g.newest]
	if nowNs < last.t {
		return fmt.Errorf("orb: gps estimator step to %d precedes the newest estimate at %d", nowNs, last.t)
	}
	next := last.est.Clone()
	g.predict(next, nowNs, earthRate)
	g.newest = (g.newest + 1) % len(g.ring)
	if g.count < len(g.ring) {
		g.count++
	}
	g.ring[g.newest] = snapshot{t: nowNs, est: next, earthRate: earthRate}
	return nil
}

// Input fuses a GPS fix. The fix must not be older than the oldest buffered estimate
// nor newer than the newest one.
func (g *GPSPosVelEstimator) Input(m GPSMeasurement) error {
	if m.NsGPSTime < g.at(0).t || m.NsGPSTime > g.ring[g.newest].t {
		g.dropped++
		level.Warn(g.logger).Log("subsys", "gps", "status", "dropped", "t", m.NsGPSTime, "err", ErrMeasurementOutsideSlack)
		return ErrMeasurementOutsideSlack
	}

	k := 0
	for g.at(k).t < m.NsGPSTime {
		k++
	}
	s := g.at(k)
	if k == 0 {
		// Nothing is buffered before the oldest estimate.
		g.fuse(s.est, m, s.earthRate)
		g.replay(1)
		return nil
	}
	i := sort.Search(len(s.fixes), func(i int) bool { return s.fixes[i].NsGPSTime > m.NsGPSTime })
	s.fixes = slices.Insert(s.fixes, i, m)
	g.replay(k)
	return nil
}
