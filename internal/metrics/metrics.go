// Package metrics exports the work and the health of the orbit estimators to Prometheus.
package metrics

import (
	"errors"
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/spatial/r3"

	orb "github.com/pathfinder-for-autonomous-navigation/psim-sub000"
)

var (
	gravityCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbsim_gravity_calls_total",
			Help: "Total number of gravity model evaluations.",
		},
		[]string{"model"},
	)

	groundCallsLeft = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbsim_ground_calls_left",
			Help: "Gravity calls left per ground propagator slot, -1 for an empty slot.",
		},
		[]string{"slot"},
	)

	gpsMeasurementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbsim_gps_measurements_total",
			Help: "Total number of GPS measurements by outcome.",
		},
		[]string{"status"},
	)

	estimateSigmaMeters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbsim_estimate_position_sigma_meters",
			Help: "Position standard deviation of the best estimate.",
		},
	)

	estimateErrorMeters = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbsim_estimate_position_error_meters",
			Help:    "Distance between the best estimate and the truth.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)
)

// Slot names of the ground propagator, in order.
var slotNames = [3]string{"current", "catching_up", "to_catch_up"}

func init() {
	prometheus.MustRegister(gravityCallsTotal)
	prometheus.MustRegister(groundCallsLeft)
	prometheus.MustRegister(gpsMeasurementsTotal)
	prometheus.MustRegister(estimateSigmaMeters)
	prometheus.MustRegister(estimateErrorMeters)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountingGravity is a gravity model which counts its evaluations.
type CountingGravity struct {
	model   orb.GravityModel
	counter prometheus.Counter
}

// NewCountingGravity wraps model, counting its calls under the given name.
func NewCountingGravity(name string, model orb.GravityModel) *CountingGravity {
	return &CountingGravity{model: model, counter: gravityCallsTotal.WithLabelValues(name)}
}

// Gravity implements the orb.GravityModel interface.
func (c *CountingGravity) Gravity(r r3.Vec) (r3.Vec, float64) {
	c.counter.Inc()
	return c.model.Gravity(r)
}

// ObserveGround records the calls left of every ground propagator slot.
func ObserveGround(g *orb.GroundPropagator) {
	for i, o := range g.Slots() {
		left := -1.0
		if o.Valid() {
			left = float64(o.NumGravCallsLeft())
		}
		groundCallsLeft.WithLabelValues(slotNames[i]).Set(left)
	}
}

// ObserveGPS records the outcome of a GPS measurement input.
func ObserveGPS(err error) {
	status := "fused"
	switch {
	case errors.Is(err, orb.ErrMeasurementOutsideSlack):
		status = "dropped"
	case err != nil:
		status = "rejected"
	}
	gpsMeasurementsTotal.WithLabelValues(status).Inc()
}

// ObserveEstimate records the uncertainty of the estimate and its error to truth.
// Invalid estimates and truths at another time record nothing.
func ObserveEstimate(e *orb.OrbitEstimate, truth orb.Orbit) {
	if !e.Valid() {
		return
	}
	P := e.Covariance()
	estimateSigmaMeters.Set(math.Sqrt(P.At(0, 0) + P.At(1, 1) + P.At(2, 2)))
	if o := e.Orbit(); truth.Valid() && truth.NsGPSTime() == o.NsGPSTime() {
		estimateErrorMeters.Observe(r3.Norm(r3.Sub(o.R(), truth.R())))
	}
}
