package orb

import (
	"errors"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// OrbitEstimate is an orbit with the square root of its 6x6 covariance, ordered as
// position then velocity, with P = sqrtPᵀ·sqrtP.
// Any non finite value invalidates both the orbit and sqrtP.
type OrbitEstimate struct {
	orbit    Orbit
	sqrtP    *mat.TriDense
	diverged bool
	logger   kitlog.Logger
}

// EstimateOption configures an OrbitEstimate.
type EstimateOption func(*OrbitEstimate)

// WithEstimateLogger sets the logger used to report divergence.
func WithEstimateLogger(logger kitlog.Logger) EstimateOption {
	return func(e *OrbitEstimate) {
		e.logger = logger
	}
}

// NewOrbitEstimate returns the estimate at nsGPSTime of the ECEF state r, v.
// sqrtP is any 6x6 matrix A such that P = AᵀA; it is triangularized if needed.
func NewOrbitEstimate(model GravityModel, nsGPSTime uint64, r, v r3.Vec, sqrtP mat.Matrix, opts ...EstimateOption) *OrbitEstimate {
	if rows, cols := sqrtP.Dims(); rows != 6 || cols != 6 {
		panic("orb: the covariance square root must be 6x6")
	}
	e := &OrbitEstimate{
		orbit:  NewOrbit(model, nsGPSTime, r, v),
		logger: kitlog.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if finiteMatrix(sqrtP) {
		e.sqrtP = UpperTriangularize(sqrtP)
	} else {
		e.sqrtP = mat.NewTriDense(6, mat.Upper, nil)
		e.sqrtP.Copy(sqrtP)
	}
	e.check()
	return e
}

// Clone returns an independent copy of the estimate.
func (e *OrbitEstimate) Clone() *OrbitEstimate {
	sqrtP := mat.NewTriDense(6, mat.Upper, nil)
	sqrtP.Copy(e.sqrtP)
	return &OrbitEstimate{orbit: e.orbit, sqrtP: sqrtP, diverged: e.diverged, logger: e.logger}
}

// Valid returns whether both the orbit and its covariance are sane.
func (e *OrbitEstimate) Valid() bool {
	return e.orbit.Valid() && finiteMatrix(e.sqrtP)
}

// Orbit returns the estimated orbit.
func (e *OrbitEstimate) Orbit() Orbit {
	return e.orbit
}

// SqrtP returns a copy of the upper triangular square root of the covariance.
func (e *OrbitEstimate) SqrtP() *mat.TriDense {
	s := mat.NewTriDense(6, mat.Upper, nil)
	s.Copy(e.sqrtP)
	return s
}

// Covariance returns the 6x6 covariance.
func (e *OrbitEstimate) Covariance() *mat.SymDense {
	return CovarianceFromSqrt(e.sqrtP)
}

// ApplyDeltaV applies an impulsive ECEF velocity change to the estimated orbit.
// The covariance is unchanged.
func (e *OrbitEstimate) ApplyDeltaV(dv r3.Vec) {
	e.orbit.ApplyDeltaV(dv)
	e.check()
}

// check invalidates the whole estimate if any part of it is not sane.
func (e *OrbitEstimate) check() {
	if e.Valid() {
		return
	}
	if !e.diverged {
		level.Warn(e.logger).Log("subsys", "estimate", "status", "diverged", "orbit", e.orbit.Valid())
		e.diverged = true
	}
	e.orbit = Orbit{model: e.orbit.model}
	e.sqrtP.Copy(nanDense(6, 6))
}

// ShortUpdate predicts the estimate dtNs nanoseconds ahead and returns the specific
// energy of the orbit. sqrtQ is the 6x6 square root of the process noise.
// The covariance is propagated as sqrtP ← triangularize([sqrtP·Fᵀ; sqrtQ]).
func (e *OrbitEstimate) ShortUpdate(dtNs int32, earthRate r3.Vec, sqrtQ mat.Matrix) float64 {
	energy, F := e.orbit.ShortUpdateWithJacobian(dtNs, earthRate)
	if !e.orbit.Valid() {
		e.check()
		return energy
	}
	var pf mat.Dense
	pf.Mul(e.sqrtP, F.T())
	if !finiteMatrix(&pf) || !finiteMatrix(sqrtQ) {
		e.sqrtP.Copy(nanDense(6, 6))
		e.check()
		return energy
	}
	e.sqrtP = MatrixHypot(&pf, sqrtQ)
	e.check()
	return energy
}

// Predict is an alias of ShortUpdate.
func (e *OrbitEstimate) Predict(dtNs int32, earthRate r3.Vec, sqrtQ mat.Matrix) float64 {
	return e.ShortUpdate(dtNs, earthRate, sqrtQ)
}

// ShortUpdateGPS predicts the estimate dtNs nanoseconds ahead, then fuses the ECEF
// position r and velocity v measured at the new time. sqrtR is the 6x6 square root
// of the measurement noise.
func (e *OrbitEstimate) ShortUpdateGPS(dtNs int32, earthRate r3.Vec, r, v r3.Vec, sqrtQ, sqrtR mat.Matrix) float64 {
	energy := e.ShortUpdate(dtNs, earthRate, sqrtQ)
	if !e.Valid() {
		return energy
	}
	if err := e.update(stateVector(r, v), sqrtR); err != nil {
		level.Warn(e.logger).Log("subsys", "estimate", "status", "update failed", "err", err)
		e.sqrtP.Copy(nanDense(6, 6))
	}
	e.check()
	return energy
}

// update is the measurement update with H = I:
//
//	[sqrtR   0  ]  QR  [C  D]
//	[sqrtP sqrtP]  ->  [0  S]
//
// where CᵀC = P + R, D = C⁻ᵀP, and S is the posterior square root. The gain is
// K = P(P+R)⁻¹ = (C⁻¹D)ᵀ.
func (e *OrbitEstimate) update(z *mat.VecDense, sqrtR mat.Matrix) error {
	stacked := mat.NewDense(12, 12, nil)
	stacked.Slice(0, 6, 0, 6).(*mat.Dense).Copy(sqrtR)
	stacked.Slice(6, 12, 0, 6).(*mat.Dense).Copy(e.sqrtP)
	stacked.Slice(6, 12, 6, 12).(*mat.Dense).Copy(e.sqrtP)
	if !finiteMatrix(stacked) {
		return errors.New("non finite measurement noise")
	}
	u := mat.DenseCopyOf(UpperTriangularize(stacked))

	C := mat.NewTriDense(6, mat.Upper, nil)
	C.Copy(u.Slice(0, 6, 0, 6))
	D := mat.DenseCopyOf(u.Slice(0, 6, 6, 12))
	var X mat.Dense
	if err := X.Solve(C, D); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return err
		}
	}

	x := stateVector(e.orbit.R(), e.orbit.V())
	var innovation mat.VecDense
	innovation.SubVec(z, x)
	var correction mat.VecDense
	correction.MulVec(X.T(), &innovation)
	x.AddVec(x, &correction)

	r, v := splitState(x)
	e.orbit = NewOrbit(e.orbit.model, e.orbit.NsGPSTime(), r, v)
	S := mat.NewTriDense(6, mat.Upper, nil)
	S.Copy(u.Slice(6, 12, 6, 12))
	e.sqrtP = S
	return nil
}

// ScalarUpdate fuses the scalar measurement z = hᵀ[r; v] + noise of standard deviation σ.
func (e *OrbitEstimate) ScalarUpdate(h mat.Vector, z, σ float64) {
	if !e.Valid() {
		return
	}
	sqrtP, x := PotterUpdate(e.sqrtP, stateVector(e.orbit.R(), e.orbit.V()), h, z, σ*σ)
	r, v := splitState(x)
	e.orbit = NewOrbit(e.orbit.model, e.orbit.NsGPSTime(), r, v)
	e.sqrtP = sqrtP
	e.check()
}
