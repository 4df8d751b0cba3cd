package orb

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Propagation budget.
const (
	MaxLongTimeStepNs  = 100_000_000_000 // span of one long step
	MaxShortTimeStepNs = 200_000_000     // span of one short step
	LongStepCalls      = 7               // gravity calls in one long step
	MaxShortSteps      = 6               // short steps allowed to cover a remainder
)

// yoshida are the weights of the symmetric 7-stage composition of order 6
// (Yoshida 1990, solution A).
var yoshida = func() [LongStepCalls]float64 {
	const (
		w1 = -1.17767998417887
		w2 = 0.235573213359357
		w3 = 0.784513610477560
	)
	w0 := 1 - 2*(w1+w2+w3)
	return [LongStepCalls]float64{w3, w2, w1, w0, w1, w2, w3}
}()

// scheduleCalls returns the number of gravity calls needed to cover deltaNs.
func scheduleCalls(deltaNs int64) int32 {
	if deltaNs < 0 {
		deltaNs = -deltaNs
	}
	calls := (deltaNs / MaxLongTimeStepNs) * LongStepCalls
	if rem := deltaNs % MaxLongTimeStepNs; rem > 0 {
		if short := (rem + MaxShortTimeStepNs - 1) / MaxShortTimeStepNs; short <= MaxShortSteps {
			calls += short
		} else {
			calls += LongStepCalls
		}
	}
	return int32(calls)
}

// StartPropagating sets the target time of the orbit and the number of gravity calls
// needed to reach it. A long step in flight is always completed, and the new target
// is scheduled after it. earthRate is only used when no propagation is in flight.
// It is a no-op on an invalid orbit.
func (o *Orbit) StartPropagating(targetNs uint64, earthRate r3.Vec) {
	var (
		base  uint64
		calls int32
	)
	switch p := o.phase.(type) {
	case atRest:
		if o.callsLeft == 0 {
			o.earthRate = earthRate
		}
		base = p.t
	case inBlock:
		base = uint64(int64(p.t0) + p.spanNs)
		calls = LongStepCalls - int32(p.stage)
	default:
		return
	}
	o.target = targetNs
	o.callsLeft = calls + scheduleCalls(int64(targetNs-base))
}

// OneGravCall spends at most one gravity call towards the target time.
func (o *Orbit) OneGravCall() {
	if o.callsLeft == 0 {
		return
	}
	switch p := o.phase.(type) {
	case atRest:
		remaining := int64(o.target - p.t)
		if remaining == 0 {
			o.callsLeft = 0
			return
		}
		ref, rel := relativize(p.r, p.v, o.earthRate)
		if o.callsLeft >= LongStepCalls {
			span := remaining
			if span > MaxLongTimeStepNs {
				span = MaxLongTimeStepNs
			} else if span < -MaxLongTimeStepNs {
				span = -MaxLongTimeStepNs
			}
			o.phase = inBlock{t0: p.t, ref: ref, rel: rel, spanNs: span}.advance(o.model)
		} else {
			span := remaining / int64(o.callsLeft)
			rel, _, _ = ref.step(o.model, rel, float64(span)/nsPerSecond)
			r, v := ref.absolute(rel)
			o.phase = atRest{r, v, uint64(int64(p.t) + span)}
		}
	case inBlock:
		o.phase = p.advance(o.model)
	default:
		return
	}
	o.callsLeft--
	o.check()
}

// FinishPropagating spends all the gravity calls left.
func (o *Orbit) FinishPropagating() {
	for o.Valid() && o.callsLeft > 0 {
		o.OneGravCall()
	}
}

// advance runs the next sub-step of the composition, and returns to rest after the last one.
func (b inBlock) advance(model GravityModel) phase {
	span := float64(b.spanNs) / nsPerSecond
	b.rel, _, _ = b.ref.step(model, b.rel, yoshida[b.stage]*span)
	b.stage++
	if b.stage < LongStepCalls {
		return b
	}
	b.rel.tau = span
	r, v := b.ref.absolute(b.rel)
	return atRest{r, v, uint64(int64(b.t0) + b.spanNs)}
}
