package orb

import (
	"sort"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/spatial/r3"
)

// groundSlot is an orbit uploaded from the ground.
type groundSlot struct {
	orbit Orbit
	epoch uint64 // GPS time of the uploaded data
	seq   uint64 // arrival order
}

// dominates returns whether s makes o useless: s holds data at least as recent as o
// and will not take longer to catch up. Full ties go to the latest arrival.
func (s groundSlot) dominates(o groundSlot) bool {
	if s.epoch < o.epoch || s.orbit.NumGravCallsLeft() > o.orbit.NumGravCallsLeft() {
		return false
	}
	if s.epoch == o.epoch && s.orbit.NumGravCallsLeft() == o.orbit.NumGravCallsLeft() {
		return s.seq > o.seq
	}
	return true
}

// GroundPropagator propagates orbits uploaded from the ground to the current time.
// It holds three slots: current, which is reported as the best estimate,
// catching_up and to_catch_up. The valid slots are sorted by gravity calls left, so
// current is always the closest to being done.
type GroundPropagator struct {
	slots  [3]groundSlot
	seq    uint64
	logger kitlog.Logger
}

// GroundOption configures a GroundPropagator.
type GroundOption func(*GroundPropagator)

// WithGroundLogger sets the logger used to report slot changes.
func WithGroundLogger(logger kitlog.Logger) GroundOption {
	return func(g *GroundPropagator) {
		g.logger = logger
	}
}

// NewGroundPropagator returns a propagator with three invalid slots.
func NewGroundPropagator(opts ...GroundOption) *GroundPropagator {
	g := &GroundPropagator{logger: kitlog.NewNopLogger()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Input adds the ground orbit if it is valid, and retargets every slot to nowNs.
func (g *GroundPropagator) Input(ground Orbit, nowNs uint64, earthRate r3.Vec) {
	if ground.Valid() {
		i := 0
		for i < len(g.slots)-1 && g.slots[i].orbit.Valid() {
			i++
		}
		if g.slots[i].orbit.Valid() {
			level.Debug(g.logger).Log("subsys", "ground", "evicted", g.slots[i].epoch)
		}
		g.seq++
		g.slots[i] = groundSlot{orbit: ground, epoch: ground.NsGPSTime(), seq: g.seq}
	}
	for i := range g.slots {
		g.slots[i].orbit.StartPropagating(nowNs, earthRate)
	}
	g.sort()
}

// OneGravCall spends one gravity call on current if it needs one, else on catching_up.
func (g *GroundPropagator) OneGravCall() {
	switch {
	case g.slots[0].orbit.NumGravCallsLeft() > 0:
		g.slots[0].orbit.OneGravCall()
	case g.slots[1].orbit.NumGravCallsLeft() > 0:
		g.slots[1].orbit.OneGravCall()
	default:
		return
	}
	g.sort()
}

// sort drops the dominated slots, then orders the valid ones by calls left, the
// invalid ones last.
func (g *GroundPropagator) sort() {
	var dominated [3]bool
	for i := range g.slots {
		for j := range g.slots {
			if i != j && g.slots[i].orbit.Valid() && g.slots[j].orbit.Valid() && g.slots[j].dominates(g.slots[i]) {
				dominated[i] = true
			}
		}
	}
	for i, d := range dominated {
		if d {
			if i == 0 {
				level.Info(g.logger).Log("subsys", "ground", "status", "replaced", "epoch", g.slots[0].epoch)
			}
			g.slots[i] = groundSlot{}
		}
	}
	sort.SliceStable(g.slots[:], func(i, j int) bool {
		a, b := g.slots[i], g.slots[j]
		if a.orbit.Valid() != b.orbit.Valid() {
			return a.orbit.Valid()
		}
		if a.orbit.NumGravCallsLeft() != b.orbit.NumGravCallsLeft() {
			return a.orbit.NumGravCallsLeft() < b.orbit.NumGravCallsLeft()
		}
		return a.epoch > b.epoch
	})
}

// BestEstimate returns the current slot.
func (g *GroundPropagator) BestEstimate() Orbit {
	return g.slots[0].orbit
}

// ResetOrbits invalidates every slot.
func (g *GroundPropagator) ResetOrbits() {
	g.slots = [3]groundSlot{}
}

// Slots returns current, catching_up and to_catch_up.
func (g *GroundPropagator) Slots() [3]Orbit {
	return [3]Orbit{g.slots[0].orbit, g.slots[1].orbit, g.slots[2].orbit}
}
