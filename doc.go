/*
Package orb propagates and estimates the orbit of a low Earth orbit satellite in ECEF.

Orbit is a value holding a position, a velocity and a GPS time. It is propagated
either by ShortUpdate, which spends one gravity call for a step of at most 0.2 s, or
by StartPropagating followed by OneGravCall, which spreads a propagation of any
duration over as many calls as the caller can afford, one gravity evaluation each.
Both integrate the motion relative to a circular reference orbit with a drift-kick-drift
leapfrog, composed into a sixth order scheme for the 100 s long steps.

OrbitEstimate carries the square root of the covariance of an Orbit and implements the
prediction and the GPS position and velocity update of a square root Kalman filter.
GroundPropagator arbitrates between orbits uploaded from the ground, and
GPSPosVelEstimator fuses GPS fixes which arrive late.

Invalid inputs never return errors: they invalidate the orbit, and every later
operation on it is a no-op. Callers check Valid.
*/
package orb
