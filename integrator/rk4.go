package integrator

import "fmt"

// RK4 defines a classical fourth order Runge Kutta integrator.
type RK4 struct {
	X0         float64    // The initial x0.
	StepSize   float64    // The step size, may be negative to integrate backward.
	Integrator Integrable // What is to be integrated.
}

// NewRK4 returns a new RK4 integrator instance.
func NewRK4(x0 float64, stepSize float64, inte Integrable) *RK4 {
	if stepSize == 0 {
		panic("integrator: step size may not be zero")
	}
	if inte == nil {
		panic("integrator: integrable may not be nil")
	}
	return &RK4{X0: x0, StepSize: stepSize, Integrator: inte}
}

// Solve runs the integration until the integrable requests a stop.
// Returns the number of iterations performed and the last x_i, or an error
// if the ODE function returned a state of the wrong size.
func (r *RK4) Solve() (uint64, float64, error) {
	const (
		half     = 1 / 2.0
		oneSixth = 1 / 6.0
		oneThird = 1 / 3.0
	)

	h := r.StepSize
	iterNum := uint64(0)
	xi := r.X0
	for !r.Integrator.Stop(iterNum) {
		state := r.Integrator.GetState()
		n := len(state)
		k1 := make([]float64, n)
		// k2, k3, k4 are used as buffers AND result variables.
		k2 := make([]float64, n)
		k3 := make([]float64, n)
		k4 := make([]float64, n)
		tState := make([]float64, n)
		newState := make([]float64, n)

		eval := func(x float64, s []float64) ([]float64, error) {
			d := r.Integrator.Func(x, s)
			if len(d) != n {
				return nil, fmt.Errorf("integrator: derivative has %d elements, state has %d", len(d), n)
			}
			return d, nil
		}

		d, err := eval(xi, state)
		if err != nil {
			return iterNum, xi, err
		}
		for i, y := range d {
			k1[i] = y * h
			tState[i] = state[i] + k1[i]*half
		}
		if d, err = eval(xi+h*half, tState); err != nil {
			return iterNum, xi, err
		}
		for i, y := range d {
			k2[i] = y * h
			tState[i] = state[i] + k2[i]*half
		}
		if d, err = eval(xi+h*half, tState); err != nil {
			return iterNum, xi, err
		}
		for i, y := range d {
			k3[i] = y * h
			tState[i] = state[i] + k3[i]
		}
		if d, err = eval(xi+h, tState); err != nil {
			return iterNum, xi, err
		}
		for i, y := range d {
			k4[i] = y * h
			newState[i] = state[i] + oneSixth*(k1[i]+k4[i]) + oneThird*(k2[i]+k3[i])
		}
		r.Integrator.SetState(iterNum, newState)

		xi += h
		iterNum++ // Don't forget to increment the number of iterations.
	}

	return iterNum, xi, nil
}
