package engine

// RandomSingleActivation activates exactly one agent per tick, drawn
// uniformly with replacement from the whole population.
//
// Unlike a full-population scheduler, an agent may go many ticks without
// acting, and the ticks needed to reach steady state grow with the
// population. Experiment drivers scale their tick budget accordingly.
type RandomSingleActivation struct {
	steps int
}

// Step activates one agent of m and counts the step. The step is counted
// only if the activation succeeds.
func (s *RandomSingleActivation) Step(m *Model, tick int) error {
	a := m.agents[m.rng.IntN(len(m.agents))]
	if err := a.step(tick); err != nil {
		return err
	}
	s.steps++
	return nil
}

// Steps returns the number of successful activations.
func (s *RandomSingleActivation) Steps() int { return s.steps }
