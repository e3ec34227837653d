package hll

// MartingaleEstimate returns the tracked martingale estimate and whether an
// estimator is attached.
func (s *Sketch) MartingaleEstimate() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.martingale == nil {
		return 0, false
	}

	return s.martingale.DistinctCountEstimate(), true
}

// RegisterEstimate returns the default estimate computed from the registers.
func (s *Sketch) RegisterEstimate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counter.Estimate()
}
