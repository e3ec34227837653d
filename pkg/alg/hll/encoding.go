package hll

import (
	"fmt"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
)

// encodingHeaderSize is the length of the variant tag preceding the state.
const encodingHeaderSize = 1

// MarshalBinary implements encoding.BinaryMarshaler. The encoding is the
// variant tag byte followed by the register state.
func (s *Sketch) MarshalBinary() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.counter.State()
	data := make([]byte, encodingHeaderSize, encodingHeaderSize+len(state))
	data[0] = byte(s.variant)

	return append(data, state...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It replaces the
// variant and registers of s; the precision follows from the state length.
// Options given to New are kept, and an attached martingale estimator
// restarts from the decoded registers.
func (s *Sketch) UnmarshalBinary(data []byte) error {
	if len(data) < encodingHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrCorruptEncoding, len(data))
	}

	v := Variant(data[0])
	if !v.valid() {
		return fmt.Errorf("%w: %w: tag %d", ErrCorruptEncoding, ErrUnknownVariant, data[0])
	}

	counter, err := v.wrap(append([]byte(nil), data[encodingHeaderSize:]...))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptEncoding, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.logger == nil {
		s.opts = buildOptions(nil)
	}

	s.counter = counter
	s.variant = v
	s.opts.variant = v

	if s.opts.martingale && s.martingale == nil {
		s.martingale = distinct.NewMartingaleEstimator()
	}

	s.attachObservers()

	return s.resyncLocked()
}

// Decode returns a new sketch from data produced by MarshalBinary.
func Decode(data []byte, opts ...Option) (*Sketch, error) {
	s := &Sketch{opts: buildOptions(opts)}

	err := s.UnmarshalBinary(data)
	if err != nil {
		return nil, err
	}

	return s, nil
}
