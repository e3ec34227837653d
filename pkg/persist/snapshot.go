package persist

import (
	"fmt"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/hll"
)

// Snapshot is the serialized form of a sketch.
type Snapshot struct {
	// Variant is the configuration name of the register layout.
	Variant string `json:"variant" yaml:"variant"`
	// Precision is the precision parameter p.
	Precision int `json:"precision" yaml:"precision"`
	// State is the raw register state.
	State []byte `json:"state" yaml:"state"`
}

// NewSnapshot captures the current state of a sketch.
func NewSnapshot(sk *hll.Sketch) *Snapshot {
	return &Snapshot{
		Variant:   sk.Variant().String(),
		Precision: int(sk.Precision()),
		State:     sk.State(),
	}
}

// Validate checks that the variant is known and the state length matches
// the precision.
func (s *Snapshot) Validate() error {
	_, err := s.checkLayout(len(s.State))

	return err
}

// checkLayout validates the header fields against a state of size bytes.
func (s *Snapshot) checkLayout(size int) (hll.Variant, error) {
	v, err := hll.ParseVariant(s.Variant)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	if s.Precision < minPrecision || s.Precision > maxPrecision {
		return 0, fmt.Errorf("%w: precision %d", ErrCorruptSnapshot, s.Precision)
	}

	if want := v.StateSize(s.Precision); size != want {
		return 0, fmt.Errorf("%w: state has %d bytes, want %d for %s at precision %d",
			ErrCorruptSnapshot, size, want, v, s.Precision)
	}

	return v, nil
}

// Sketch restores a sketch from the snapshot.
func (s *Snapshot) Sketch(opts ...hll.Option) (*hll.Sketch, error) {
	v, err := s.checkLayout(len(s.State))
	if err != nil {
		return nil, err
	}

	return hll.FromState(v, s.State, opts...)
}
