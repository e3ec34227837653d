// Package hll provides a thread-safe distinct counter keyed by raw bytes.
//
// A Sketch wraps one of the two register layouts of package distinct:
// UltraLogLog (the default, 2^p bytes) or HyperLogLog (6 bits per register).
// Keys are hashed with xxhash before insertion. Optionally a martingale
// estimator follows every insertion, which gives a more accurate count as
// long as all elements are added through the same sketch.
package hll

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/internal/hashutil"
	"github.com/Sumatoshi-tech/distinctcount/pkg/safeconv"
)

const (
	// minPrecision is the minimum allowed precision (2^3 = 8 registers).
	minPrecision = distinct.MinP

	// maxPrecision is the maximum allowed precision (2^26 registers).
	maxPrecision = distinct.MaxP
)

var (
	// ErrPrecisionOutOfRange is returned when precision is not in [3, 26].
	ErrPrecisionOutOfRange = errors.New("hll: precision must be in [3, 26]")

	// ErrVariantMismatch is returned when merging sketches of different variants.
	ErrVariantMismatch = errors.New("hll: cannot merge sketches of different variants")

	// ErrUnknownVariant is returned for an unsupported variant name or tag.
	ErrUnknownVariant = errors.New("hll: unknown variant")

	// ErrCorruptEncoding is returned when binary data cannot be decoded.
	ErrCorruptEncoding = errors.New("hll: corrupt encoding")
)

// Sketch is a thread-safe distinct counter.
type Sketch struct {
	mu         sync.RWMutex
	counter    distinct.Counter
	variant    Variant
	martingale *distinct.MartingaleEstimator
	observer   distinct.StateChangeObserver
	opts       options
}

// Option configures a Sketch.
type Option func(*options)

type options struct {
	variant    Variant
	martingale bool
	observer   distinct.StateChangeObserver
	logger     *slog.Logger
}

// WithVariant selects the register layout. The default is VariantUltraLogLog.
func WithVariant(v Variant) Option {
	return func(o *options) {
		o.variant = v
	}
}

// WithMartingale attaches a martingale estimator, which Count prefers over
// the estimate computed from the registers.
func WithMartingale() Option {
	return func(o *options) {
		o.martingale = true
	}
}

// WithObserver registers an additional observer of register changes.
func WithObserver(observer distinct.StateChangeObserver) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithLogger sets the logger used for merge and downsize events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{variant: VariantUltraLogLog}

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// New creates an empty sketch with the given precision p.
// Precision must be in [3, 26].
func New(precision uint8, opts ...Option) (*Sketch, error) {
	if precision < minPrecision || precision > maxPrecision {
		return nil, ErrPrecisionOutOfRange
	}

	o := buildOptions(opts)

	counter, err := o.variant.create(int(precision))
	if err != nil {
		return nil, err
	}

	return newSketch(counter, o)
}

// FromState creates a sketch of the given variant from a register state,
// which is copied.
func FromState(v Variant, state []byte, opts ...Option) (*Sketch, error) {
	o := buildOptions(opts)
	o.variant = v

	counter, err := v.wrap(append([]byte(nil), state...))
	if err != nil {
		return nil, err
	}

	return newSketch(counter, o)
}

func newSketch(counter distinct.Counter, o options) (*Sketch, error) {
	s := &Sketch{
		counter: counter,
		variant: o.variant,
		opts:    o,
	}

	if o.martingale {
		s.martingale = distinct.NewMartingaleEstimator()

		err := s.resyncLocked()
		if err != nil {
			return nil, err
		}
	}

	s.attachObservers()

	return s, nil
}

// attachObservers sets the observer passed to every insertion.
func (s *Sketch) attachObservers() {
	switch {
	case s.martingale != nil && s.opts.observer != nil:
		s.observer = distinct.ChainObservers(s.martingale, s.opts.observer)
	case s.martingale != nil:
		s.observer = s.martingale
	default:
		s.observer = s.opts.observer
	}
}

// resyncLocked restarts the martingale estimator from the current registers.
// Caller must hold the write lock.
func (s *Sketch) resyncLocked() error {
	if s.martingale == nil {
		return nil
	}

	return s.martingale.Set(s.counter.Estimate(), s.counter.StateChangeProbability())
}

// Add inserts data into the sketch by hashing it with xxhash.
func (s *Sketch) Add(data []byte) {
	s.AddHash(hashutil.Sum64(data))
}

// AddString inserts a string key without copying it.
func (s *Sketch) AddString(key string) {
	s.AddHash(hashutil.SumString(key))
}

// AddHash inserts an element given by a 64-bit hash that is already
// uniformly distributed.
func (s *Sketch) AddHash(hash uint64) {
	s.mu.Lock()
	s.counter.AddWithObserver(hash, s.observer)
	s.mu.Unlock()
}

// Count returns the estimated number of distinct elements, rounded to the
// nearest integer and capped at math.MaxUint64.
func (s *Sketch) Count() uint64 {
	estimate := s.Estimate()

	if estimate >= math.MaxUint64 {
		return math.MaxUint64
	}

	return uint64(math.Round(estimate))
}

// Estimate returns the unrounded distinct count estimate. With an attached
// martingale estimator that estimate is returned, otherwise the default
// estimator of the variant is applied to the registers.
func (s *Sketch) Estimate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.martingale != nil {
		return s.martingale.DistinctCountEstimate()
	}

	return s.counter.Estimate()
}

// EstimateWith applies the named estimator of the sketch's variant. An empty
// name selects the variant default.
func (s *Sketch) EstimateWith(name string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.variant.estimate(s.counter, name)
}

// StateChangeProbability returns the probability that a new distinct
// element changes the registers.
func (s *Sketch) StateChangeProbability() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counter.StateChangeProbability()
}

// Merge adds all elements of other to this sketch. Both sketches must have
// the same variant and other must not have a lower precision. An attached
// martingale estimator restarts from the merged registers.
func (s *Sketch) Merge(other *Sketch) error {
	if other == nil {
		return fmt.Errorf("hll: merge: %w", distinct.ErrNilArgument)
	}

	if other == s {
		return nil
	}

	if s.variant != other.variant {
		return fmt.Errorf("%w: %s into %s", ErrVariantMismatch, other.variant, s.variant)
	}

	// Copy the source first so that two sketches merging into each other
	// never hold both locks.
	src := other.cloneCounter()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.variant.merge(s.counter, src)
	if err != nil {
		return fmt.Errorf("hll: merge: %w", err)
	}

	s.opts.logger.Debug("hll: merged sketch",
		"variant", s.variant.String(),
		"precision", s.counter.Precision(),
		"source_precision", src.Precision())

	return s.resyncLocked()
}

// Downsize returns a copy with the given precision, or with the current one
// if that is already lower.
func (s *Sketch) Downsize(precision uint8) (*Sketch, error) {
	if precision < minPrecision || precision > maxPrecision {
		return nil, ErrPrecisionOutOfRange
	}

	s.mu.RLock()
	counter, err := s.variant.downsize(s.counter, int(precision))
	s.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("hll: downsize: %w", err)
	}

	s.opts.logger.Debug("hll: downsized sketch",
		"variant", s.variant.String(),
		"precision", counter.Precision())

	return newSketch(counter, s.opts)
}

// Reset clears all registers without reallocating them.
func (s *Sketch) Reset() {
	s.mu.Lock()

	s.counter.Reset()

	if s.martingale != nil {
		s.martingale.Reset()
	}

	s.mu.Unlock()
}

// Clone creates a deep copy of the sketch including its martingale state.
func (s *Sketch) Clone() *Sketch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Sketch{
		counter: s.variant.clone(s.counter),
		variant: s.variant,
		opts:    s.opts,
	}

	if s.martingale != nil {
		m := *s.martingale
		c.martingale = &m
	}

	c.attachObservers()

	return c
}

func (s *Sketch) cloneCounter() distinct.Counter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.variant.clone(s.counter)
}

// Precision returns the precision of the sketch.
func (s *Sketch) Precision() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return safeconv.MustIntToUint8(s.counter.Precision())
}

// RegisterCount returns the number of registers (2^p).
func (s *Sketch) RegisterCount() uint {
	return uint(1) << s.Precision()
}

// Variant returns the register layout of the sketch.
func (s *Sketch) Variant() Variant {
	return s.variant
}

// State returns a copy of the register state.
func (s *Sketch) State() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]byte(nil), s.counter.State()...)
}
