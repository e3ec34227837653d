// Package packedarray provides fixed-bit-width unsigned integer arrays packed
// into plain byte slices.
//
// Elements are stored back to back in little-endian bit order, so an array of
// n elements of width w occupies ceil(n*w/8) bytes. The byte slice is the only
// state: a Handler carries the width and performs index arithmetic, which lets
// callers own, copy and persist the buffer directly.
package packedarray

import (
	"errors"
	"fmt"
	"iter"
)

const (
	// MinBitSize is the smallest supported element width.
	MinBitSize = 1

	// MaxBitSize is the largest supported element width. Elements never span
	// more than two bytes, which keeps every access a 16-bit window.
	MaxBitSize = 8

	// bitsPerByte is the number of bits in one byte.
	bitsPerByte = 8

	// byteShift converts a bit offset into a byte offset.
	byteShift = 3

	// bitOffsetMask extracts the bit offset within a byte.
	bitOffsetMask = 7
)

// ErrInvalidBitSize is returned when the element width is outside [1, 8].
var ErrInvalidBitSize = errors.New("packedarray: bit size must be in [1, 8]")

// Handler reads and writes elements of one fixed width.
type Handler struct {
	bitSize uint
	mask    uint16
}

// New returns a handler for elements of the given width in bits.
func New(bitSize uint) (Handler, error) {
	if bitSize < MinBitSize || bitSize > MaxBitSize {
		return Handler{}, fmt.Errorf("%w: %d", ErrInvalidBitSize, bitSize)
	}

	return Handler{
		bitSize: bitSize,
		mask:    uint16(1)<<bitSize - 1,
	}, nil
}

// MustNew is like New but panics on an invalid width. It is intended for
// package-level handlers with constant widths.
func MustNew(bitSize uint) Handler {
	h, err := New(bitSize)
	if err != nil {
		panic(err)
	}

	return h
}

// BitSize returns the element width in bits.
func (h Handler) BitSize() uint {
	return h.bitSize
}

// NumBytes returns the number of bytes required for length elements.
func (h Handler) NumBytes(length int) int {
	return (length*int(h.bitSize) + bitOffsetMask) >> byteShift
}

// Length returns the largest element count that fits into numBytes bytes.
func (h Handler) Length(numBytes int) int {
	return numBytes * bitsPerByte / int(h.bitSize)
}

// Create allocates a zeroed buffer for length elements.
func (h Handler) Create(length int) []byte {
	return make([]byte, h.NumBytes(length))
}

// Get returns the element at idx.
func (h Handler) Get(buf []byte, idx int) uint64 {
	pos, shift := h.locate(idx)

	return uint64((h.window(buf, pos, shift) >> shift) & h.mask)
}

// Set stores value at idx and returns the previous element. Bits of value
// beyond the element width are discarded.
func (h Handler) Set(buf []byte, idx int, value uint64) uint64 {
	pos, shift := h.locate(idx)
	w := h.window(buf, pos, shift)
	prev := (w >> shift) & h.mask

	w &^= h.mask << shift
	w |= (uint16(value) & h.mask) << shift

	h.store(buf, pos, shift, w)

	return uint64(prev)
}

// Update combines the element at idx with value using combine, stores the
// result and returns the previous element. The element is only written when
// the combined value differs from the previous one.
func (h Handler) Update(buf []byte, idx int, value uint64, combine func(prev, value uint64) uint64) uint64 {
	pos, shift := h.locate(idx)
	w := h.window(buf, pos, shift)
	prev := uint64((w >> shift) & h.mask)

	next := combine(prev, value) & uint64(h.mask)
	if next != prev {
		w &^= h.mask << shift
		w |= uint16(next) << shift
		h.store(buf, pos, shift, w)
	}

	return prev
}

// Clear zeroes all elements.
func (h Handler) Clear(buf []byte) {
	clear(buf)
}

// All iterates over the first length elements in index order.
func (h Handler) All(buf []byte, length int) iter.Seq2[int, uint64] {
	return func(yield func(int, uint64) bool) {
		for i := range length {
			if !yield(i, h.Get(buf, i)) {
				return
			}
		}
	}
}

// Max is a combine function for Update that keeps the larger value.
func Max(prev, value uint64) uint64 {
	return max(prev, value)
}

func (h Handler) locate(idx int) (pos int, shift uint) {
	off := uint(idx) * h.bitSize

	return int(off >> byteShift), off & bitOffsetMask
}

// spans reports whether the element at the given bit shift crosses into the
// next byte.
func (h Handler) spans(shift uint) bool {
	return shift+h.bitSize > bitsPerByte
}

func (h Handler) window(buf []byte, pos int, shift uint) uint16 {
	w := uint16(buf[pos])
	if h.spans(shift) {
		w |= uint16(buf[pos+1]) << bitsPerByte
	}

	return w
}

func (h Handler) store(buf []byte, pos int, shift uint, w uint16) {
	buf[pos] = byte(w)
	if h.spans(shift) {
		buf[pos+1] = byte(w >> bitsPerByte)
	}
}
