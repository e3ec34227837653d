package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/hll"
)

// Binary snapshot layout: magic, variant tag, flags, precision, the length of
// the uncompressed state as big-endian uint32, then the state itself or its
// LZ4 block.
const (
	binaryMagic      = "DCS1"
	binaryHeaderSize = len(binaryMagic) + 3 + 4

	// flagLZ4 marks an LZ4-compressed state block.
	flagLZ4 = 1 << 0

	minPrecision = distinct.MinP
	maxPrecision = distinct.MaxP
)

// BinaryCodec implements Codec for *Snapshot values with a compact binary
// layout. Other state types are rejected with ErrUnsupportedState.
type BinaryCodec struct {
	// Compress enables LZ4 block compression of the register state. States
	// that do not shrink are stored uncompressed.
	Compress bool
}

// Encode implements Codec.Encode.
func (c *BinaryCodec) Encode(w io.Writer, state any) error {
	snapshot, err := asSnapshot(state)
	if err != nil {
		return err
	}

	v, err := snapshot.checkLayout(len(snapshot.State))
	if err != nil {
		return err
	}

	payload, flags := snapshot.State, byte(0)

	if c.Compress {
		compressed, ok := compressState(snapshot.State)
		if ok {
			payload, flags = compressed, flagLZ4
		}
	}

	header := make([]byte, binaryHeaderSize)
	copy(header, binaryMagic)
	header[4] = byte(v)
	header[5] = flags
	header[6] = byte(snapshot.Precision)
	binary.BigEndian.PutUint32(header[7:], uint32(len(snapshot.State)))

	_, err = w.Write(header)
	if err == nil {
		_, err = w.Write(payload)
	}

	if err != nil {
		return fmt.Errorf("binary encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode. state must be a *Snapshot.
func (c *BinaryCodec) Decode(r io.Reader, state any) error {
	snapshot, ok := state.(*Snapshot)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedState, state)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("binary decode: %w", err)
	}

	if len(data) < binaryHeaderSize || !bytes.Equal(data[:len(binaryMagic)], []byte(binaryMagic)) {
		return fmt.Errorf("%w: missing header", ErrCorruptSnapshot)
	}

	v := hll.Variant(data[4])
	flags := data[5]
	precision := int(data[6])
	size := binary.BigEndian.Uint32(data[7:binaryHeaderSize])
	payload := data[binaryHeaderSize:]

	decoded := Snapshot{Variant: v.String(), Precision: precision}

	// Check the declared size before allocating anything for it.
	_, err = decoded.checkLayout(int(size))
	if err != nil {
		return err
	}

	switch {
	case flags&^flagLZ4 != 0:
		return fmt.Errorf("%w: unknown flags %#x", ErrCorruptSnapshot, flags)
	case flags&flagLZ4 != 0:
		decoded.State, err = uncompressState(payload, size)
		if err != nil {
			return err
		}
	default:
		decoded.State = append([]byte(nil), payload...)
	}

	err = decoded.Validate()
	if err != nil {
		return err
	}

	*snapshot = decoded

	return nil
}

// Extension implements Codec.Extension for binary snapshots.
func (c *BinaryCodec) Extension() string {
	return binaryExtension
}

func asSnapshot(state any) (*Snapshot, error) {
	switch s := state.(type) {
	case *Snapshot:
		return s, nil
	case Snapshot:
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedState, state)
	}
}

// compressState returns the LZ4 block of state, or false if it does not
// shrink.
func compressState(state []byte) ([]byte, bool) {
	compressed := make([]byte, lz4.CompressBlockBound(len(state)))

	written, err := lz4.CompressBlock(state, compressed, nil)
	if err != nil || written == 0 || written >= len(state) {
		return nil, false
	}

	return compressed[:written], true
}

func uncompressState(block []byte, size uint32) ([]byte, error) {
	state := make([]byte, size)

	n, err := lz4.UncompressBlock(block, state)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %w", ErrCorruptSnapshot, err)
	}

	if uint32(n) != size {
		return nil, fmt.Errorf("%w: lz4 block holds %d bytes, want %d", ErrCorruptSnapshot, n, size)
	}

	return state, nil
}
