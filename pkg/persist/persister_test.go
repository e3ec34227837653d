package persist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/hll"
)

func TestPersister_SketchRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{CodecBinary, CodecJSON, CodecGob} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			codec, err := CodecByName(name, true)
			require.NoError(t, err)

			p := NewPersister[Snapshot]("visitors", codec)
			assert.Equal(t, dir+"/visitors"+codec.Extension(), p.Path(dir))

			original, err := hll.New(10, hll.WithVariant(hll.VariantHyperLogLog))
			require.NoError(t, err)

			for i := range 2000 {
				original.AddHash(uint64(i) * 0x9E3779B97F4A7C15)
			}

			err = p.Save(dir, func() (*Snapshot, error) { return NewSnapshot(original), nil })
			require.NoError(t, err)

			var restored *hll.Sketch

			err = p.Load(dir, func(s *Snapshot) error {
				restored, err = s.Sketch()

				return err
			})
			require.NoError(t, err)

			assert.Equal(t, original.Variant(), restored.Variant())
			assert.Equal(t, original.State(), restored.State())
			assert.Equal(t, original.Count(), restored.Count())
		})
	}
}

func TestPersister_CallbackErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	errBuild := errors.New("build failed")
	p := NewPersister[Snapshot]("state", NewJSONCodec())

	err := p.Save(dir, func() (*Snapshot, error) { return nil, errBuild })
	require.ErrorIs(t, err, errBuild)

	require.NoError(t, p.Save(dir, func() (*Snapshot, error) { return sampleSnapshot(), nil }))

	errRestore := errors.New("restore failed")
	err = p.Load(dir, func(*Snapshot) error { return errRestore })
	require.ErrorIs(t, err, errRestore)
}

func TestPersister_LoadMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	p := NewPersister[Snapshot]("missing", NewJSONCodec())

	err := p.Load(dir, func(_ *Snapshot) error { return nil })

	assert.Error(t, err)
}

func TestPersister_SaveInvalidDir(t *testing.T) {
	t.Parallel()

	p := NewPersister[Snapshot]("state", NewJSONCodec())

	err := p.Save("/nonexistent/path", func() (*Snapshot, error) {
		return sampleSnapshot(), nil
	})

	assert.Error(t, err)
}
