package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/hll"
	"github.com/Sumatoshi-tech/distinctcount/pkg/persist"
)

// snapshotRef locates a snapshot. A reference with a file extension is a
// path whose extension selects the codec. A bare name refers to a snapshot
// in the configured snapshot directory, written with the configured codec.
type snapshotRef struct {
	persister *persist.Persister[persist.Snapshot]
	codec     persist.Codec
	path      string
	dir       string
}

func (a *app) resolveSnapshot(ref string) (snapshotRef, error) {
	if filepath.Ext(ref) != "" {
		codec, err := persist.CodecForPath(ref)
		if err != nil {
			return snapshotRef{}, err
		}

		return snapshotRef{codec: codec, path: ref}, nil
	}

	if strings.ContainsRune(ref, filepath.Separator) {
		return snapshotRef{}, fmt.Errorf("%w: %q has no extension", persist.ErrUnknownCodec, ref)
	}

	codec, err := persist.CodecByName(a.cfg.Snapshot.Codec, a.cfg.Snapshot.Compress)
	if err != nil {
		return snapshotRef{}, err
	}

	persister := persist.NewPersister[persist.Snapshot](ref, codec)
	dir := a.cfg.Snapshot.Directory

	return snapshotRef{persister: persister, codec: codec, path: persister.Path(dir), dir: dir}, nil
}

func (a *app) sketchOptions() []hll.Option {
	opts := []hll.Option{hll.WithLogger(a.logger)}

	if a.cfg.Sketch.Martingale {
		opts = append(opts, hll.WithMartingale())
	}

	return opts
}

// loadSketch restores the sketch behind ref.
func (a *app) loadSketch(ctx context.Context, ref string) (*hll.Sketch, string, error) {
	target, err := a.resolveSnapshot(ref)
	if err != nil {
		return nil, "", err
	}

	var sketch *hll.Sketch

	restore := func(snap *persist.Snapshot) error {
		var restoreErr error

		sketch, restoreErr = snap.Sketch(a.sketchOptions()...)

		return restoreErr
	}

	if target.persister != nil {
		err = target.persister.Load(target.dir, restore)
	} else {
		var snap persist.Snapshot

		err = persist.LoadFile(target.path, target.codec, &snap)
		if err == nil {
			err = restore(&snap)
		}
	}

	if err != nil {
		return nil, "", fmt.Errorf("load snapshot %s: %w", target.path, err)
	}

	a.logger.DebugContext(ctx, "snapshot loaded",
		"path", target.path, "variant", sketch.Variant().String(), "precision", sketch.Precision())

	return sketch, target.path, nil
}

// saveSketch writes sketch to ref and returns the file path.
func (a *app) saveSketch(ctx context.Context, ref string, sketch *hll.Sketch) (string, error) {
	target, err := a.resolveSnapshot(ref)
	if err != nil {
		return "", err
	}

	if target.persister != nil {
		err = target.persister.Save(target.dir, func() (*persist.Snapshot, error) {
			return persist.NewSnapshot(sketch), nil
		})
	} else {
		err = persist.SaveFile(target.path, target.codec, persist.NewSnapshot(sketch))
	}

	if err != nil {
		return "", fmt.Errorf("save snapshot %s: %w", target.path, err)
	}

	a.logger.DebugContext(ctx, "snapshot saved", "path", target.path, "codec", target.codec.Extension())

	return target.path, nil
}
