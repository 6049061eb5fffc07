package diff

import (
	"context"
	"io/fs"

	"github.com/pkg/errors"

	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

// defaultFileMode is used when writing a file whose source view does not
// expose permission bits (syncfs.View carries none beyond kind/size/modtime).
const defaultFileMode fs.FileMode = 0o644

// Apply replays an ordered change list, produced by diffing source against
// target, onto target. Changes must be applied in order: a directory Add
// always precedes the Adds of anything it contains, since that is the order
// Diff produces them in. A directory Remove likewise precedes the Removes of
// anything it contained; View.Remove deletes a directory with its contents,
// so those later Removes name paths that are already gone.
func Apply(ctx context.Context, source, target syncfs.View, changes []*Change) error {
	for _, change := range changes {
		if err := applyOne(ctx, source, target, change); err != nil {
			return errors.Wrapf(err, "apply %s %s", change.Kind, change.Path)
		}
	}
	return nil
}

func applyOne(ctx context.Context, source, target syncfs.View, change *Change) error {
	switch change.Kind {
	case Remove:
		return target.Remove(ctx, change.Path)
	case Add, Modify:
		if change.Type == syncfs.EntryDirectory {
			return target.Mkdir(ctx, change.Path)
		}
		data, err := source.ReadFile(ctx, change.Path)
		if err != nil {
			return err
		}
		return target.WriteFile(ctx, change.Path, data, defaultFileMode)
	default:
		return errors.Errorf("unknown change kind %v", change.Kind)
	}
}
