// Package overlay projects content from a mirror onto destination paths.
//
// Extract replaces a destination with the full tracked tree of a mirror.
// Copier merges selected paths into destinations without ever removing
// destination-only files: a file is written only when it is missing or the
// source is newer than the existing copy. Copies keep the source mode and
// modification time, so a second run with an unchanged mirror writes nothing.
package overlay

import (
	"context"
	"os"
	"path/filepath"

	"github.com/matzehuels/gilt/pkg/errors"
	"github.com/matzehuels/gilt/pkg/git"
)

// Extract replaces dst with every tracked file of the mirror at mirrorDir.
// Any existing content at dst is removed first.
func Extract(ctx context.Context, g git.Git, mirrorDir, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		if err := os.RemoveAll(dst); err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "remove %s", dst)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "stat %s", dst)
	}

	prefix := filepath.Clean(dst) + string(filepath.Separator)
	if err := g.CheckoutIndex(ctx, mirrorDir, prefix); err != nil {
		return errors.Wrap(errors.ErrCodeGit, err, "extract %s into %s", mirrorDir, dst)
	}
	return nil
}
