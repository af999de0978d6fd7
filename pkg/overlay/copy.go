package overlay

import (
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/gilt/pkg/errors"
)

// Mapping selects Src, relative to the mirror root, and places it at Dst.
// Src may contain '*' wildcards. A Dst ending in a path separator names a
// directory to copy into.
type Mapping struct {
	Src string
	Dst string
}

// Stats counts what a copy did.
type Stats struct {
	Copied  int // Files and symlinks written
	Skipped int // Files already up to date
}

// Copier applies mappings with merge-copy semantics.
type Copier struct {
	// Tolerance is how much newer a source must be than an existing
	// destination before it is copied again.
	Tolerance time.Duration
	Logger    *log.Logger
}

// Apply copies m.Src from the mirror at mirrorDir to m.Dst.
//
// A wildcard Src copies every match into the directory Dst, which is created
// when missing; no matches is logged and is not an error. A plain Src must
// exist.
func (c *Copier) Apply(mirrorDir string, m Mapping) (Stats, error) {
	var st Stats

	if !strings.Contains(m.Src, "*") {
		src := filepath.Join(mirrorDir, filepath.FromSlash(m.Src))
		if _, err := os.Lstat(src); err != nil {
			return st, errors.Wrap(errors.ErrCodeFilesystem, err, "source %s", m.Src)
		}
		err := c.copyPath(src, m.Dst, &st)
		return st, err
	}

	pattern := path.Clean(filepath.ToSlash(m.Src))
	matches, err := doublestar.Glob(os.DirFS(mirrorDir), pattern)
	if err != nil {
		return st, errors.Wrap(errors.ErrCodeInvalidPath, err, "pattern %s", m.Src)
	}
	sort.Strings(matches)

	n := 0
	for _, match := range matches {
		if isGitPath(match) {
			continue
		}
		if n == 0 {
			if err := os.MkdirAll(m.Dst, 0755); err != nil {
				return st, errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", m.Dst)
			}
		}
		n++
		src := filepath.Join(mirrorDir, filepath.FromSlash(match))
		dst := filepath.Join(m.Dst, filepath.Base(src))
		if err := c.copyPath(src, dst, &st); err != nil {
			return st, err
		}
	}
	if n == 0 {
		c.logger().Warn("pattern matched nothing", "src", m.Src)
	}
	return st, nil
}

// copyPath copies a file, symlink or directory tree from src to dst.
func (c *Copier) copyPath(src, dst string, st *Stats) error {
	info, err := os.Lstat(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "stat %s", src)
	}

	if info.IsDir() {
		if di, err := os.Stat(dst); err == nil && !di.IsDir() {
			return errors.New(errors.ErrCodeFilesystem, "cannot overlay directory %s onto file %s", src, dst)
		}
		return c.mergeDir(src, dst, st)
	}

	if intoDir(dst) {
		if err := os.MkdirAll(dst, 0755); err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", dst)
		}
		dst = filepath.Join(dst, filepath.Base(src))
	} else if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", filepath.Dir(dst))
	}
	return c.copyEntry(src, dst, info, st)
}

// mergeDir merges the tree at src into dst. Files present only in dst are
// left alone.
func (c *Copier) mergeDir(src, dst string, st *Stats) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "walk %s", path)
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "relative path of %s", path)
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "stat %s", path)
		}
		if d.IsDir() {
			if ti, err := os.Stat(target); err == nil && !ti.IsDir() {
				return errors.New(errors.ErrCodeFilesystem, "cannot overlay directory %s onto file %s", path, target)
			}
			if err := os.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
				return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", target)
			}
			return nil
		}
		return c.copyEntry(path, target, info, st)
	})
}

// copyEntry writes a single file or symlink.
func (c *Copier) copyEntry(src, dst string, info fs.FileInfo, st *Stats) error {
	if info.Mode()&fs.ModeSymlink != 0 {
		return c.copySymlink(src, dst, st)
	}
	if !info.Mode().IsRegular() {
		c.logger().Debug("skipping irregular file", "path", src)
		return nil
	}

	if di, err := os.Lstat(dst); err == nil {
		if di.IsDir() {
			return errors.New(errors.ErrCodeFilesystem, "cannot overlay file %s onto directory %s", src, dst)
		}
		if di.Mode().IsRegular() && !info.ModTime().After(di.ModTime().Add(c.Tolerance)) {
			st.Skipped++
			return nil
		}
	}

	if err := copyFile(src, dst, info); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "copy %s to %s", src, dst)
	}
	st.Copied++
	return nil
}

func (c *Copier) copySymlink(src, dst string, st *Stats) error {
	target, err := os.Readlink(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "read link %s", src)
	}
	if existing, err := os.Readlink(dst); err == nil && existing == target {
		st.Skipped++
		return nil
	}
	if di, err := os.Lstat(dst); err == nil {
		if di.IsDir() {
			return errors.New(errors.ErrCodeFilesystem, "cannot overlay link %s onto directory %s", src, dst)
		}
		if err := os.Remove(dst); err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "replace %s", dst)
		}
	}
	if err := os.Symlink(target, dst); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "link %s", dst)
	}
	st.Copied++
	return nil
}

func (c *Copier) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// copyFile writes src to dst through a temporary file in dst's directory,
// then applies the source mode and modification time.
func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".gilt-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(tmp.Name(), info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// intoDir reports whether dst names a directory to copy into.
func intoDir(dst string) bool {
	if strings.HasSuffix(dst, string(filepath.Separator)) || strings.HasSuffix(dst, "/") {
		return true
	}
	info, err := os.Stat(dst)
	return err == nil && info.IsDir()
}

func isGitPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".git" {
			return true
		}
	}
	return false
}
