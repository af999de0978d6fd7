// Package manifest loads gilt manifests into dependency descriptors.
//
// A manifest is a list of dependencies. YAML manifests are a top-level
// sequence; TOML manifests (".toml" extension) use a [[dependencies]] array.
// Environment variables are interpolated into the raw text before decoding.
//
//	- git: https://github.com/retr0h/ansible-etcd.git
//	  version: 77a95b7
//	  dst: roles/retr0h.ansible-etcd/
//
//	- git: https://github.com/lorin/openstack-ansible-modules.git
//	  version: 2677cc3
//	  files:
//	    - src: "*_manage"
//	      dst: library/
//	    - src: nova_quota
//	      dst: library/
//	      post_commands:
//	        - make
//
// Every Dependency is built once by Load and not modified afterwards.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/gilt/pkg/errors"
	"github.com/matzehuels/gilt/pkg/giturl"
	"github.com/matzehuels/gilt/pkg/manifest/interpolate"
)

// DefaultFile is the manifest loaded when none is given.
const DefaultFile = "gilt.yml"

// EnvBaseDir overrides the default base directory.
const EnvBaseDir = "GILT_CACHE_DIRECTORY"

// Dependency is one manifest entry with all paths resolved.
type Dependency struct {
	Git          string      // Source URI as written
	Version      string      // Branch, tag or commit
	Name         string      // Resolved name, owner.name or name
	Repo         giturl.Repo // Parsed source identity
	MirrorDir    string      // <base>/clone/<host>/<Name>
	LockFile     string      // <base>/lock/<host>/<Name>
	Target       Target      // What to do with the mirror
	PostCommands []string    // Dependency-level commands
}

// Target is one of Extract, Overlay or Devel.
type Target interface {
	isTarget()
}

// Extract copies the whole tracked tree into Dst, replacing its content.
type Extract struct {
	Dst string
}

// Overlay merges selected paths of the mirror into the working tree.
type Overlay struct {
	Files []File
}

// Devel keeps a working clone directly at Dst.
type Devel struct {
	Dst     string
	Remotes []Remote
}

func (Extract) isTarget() {}
func (Overlay) isTarget() {}
func (Devel) isTarget()   {}

// File maps a path in the mirror onto a destination.
type File struct {
	Src          string   // Relative to the mirror root, may contain '*'
	Dst          string   // Absolute; a trailing separator means "into"
	PostCommands []string // Run in Dst, or Dst's directory for a file
}

// Remote is an extra remote configured on a development checkout.
type Remote struct {
	Name string
	URL  string
}

// Dst returns the destination of an Extract or Devel target, or "" for an
// Overlay.
func (d Dependency) Dst() string {
	switch t := d.Target.(type) {
	case Extract:
		return t.Dst
	case Devel:
		return t.Dst
	}
	return ""
}

// Mode returns "extract", "overlay" or "devel".
func (d Dependency) Mode() string {
	switch d.Target.(type) {
	case Extract:
		return "extract"
	case Overlay:
		return "overlay"
	case Devel:
		return "devel"
	}
	return "unknown"
}

// Config supplies the environment a manifest is resolved in.
type Config struct {
	BaseDir string                 // Root of clone/, lock/ and state/
	WorkDir string                 // Relative destinations resolve here
	Lookup  interpolate.LookupFunc // Variable source (default: os.LookupEnv)
}

// CloneDir returns the directory holding mirrors.
func (c Config) CloneDir() string { return filepath.Join(c.BaseDir, "clone") }

// LockDir returns the directory holding lock files.
func (c Config) LockDir() string { return filepath.Join(c.BaseDir, "lock") }

// StateDir returns the directory holding sync records.
func (c Config) StateDir() string { return filepath.Join(c.BaseDir, "state") }

// DefaultBaseDir returns $GILT_CACHE_DIRECTORY, or ~/.gilt when it is unset.
// A leading "~" is expanded.
func DefaultBaseDir() (string, error) {
	dir := os.Getenv(EnvBaseDir)
	if dir == "" {
		dir = "~/.gilt"
	}
	return expandHome(dir)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load reads, interpolates and decodes the manifest at path.
func Load(path string, cfg Config) ([]Dependency, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeManifestNotFound, "manifest %s not found", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read %s", path)
	}
	return Parse(data, FormatFor(path), cfg)
}

// Parse interpolates and decodes manifest data.
func Parse(data []byte, format Format, cfg Config) ([]Dependency, error) {
	lookup := cfg.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	text, err := interpolate.Interpolate(string(data), lookup)
	if err != nil {
		return nil, err
	}

	raw, err := decode([]byte(text), format)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "manifest declares no dependencies")
	}

	deps := make([]Dependency, 0, len(raw))
	for i, r := range raw {
		dep, err := build(r, cfg)
		if err != nil {
			return nil, entryError(i, r.Git, err)
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func build(r rawDependency, cfg Config) (Dependency, error) {
	if r.Git == "" {
		return Dependency{}, errors.MissingKey("git")
	}
	if r.Version == "" {
		return Dependency{}, errors.MissingKey("version")
	}

	repo, err := giturl.Parse(r.Git)
	if err != nil {
		return Dependency{}, err
	}
	name := repo.ResolvedName()

	dep := Dependency{
		Git:          r.Git,
		Version:      r.Version,
		Name:         name,
		Repo:         repo,
		MirrorDir:    filepath.Join(cfg.CloneDir(), repo.Hostname, name),
		LockFile:     filepath.Join(cfg.LockDir(), repo.Hostname, name),
		PostCommands: r.PostCommands,
	}

	switch {
	case r.Devel && len(r.Files) > 0:
		return Dependency{}, errors.New(errors.ErrCodeInvalidManifest, "devel cannot be combined with files")
	case len(r.Remotes) > 0 && !r.Devel:
		return Dependency{}, errors.New(errors.ErrCodeInvalidManifest, "remotes require devel")
	case len(r.Files) > 0:
		files := make([]File, 0, len(r.Files))
		for _, f := range r.Files {
			if f.Src == "" {
				return Dependency{}, errors.MissingKey("src")
			}
			if f.Dst == "" {
				return Dependency{}, errors.MissingKey("dst")
			}
			if err := errors.ValidatePath(f.Src); err != nil {
				return Dependency{}, err
			}
			files = append(files, File{
				Src:          f.Src,
				Dst:          resolveDst(cfg.WorkDir, f.Dst),
				PostCommands: f.PostCommands,
			})
		}
		dep.Target = Overlay{Files: files}
	case r.Dst == "":
		return Dependency{}, errors.MissingKey("dst")
	case r.Devel:
		remotes := make([]Remote, 0, len(r.Remotes))
		for _, rm := range r.Remotes {
			if rm.Name == "" {
				return Dependency{}, errors.MissingKey("name")
			}
			if rm.URL == "" {
				return Dependency{}, errors.MissingKey("url")
			}
			remotes = append(remotes, Remote{Name: rm.Name, URL: rm.URL})
		}
		dep.Target = Devel{Dst: filepath.Clean(resolveDst(cfg.WorkDir, r.Dst)), Remotes: remotes}
	default:
		dep.Target = Extract{Dst: filepath.Clean(resolveDst(cfg.WorkDir, r.Dst))}
	}
	return dep, nil
}

// resolveDst makes dst absolute against workDir, keeping a trailing
// separator.
func resolveDst(workDir, dst string) string {
	into := strings.HasSuffix(dst, "/") || strings.HasSuffix(dst, string(filepath.Separator))
	p := dst
	if !filepath.IsAbs(p) {
		p = filepath.Join(workDir, p)
	}
	p = filepath.Clean(p)
	if into {
		p += string(filepath.Separator)
	}
	return p
}

// entryError prefixes err's message with the entry it came from, keeping
// its code and key.
func entryError(i int, git string, err error) error {
	where := fmt.Sprintf("entry %d", i+1)
	if git != "" {
		where += fmt.Sprintf(" (%s)", git)
	}

	var e *errors.Error
	if !errors.As(err, &e) {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s", where)
	}
	out := *e
	out.Message = where + ": " + e.Message
	return &out
}
