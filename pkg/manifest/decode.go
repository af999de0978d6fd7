package manifest

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/gilt/pkg/errors"
)

// Format is a manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from a file name: ".toml" is TOML, anything
// else YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

type rawDependency struct {
	Git          string      `yaml:"git" toml:"git"`
	Version      string      `yaml:"version" toml:"version"`
	Dst          string      `yaml:"dst" toml:"dst"`
	Files        []rawFile   `yaml:"files" toml:"files"`
	PostCommands []string    `yaml:"post_commands" toml:"post_commands"`
	Devel        bool        `yaml:"devel" toml:"devel"`
	Remotes      []rawRemote `yaml:"remotes" toml:"remotes"`
}

type rawFile struct {
	Src          string   `yaml:"src" toml:"src"`
	Dst          string   `yaml:"dst" toml:"dst"`
	PostCommands []string `yaml:"post_commands" toml:"post_commands"`
}

type rawRemote struct {
	Name string `yaml:"name" toml:"name"`
	URL  string `yaml:"url" toml:"url"`
}

type tomlManifest struct {
	Dependencies []rawDependency `toml:"dependencies"`
}

func decode(data []byte, format Format) ([]rawDependency, error) {
	switch format {
	case FormatTOML:
		return decodeTOML(data)
	default:
		return decodeYAML(data)
	}
}

func decodeYAML(data []byte) ([]rawDependency, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw []rawDependency
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse YAML manifest")
	}
	return raw, nil
}

func decodeTOML(data []byte) ([]rawDependency, error) {
	var m tomlManifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse TOML manifest")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "unknown key %q in TOML manifest", undecoded[0].String())
	}
	return m.Dependencies, nil
}
