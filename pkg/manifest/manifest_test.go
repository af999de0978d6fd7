package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/gilt/pkg/errors"
	"github.com/matzehuels/gilt/pkg/giturl"
)

func testConfig(env map[string]string) Config {
	return Config{
		BaseDir: "/base",
		WorkDir: "/work",
		Lookup: func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		},
	}
}

const yamlManifest = `
- git: https://github.com/retr0h/ansible-etcd.git
  version: ${ETCD_VERSION}
  dst: roles/retr0h.ansible-etcd/

- git: git@github.com:lorin/openstack-ansible-modules.git
  version: 2677cc3
  files:
    - src: "*_manage"
      dst: library/
    - src: nova_quota
      dst: library/
      post_commands:
        - make
  post_commands:
    - make test

- git: https://github.com/example/tool.git
  version: main
  dst: vendor/tool
  devel: true
  remotes:
    - name: upstream
      url: https://github.com/upstream/tool.git
`

const tomlManifestText = `
[[dependencies]]
git = "https://github.com/retr0h/ansible-etcd.git"
version = "${ETCD_VERSION}"
dst = "roles/retr0h.ansible-etcd/"

[[dependencies]]
git = "git@github.com:lorin/openstack-ansible-modules.git"
version = "2677cc3"
post_commands = ["make test"]

  [[dependencies.files]]
  src = "*_manage"
  dst = "library/"

  [[dependencies.files]]
  src = "nova_quota"
  dst = "library/"
  post_commands = ["make"]

[[dependencies]]
git = "https://github.com/example/tool.git"
version = "main"
dst = "vendor/tool"
devel = true

  [[dependencies.remotes]]
  name = "upstream"
  url = "https://github.com/upstream/tool.git"
`

func wantDependencies() []Dependency {
	return []Dependency{
		{
			Git:       "https://github.com/retr0h/ansible-etcd.git",
			Version:   "master",
			Name:      "retr0h.ansible-etcd",
			Repo:      giturl.Repo{Hostname: "github.com", Owner: "retr0h", Name: "ansible-etcd"},
			MirrorDir: "/base/clone/github.com/retr0h.ansible-etcd",
			LockFile:  "/base/lock/github.com/retr0h.ansible-etcd",
			Target:    Extract{Dst: "/work/roles/retr0h.ansible-etcd"},
		},
		{
			Git:       "git@github.com:lorin/openstack-ansible-modules.git",
			Version:   "2677cc3",
			Name:      "lorin.openstack-ansible-modules",
			Repo:      giturl.Repo{Hostname: "github.com", Owner: "lorin", Name: "openstack-ansible-modules"},
			MirrorDir: "/base/clone/github.com/lorin.openstack-ansible-modules",
			LockFile:  "/base/lock/github.com/lorin.openstack-ansible-modules",
			Target: Overlay{Files: []File{
				{Src: "*_manage", Dst: "/work/library/"},
				{Src: "nova_quota", Dst: "/work/library/", PostCommands: []string{"make"}},
			}},
			PostCommands: []string{"make test"},
		},
		{
			Git:       "https://github.com/example/tool.git",
			Version:   "main",
			Name:      "example.tool",
			Repo:      giturl.Repo{Hostname: "github.com", Owner: "example", Name: "tool"},
			MirrorDir: "/base/clone/github.com/example.tool",
			LockFile:  "/base/lock/github.com/example.tool",
			Target: Devel{
				Dst:     "/work/vendor/tool",
				Remotes: []Remote{{Name: "upstream", URL: "https://github.com/upstream/tool.git"}},
			},
		},
	}
}

func TestParse(t *testing.T) {
	cfg := testConfig(map[string]string{"ETCD_VERSION": "master"})

	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"yaml", yamlManifest, FormatYAML},
		{"toml", tomlManifestText, FormatTOML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data), tt.format, cfg)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(wantDependencies(), got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		code    errors.Code
		key     string
		message string
	}{
		{
			name: "missing git",
			data: "- version: master\n  dst: x\n",
			code: errors.ErrCodeMissingKey,
			key:  "git",
		},
		{
			name: "missing version",
			data: "- git: https://github.com/a/b.git\n  dst: x\n",
			code: errors.ErrCodeMissingKey,
			key:  "version",
		},
		{
			name:    "missing dst",
			data:    "- git: https://github.com/a/b.git\n  version: master\n",
			code:    errors.ErrCodeMissingKey,
			key:     "dst",
			message: "entry 1 (https://github.com/a/b.git)",
		},
		{
			name: "empty files needs dst",
			data: "- git: https://github.com/a/b.git\n  version: master\n  files: []\n",
			code: errors.ErrCodeMissingKey,
			key:  "dst",
		},
		{
			name: "file missing src",
			data: "- git: https://github.com/a/b.git\n  version: master\n  files:\n    - dst: x\n",
			code: errors.ErrCodeMissingKey,
			key:  "src",
		},
		{
			name: "file missing dst",
			data: "- git: https://github.com/a/b.git\n  version: master\n  files:\n    - src: x\n",
			code: errors.ErrCodeMissingKey,
			key:  "dst",
		},
		{
			name: "remote missing url",
			data: "- git: https://github.com/a/b.git\n  version: master\n  dst: x\n  devel: true\n  remotes:\n    - name: up\n",
			code: errors.ErrCodeMissingKey,
			key:  "url",
		},
		{
			name: "devel with files",
			data: "- git: https://github.com/a/b.git\n  version: master\n  devel: true\n  files:\n    - src: a\n      dst: b\n",
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "remotes without devel",
			data: "- git: https://github.com/a/b.git\n  version: master\n  dst: x\n  remotes:\n    - name: up\n      url: u\n",
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "src escapes mirror",
			data: "- git: https://github.com/a/b.git\n  version: master\n  files:\n    - src: ../../etc/passwd\n      dst: x\n",
			code: errors.ErrCodeInvalidPath,
		},
		{
			name: "absolute src",
			data: "- git: https://github.com/a/b.git\n  version: master\n  files:\n    - src: /etc/passwd\n      dst: x\n",
			code: errors.ErrCodeInvalidPath,
		},
		{
			name: "unknown key",
			data: "- git: https://github.com/a/b.git\n  version: master\n  dst: x\n  colour: red\n",
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "not a sequence",
			data: "git: https://github.com/a/b.git\n",
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "empty",
			data: "",
			code: errors.ErrCodeInvalidManifest,
		},
		{
			name: "bad interpolation",
			data: "- git: https://github.com/a/b.git\n  version: ${ VERSION}\n  dst: x\n",
			code: errors.ErrCodeInvalidInterpolation,
		},
		{
			name: "bad uri",
			data: "- git: https://github.com/\n  version: master\n  dst: x\n",
			code: errors.ErrCodeInvalidURI,
		},
	}

	cfg := testConfig(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatYAML, cfg)
			if !errors.Is(err, tt.code) {
				t.Fatalf("Parse() error = %v, want code %s", err, tt.code)
			}
			if !errors.IsConfig(err) {
				t.Errorf("IsConfig(%v) = false, want true", err)
			}
			if got := errors.MissingKeyName(err); got != tt.key {
				t.Errorf("MissingKeyName() = %q, want %q", got, tt.key)
			}
			if tt.message != "" && !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q should mention %q", err, tt.message)
			}
		})
	}
}

func TestParseTOMLUnknownKey(t *testing.T) {
	data := "[[dependencies]]\ngit = \"https://github.com/a/b.git\"\nversion = \"master\"\ndst = \"x\"\ncolour = \"red\"\n"
	_, err := Parse([]byte(data), FormatTOML, testConfig(nil))
	if !errors.Is(err, errors.ErrCodeInvalidManifest) {
		t.Errorf("Parse() error = %v, want %s", err, errors.ErrCodeInvalidManifest)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(map[string]string{"ETCD_VERSION": "v1"})

	if _, err := Load(filepath.Join(dir, DefaultFile), cfg); !errors.Is(err, errors.ErrCodeManifestNotFound) {
		t.Fatalf("Load(missing) error = %v, want %s", err, errors.ErrCodeManifestNotFound)
	}

	path := filepath.Join(dir, "gilt.toml")
	if err := os.WriteFile(path, []byte(tomlManifestText), 0644); err != nil {
		t.Fatal(err)
	}
	deps, err := Load(path, cfg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(deps) != 3 || deps[0].Version != "v1" {
		t.Errorf("Load() = %d deps, first version %q", len(deps), deps[0].Version)
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"gilt.yml":       FormatYAML,
		"gilt.yaml":      FormatYAML,
		"gilt.toml":      FormatTOML,
		"conf/GILT.TOML": FormatTOML,
		"manifest":       FormatYAML,
	}
	for path, want := range tests {
		if got := FormatFor(path); got != want {
			t.Errorf("FormatFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestResolveDst(t *testing.T) {
	sep := string(filepath.Separator)
	tests := []struct {
		dst  string
		want string
	}{
		{"roles/etcd", "/work/roles/etcd"},
		{"roles/etcd/", "/work/roles/etcd" + sep},
		{"/abs/path", "/abs/path"},
		{"./a/../b/", "/work/b" + sep},
	}
	for _, tt := range tests {
		if got := resolveDst("/work", tt.dst); got != tt.want {
			t.Errorf("resolveDst(%q) = %q, want %q", tt.dst, got, tt.want)
		}
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv(EnvBaseDir, "/tmp/gilt-base")
	if got, err := DefaultBaseDir(); err != nil || got != "/tmp/gilt-base" {
		t.Errorf("DefaultBaseDir() = %q, %v; want /tmp/gilt-base", got, err)
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvBaseDir, "")
	if got, _ := DefaultBaseDir(); got != filepath.Join(home, ".gilt") {
		t.Errorf("DefaultBaseDir() = %q, want %q", got, filepath.Join(home, ".gilt"))
	}

	t.Setenv(EnvBaseDir, "~/cache")
	if got, _ := DefaultBaseDir(); got != filepath.Join(home, "cache") {
		t.Errorf("DefaultBaseDir() = %q, want %q", got, filepath.Join(home, "cache"))
	}
}

func TestDependencyAccessors(t *testing.T) {
	deps := wantDependencies()
	wantModes := []string{"extract", "overlay", "devel"}
	wantDst := []string{"/work/roles/retr0h.ansible-etcd", "", "/work/vendor/tool"}
	for i, d := range deps {
		if got := d.Mode(); got != wantModes[i] {
			t.Errorf("deps[%d].Mode() = %q, want %q", i, got, wantModes[i])
		}
		if got := d.Dst(); got != wantDst[i] {
			t.Errorf("deps[%d].Dst() = %q, want %q", i, got, wantDst[i])
		}
	}
}
