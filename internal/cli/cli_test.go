package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/gilt/pkg/cache"
	"github.com/matzehuels/gilt/pkg/errors"
	"github.com/matzehuels/gilt/pkg/manifest"
)

const testManifest = `
- git: https://github.com/retr0h/ansible-etcd.git
  version: 77a95b7
  dst: roles/retr0h.ansible-etcd/
- git: https://github.com/lorin/openstack-ansible-modules.git
  version: 2677cc3
  files:
    - src: "*_manage"
      dst: library
`

// newTestCLI returns a CLI writing command output to the returned buffer,
// running in a fresh working directory with a private base directory.
func newTestCLI(t *testing.T) (*CLI, *bytes.Buffer, string) {
	t.Helper()
	wd := t.TempDir()
	t.Chdir(wd)
	t.Setenv(manifest.EnvBaseDir, filepath.Join(wd, ".gilt"))

	var out bytes.Buffer
	c := New(io.Discard, LogInfo)
	c.stdout = &out
	return c, &out, wd
}

func execute(t *testing.T, c *CLI, args ...string) error {
	t.Helper()
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestConfigBaseDir(t *testing.T) {
	c, _, wd := newTestCLI(t)

	cfg, err := c.config()
	if err != nil {
		t.Fatalf("config() error: %v", err)
	}
	if want := filepath.Join(wd, ".gilt"); cfg.BaseDir != want {
		t.Errorf("BaseDir from env = %q, want %q", cfg.BaseDir, want)
	}
	if cfg.Lookup == nil {
		t.Error("Lookup should default to the environment")
	}

	c.baseDir = "/srv/gilt"
	cfg, err = c.config()
	if err != nil {
		t.Fatalf("config() error: %v", err)
	}
	if cfg.BaseDir != "/srv/gilt" {
		t.Errorf("BaseDir from flag = %q, want %q", cfg.BaseDir, "/srv/gilt")
	}
}

func TestMirrorsPath(t *testing.T) {
	c, out, _ := newTestCLI(t)

	if err := execute(t, c, "--gilt-dir", "/srv/gilt", "mirrors", "path"); err != nil {
		t.Fatalf("mirrors path error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "/srv/gilt" {
		t.Errorf("mirrors path = %q, want %q", got, "/srv/gilt")
	}
}

func TestMirrorsClear(t *testing.T) {
	c, _, wd := newTestCLI(t)
	base := filepath.Join(wd, ".gilt")

	for _, dir := range []string{
		"clone/github.com/retr0h.ansible-etcd/.git",
		"clone/github.com/lorin.openstack-ansible-modules",
		"lock/github.com",
		"state",
		"keep",
	} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	n, err := countMirrors(filepath.Join(base, "clone"))
	if err != nil || n != 2 {
		t.Fatalf("countMirrors() = %d, %v, want 2", n, err)
	}

	if err := execute(t, c, "mirrors", "clear"); err != nil {
		t.Fatalf("mirrors clear error: %v", err)
	}
	for _, dir := range []string{"clone", "lock", "state"} {
		if _, err := os.Stat(filepath.Join(base, dir)); !os.IsNotExist(err) {
			t.Errorf("%s still exists after clear", dir)
		}
	}
	if _, err := os.Stat(filepath.Join(base, "keep")); err != nil {
		t.Errorf("unrelated directory removed: %v", err)
	}
}

func TestCountMirrorsMissing(t *testing.T) {
	n, err := countMirrors(filepath.Join(t.TempDir(), "nope"))
	if err != nil || n != 0 {
		t.Errorf("countMirrors(missing) = %d, %v, want 0, nil", n, err)
	}
}

func TestGraphDOT(t *testing.T) {
	c, out, wd := newTestCLI(t)
	if err := os.WriteFile(filepath.Join(wd, manifest.DefaultFile), []byte(testManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, c, "graph"); err != nil {
		t.Fatalf("graph error: %v", err)
	}
	dot := out.String()
	for _, want := range []string{
		"digraph gilt",
		`retr0h.ansible-etcd\n@77a95b7`,
		`"dst:library"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("graph output missing %q:\n%s", want, dot)
		}
	}
}

func TestGraphUnknownFormat(t *testing.T) {
	c, _, _ := newTestCLI(t)
	err := execute(t, c, "graph", "--format", "png")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("graph --format png error = %v, want unknown format", err)
	}
}

func TestOverlayMissingManifest(t *testing.T) {
	c, _, _ := newTestCLI(t)
	err := execute(t, c, "overlay", "-c", "missing.yml")
	if !errors.Is(err, errors.ErrCodeManifestNotFound) {
		t.Errorf("overlay error = %v, want MANIFEST_NOT_FOUND", err)
	}
}

func TestOverlayNegativeJobs(t *testing.T) {
	c, _, _ := newTestCLI(t)
	if err := execute(t, c, "overlay", "-j", "-1"); err == nil {
		t.Error("overlay -j -1 should fail")
	}
}

func TestStatusRows(t *testing.T) {
	ctx := context.Background()
	wd := t.TempDir()
	cfg := manifest.Config{BaseDir: filepath.Join(wd, ".gilt"), WorkDir: wd}
	deps, err := manifest.Parse([]byte(testManifest), manifest.FormatYAML, cfg)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if err := os.MkdirAll(deps[0].MirrorDir, 0o755); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state, err := cache.NewFileCache(filepath.Join(wd, "state"))
	if err != nil {
		t.Fatal(err)
	}
	err = cache.PutSyncRecord(ctx, state, cache.SyncRecord{
		Name:     deps[0].Name,
		Version:  "77a95b7",
		Commit:   "77a95b7d5e1f0000000000000000000000000000",
		SyncedAt: now.Add(-2 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, synced := statusRows(ctx, deps, state, wd, now)
	want := [][]string{
		{"retr0h.ansible-etcd", "77a95b7", "extract", "roles/retr0h.ansible-etcd", "present", "77a95b7", "2h ago"},
		{"lorin.openstack-ansible-modules", "2677cc3", "overlay", "library", "missing", "—", "never"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("statusRows() mismatch (-want +got):\n%s", diff)
	}
	if synced != 1 {
		t.Errorf("synced = %d, want 1", synced)
	}

	table := renderStatusTable(rows)
	if !strings.Contains(table, "Dependency") || !strings.Contains(table, "retr0h.ansible-etcd") {
		t.Errorf("renderStatusTable() missing content:\n%s", table)
	}
}

func TestStatusRowsStale(t *testing.T) {
	ctx := context.Background()
	wd := t.TempDir()
	cfg := manifest.Config{BaseDir: filepath.Join(wd, ".gilt"), WorkDir: wd}
	deps, err := manifest.Parse([]byte(testManifest), manifest.FormatYAML, cfg)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	state, err := cache.NewFileCache(filepath.Join(wd, "state"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.PutSyncRecord(ctx, state, cache.SyncRecord{Name: deps[1].Name, Version: "v1.0"}); err != nil {
		t.Fatal(err)
	}

	rows, synced := statusRows(ctx, deps, state, wd, time.Now())
	if got := rows[1][6]; got != "stale (v1.0)" {
		t.Errorf("synced column = %q, want %q", got, "stale (v1.0)")
	}
	if synced != 0 {
		t.Errorf("synced = %d, want 0", synced)
	}
}

func TestRelPath(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"/work", "/work/roles/etcd", "roles/etcd"},
		{"/work", "/work/library/", "library/"},
		{"/work", "/elsewhere/x", "/elsewhere/x"},
		{"/work", "/work", "."},
	}
	for _, tt := range tests {
		if got := relPath(tt.base, tt.path); got != tt.want {
			t.Errorf("relPath(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{49 * time.Hour, "2d ago"},
		{30 * 24 * time.Hour, "May 11, 2025"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("formatRelativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestOverlayHelpDocumentsCommandDirs(t *testing.T) {
	c := New(io.Discard, LogInfo)
	long := c.overlayCommand().Long
	for _, want := range []string{"with dst: in dst", "in the file's dst", "current working directory"} {
		if !strings.Contains(long, want) {
			t.Errorf("overlay help missing %q", want)
		}
	}
}
