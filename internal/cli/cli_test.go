package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lockmirror/pkg/config"
	lmerrors "github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/integrations/npm"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	for _, name := range []string{"run", "download", "serve", "rewrite", "resolve", "cache", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	for _, flag := range []string{"dir", "config", "no-cache"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `
[download]
dir = "store"

[registry]
port = 9000
`)
	c := New(io.Discard, LogInfo)
	c.dir = dir
	c.noCache = true

	cfg, gotDir, err := c.loadConfig(func(cfg *config.Config) { cfg.Repair.MaxRounds = 7 })
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if gotDir != dir {
		t.Errorf("dir = %q", gotDir)
	}
	if cfg.Download.Dir != filepath.Join(dir, "store") || cfg.Registry.Port != 9000 || cfg.Repair.MaxRounds != 7 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Cache.Backend != config.BackendNone {
		t.Errorf("--no-cache ignored: backend %q", cfg.Cache.Backend)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "[download]\nmirrors = \"x\"\n"},
		{"bad value", "[repair]\nmax_rounds = 0\n"},
		{"bad duration", "[download]\ntimeout = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), tt.content)
			c := New(io.Discard, LogInfo)
			c.dir = dir
			if _, _, err := c.loadConfig(); !lmerrors.Is(err, lmerrors.ErrCodeInvalidConfig) {
				t.Errorf("loadConfig error = %v", err)
			}
		})
	}
}

func TestResolveCommand(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/left-pad" {
			http.NotFound(w, r)
			return
		}
		doc := npm.Packument{Name: "left-pad", Versions: map[string]npm.VersionMeta{}}
		for _, v := range []string{"1.0.0", "1.3.0", "2.0.0"} {
			doc.Versions[v] = npm.VersionMeta{Name: "left-pad", Version: v, Dist: npm.Dist{Tarball: lockfile.TarballURL(srv.URL, "left-pad", v)}}
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	out, err := execute(t, "--dir", dir, "--no-cache", "resolve", "left-pad", "^1.0.0", "--registry", srv.URL)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(out, "left-pad@1.3.0\n") || !strings.Contains(out, srv.URL+"/left-pad/-/left-pad-1.3.0.tgz") {
		t.Errorf("output:\n%s", out)
	}

	_, err = execute(t, "--dir", dir, "--no-cache", "resolve", "left-pad", "^3.0.0", "--registry", srv.URL)
	if !lmerrors.Is(err, lmerrors.ErrCodeUnresolvableRange) {
		t.Errorf("unsatisfiable range error = %v", err)
	}
}

func TestRewriteCommand(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "package-lock.json")
	original := `{
  "lockfileVersion": 3,
  "packages": {
    "": {"name": "app"},
    "node_modules/ms": {"version": "2.1.3", "resolved": "https://registry.npmjs.org/ms/-/ms-2.1.3.tgz"}
  }
}
`
	writeFile(t, lockPath, original)

	if _, err := execute(t, "--dir", dir, "rewrite", "http://127.0.0.1:4874"); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, _ := os.ReadFile(lockPath)
	if !strings.Contains(string(data), "http://127.0.0.1:4874/ms/-/ms-2.1.3.tgz") {
		t.Errorf("lockfile not rewritten:\n%s", data)
	}

	if _, err := execute(t, "--dir", dir, "rewrite", "--restore"); err != nil {
		t.Fatalf("rewrite --restore: %v", err)
	}
	if data, _ := os.ReadFile(lockPath); string(data) != original {
		t.Errorf("lockfile not restored:\n%s", data)
	}
	if _, err := os.Stat(lockPath + lockfile.BackupSuffix); !os.IsNotExist(err) {
		t.Error("backup left behind")
	}
}

func TestCachePathCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), "[cache]\ndir = \"meta-cache\"\n")

	out, err := execute(t, "--dir", dir, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(dir, "meta-cache") {
		t.Errorf("cache path = %q", out)
	}
}

func TestRunCommandWithoutLockfile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), "[registry]\nport = 0\n[report]\nbackend = \"none\"\n")

	_, err := execute(t, "--dir", dir, "--no-cache", "run")
	var exit *ExitError
	if !errors.As(err, &exit) || exit.Code != 2 {
		t.Fatalf("run error = %v", err)
	}
	if !lmerrors.Is(err, lmerrors.ErrCodeNoLockfile) {
		t.Errorf("cause = %v", exit.Err)
	}
}

func TestInstallerExecutorEcho(t *testing.T) {
	var buf bytes.Buffer
	if exec := installerExecutor(false, &buf); exec.Echo != nil {
		t.Errorf("installer output echoed by default: %v", exec.Echo)
	}
	if exec := installerExecutor(true, &buf); exec.Echo != &buf {
		t.Errorf("Echo = %v, want the given writer", exec.Echo)
	}

	run, _, err := New(io.Discard, LogInfo).RootCommand().Find([]string{"run"})
	if err != nil {
		t.Fatal(err)
	}
	if f := run.Flags().Lookup("echo"); f == nil || f.DefValue != "false" {
		t.Errorf("--echo flag = %+v", f)
	}
}

func TestExitError(t *testing.T) {
	if got := (&ExitError{Code: 5}).Error(); got != "exit status 5" {
		t.Errorf("Error() = %q", got)
	}
	cause := lmerrors.New(lmerrors.ErrCodeRepairDivergence, "stuck")
	if err := (&ExitError{Code: 5, Err: cause}); !errors.Is(err, cause) {
		t.Error("ExitError does not unwrap")
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.Logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug logged at info level: %q", buf.String())
	}
	c.SetLogLevel(LogDebug)
	c.Logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug not logged after SetLogLevel: %q", buf.String())
	}

	buf.Reset()
	newProgress(c.Logger).done("download finished")
	if !strings.Contains(buf.String(), "download finished (") {
		t.Errorf("progress output = %q", buf.String())
	}
}
