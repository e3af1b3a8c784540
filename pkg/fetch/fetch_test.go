package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/lockmirror/pkg/config"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
)

// tarballServer serves paths from a fixed table and counts hits per path.
type tarballServer struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	files map[string]string
	fail  map[string]int // status code returned instead of the file
}

func newTarballServer(t *testing.T) *tarballServer {
	t.Helper()
	s := &tarballServer{hits: map[string]int{}, files: map[string]string{}, fail: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.files[r.URL.Path]
		code := s.fail[r.URL.Path]
		s.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *tarballServer) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func testConfig(t *testing.T) config.DownloadConfig {
	t.Helper()
	dir := t.TempDir()
	return config.DownloadConfig{
		Dir:         filepath.Join(dir, "packages"),
		Concurrency: 4,
		Retries:     3,
		RetryDelay:  config.Duration{Duration: time.Millisecond},
		Timeout:     config.Duration{Duration: 5 * time.Second},
		FailureLog:  filepath.Join(dir, "logs", "download.log"),
	}
}

func TestFetchJobs(t *testing.T) {
	mirror, origin := newTarballServer(t), newTarballServer(t)
	mirror.files["/a/-/a-1.0.0.tgz"] = "a"
	origin.files["/b/-/b-1.0.0.tgz"] = "b"
	origin.files["/c/-/c-1.0.0.tgz"] = "c"
	mirror.fail["/c/-/c-1.0.0.tgz"] = http.StatusBadGateway

	job := func(p string) Job {
		return Job{URL: mirror.URL + p, Origin: origin.URL + p}
	}
	jobs := []Job{
		job("/a/-/a-1.0.0.tgz"), // mirror hit
		job("/b/-/b-1.0.0.tgz"), // mirror 404, origin hit
		job("/c/-/c-1.0.0.tgz"), // mirror 5xx until the last attempt
		job("/d/-/d-1.0.0.tgz"), // missing everywhere
		job("/a/-/a-1.0.0.tgz"), // duplicate
	}

	cfg := testConfig(t)
	res, err := New(cfg).FetchJobs(context.Background(), jobs)
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}

	if len(res.Downloaded) != 3 {
		t.Errorf("downloaded = %v, want 3 files", res.Downloaded)
	}
	for _, name := range []string{"a", "b", "c"} {
		data, err := os.ReadFile(filepath.Join(cfg.Dir, name+"-1.0.0.tgz"))
		if err != nil || string(data) != name {
			t.Errorf("%s: content %q, err %v", name, data, err)
		}
	}

	if got := mirror.count("/a/-/a-1.0.0.tgz"); got != 1 {
		t.Errorf("duplicate job fetched %d times", got)
	}
	if got := mirror.count("/b/-/b-1.0.0.tgz"); got != 1 {
		t.Errorf("mirror 404 retried %d times, want 1", got)
	}
	if got := mirror.count("/c/-/c-1.0.0.tgz"); got != 2 {
		t.Errorf("mirror 5xx tried %d times, want 2", got)
	}
	if got := origin.count("/c/-/c-1.0.0.tgz"); got != 1 {
		t.Errorf("origin tried %d times for c, want 1", got)
	}

	if len(res.Failures) != 1 {
		t.Fatalf("failures = %+v, want 1", res.Failures)
	}
	f := res.Failures[0]
	if f.Package != "d" || f.Version != "1.0.0" || f.FallbackURL != origin.URL+"/d/-/d-1.0.0.tgz" {
		t.Errorf("failure = %+v", f)
	}

	logged, err := ReadFailureLog(cfg.FailureLog)
	if err != nil {
		t.Fatal(err)
	}
	if len(logged) != 1 || logged[0].URL != f.URL {
		t.Errorf("failure log = %+v", logged)
	}
	if entries, _ := os.ReadDir(cfg.Dir); len(entries) != 3 {
		t.Errorf("store holds %d entries, want 3 (no temp files)", len(entries))
	}
}

func TestFetchJobsTruncatesFailureLog(t *testing.T) {
	srv := newTarballServer(t)
	srv.files["/a/-/a-1.0.0.tgz"] = "a"

	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.FailureLog), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.FailureLog, []byte(`{"url":"stale"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := New(cfg).FetchJobs(context.Background(), []Job{{URL: srv.URL + "/a/-/a-1.0.0.tgz"}})
	if err != nil || !res.OK() {
		t.Fatalf("FetchJobs: %v %+v", err, res)
	}
	info, err := os.Stat(cfg.FailureLog)
	if err != nil || info.Size() != 0 {
		t.Errorf("failure log should be empty after a clean run: %v %v", info, err)
	}
}

func TestFetchSkipsExisting(t *testing.T) {
	srv := newTarballServer(t)
	srv.files["/a/-/a-1.0.0.tgz"] = "new"

	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfg.Dir, "a-1.0.0.tgz")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := New(cfg).Fetch(context.Background(), []lockfile.ResolvedDependency{
		{Name: "a", Version: "1.0.0", TarballURL: srv.URL + "/a/-/a-1.0.0.tgz"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Existing != 1 || len(res.Downloaded) != 0 {
		t.Errorf("result = %+v", res)
	}
	if data, _ := os.ReadFile(path); string(data) != "old" {
		t.Errorf("existing file overwritten: %q", data)
	}
	if srv.count("/a/-/a-1.0.0.tgz") != 0 {
		t.Error("existing file was downloaded again")
	}
}

func TestFetchJobsRejectsUnsafeFileName(t *testing.T) {
	srv := newTarballServer(t)
	srv.files["/a/-/a-1.0.0.tgz"] = "a"

	cfg := testConfig(t)
	for _, name := range []string{"../escape.tgz", ".."} {
		res, err := New(cfg).FetchJobs(context.Background(), []Job{{URL: srv.URL + "/a/-/a-1.0.0.tgz", FileName: name}})
		if err != nil {
			t.Fatalf("FetchJobs(%q): %v", name, err)
		}
		if len(res.Failures) != 1 || !strings.Contains(res.Failures[0].Error, "INVALID_PATH") {
			t.Errorf("FetchJobs(%q) failures = %+v", name, res.Failures)
		}
	}
	if got := srv.count("/a/-/a-1.0.0.tgz"); got != 0 {
		t.Errorf("unsafe jobs reached the network %d times", got)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(cfg.Dir), "escape.tgz")); !os.IsNotExist(err) {
		t.Error("file written outside the store")
	}
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testConfig(t)).FetchJobs(ctx, []Job{{URL: "http://127.0.0.1:1/a/-/a-1.0.0.tgz"}})
	if err == nil {
		t.Error("expected context error")
	}
}

func TestFileNames(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://r.example/lodash/-/lodash-4.17.21.tgz", "lodash-4.17.21.tgz"},
		{"https://r.example/@babel%2Fcore/-/core-7.24.0.tgz", "core-7.24.0.tgz"},
		{"https://r.example/@babel/core/-/core-7.24.0.tgz", "core-7.24.0.tgz"},
		{"https://r.example/x/-/x-1.0.0", "x-1.0.0.tgz"},
		{"https://r.example/x/-/x(1)@2.tgz", "x_1__2.tgz"},
		{"https://r.example/", ""},
	}
	for _, tt := range tests {
		if got := FileNameFromURL(tt.in); got != tt.want {
			t.Errorf("FileNameFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := SanitizeFileName(`a<b>c:d"e/f\g|h?i*j`); got != "a_b_c_d_e_f_g_h_i_j" {
		t.Errorf("SanitizeFileName = %q", got)
	}
	if got := TarballFileName("@babel/core", "7.24.0"); got != "@babel%2Fcore-7.24.0.tgz" {
		t.Errorf("TarballFileName scoped = %q", got)
	}
	if got := TarballFileName("lodash", "4.17.21"); got != "lodash-4.17.21.tgz" {
		t.Errorf("TarballFileName = %q", got)
	}
}

func TestReadFailureLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download.log")

	got, err := ReadFailureLog(path)
	if err != nil || got != nil {
		t.Fatalf("missing log: %v %v", got, err)
	}

	failures := []Failure{
		{Package: "zeta", URL: "https://m/zeta/-/zeta-1.0.0.tgz", FallbackURL: "https://o/zeta/-/zeta-1.0.0.tgz", Error: "HTTP 502"},
		{Package: "Alpha", URL: "https://m/Alpha/-/Alpha-1.0.0.tgz", FallbackURL: "https://o/Alpha/-/Alpha-1.0.0.tgz", Error: "timeout"},
	}
	if err := WriteFailureLog(path, failures); err != nil {
		t.Fatal(err)
	}
	// Junk and duplicates are ignored.
	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	_, _ = f.WriteString("# note\n" + `{"url":"https://m/zeta/-/zeta-1.0.0.tgz"}` + "\n")
	f.Close()

	got, err = ReadFailureLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Package != "Alpha" || got[1].Package != "zeta" {
		t.Errorf("ReadFailureLog = %+v", got)
	}
	if job := got[1].Job(); job.URL != failures[0].URL || job.Origin != failures[0].FallbackURL {
		t.Errorf("Job = %+v", job)
	}
}
