package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/lockmirror/pkg/buildinfo"
	"github.com/matzehuels/lockmirror/pkg/config"
	lmerrors "github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/httputil"
	"github.com/matzehuels/lockmirror/pkg/integrations"
	"github.com/matzehuels/lockmirror/pkg/integrations/npm"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
	"github.com/matzehuels/lockmirror/pkg/observability"
)

// Job is one artifact to download.
type Job struct {
	URL      string // tried first
	Origin   string // last attempt and 404 fallback; empty means URL
	FileName string // store file name; empty derives it from URL
}

// JobFor returns the job downloading dep.
func JobFor(dep lockfile.ResolvedDependency) Job {
	return Job{URL: dep.TarballURL, Origin: dep.Origin}
}

func (j Job) origin() string {
	if j.Origin == "" {
		return j.URL
	}
	return j.Origin
}

func (j Job) fileName() string {
	if j.FileName != "" {
		return j.FileName
	}
	return FileNameFromURL(j.URL)
}

// Result summarizes a batch of downloads.
type Result struct {
	Downloaded []string // files written by this batch, sorted
	Existing   int      // jobs whose file was already in the store
	Failures   []Failure
}

// OK reports whether every job succeeded.
func (r *Result) OK() bool { return len(r.Failures) == 0 }

// Fetcher downloads tarballs into a directory.
type Fetcher struct {
	dir         string
	mirror      string
	concurrency int
	attempts    int
	delay       time.Duration
	failureLog  string
	http        *integrations.Client
	meta        *npm.Client
	hooks       observability.FetchHooks
	logger      *log.Logger
}

// Option configures a [Fetcher].
type Option func(*Fetcher)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithHooks sets the download event hooks.
func WithHooks(h observability.FetchHooks) Option {
	return func(f *Fetcher) { f.hooks = h }
}

// WithMetadataClient sets the packument client used by [Fetcher.ResolveSpec].
func WithMetadataClient(c *npm.Client) Option {
	return func(f *Fetcher) { f.meta = c }
}

// WithHTTPClient replaces the HTTP client used for tarball downloads.
func WithHTTPClient(h *http.Client) Option {
	return func(f *Fetcher) { f.http = newDownloadClient(integrations.WithHTTPClient(h)) }
}

// WithFailureLog overrides the failure log path. Empty disables the log.
func WithFailureLog(path string) Option {
	return func(f *Fetcher) { f.failureLog = path }
}

// New creates a Fetcher from the download configuration.
func New(cfg config.DownloadConfig, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:         cfg.Dir,
		mirror:      cfg.Mirror,
		concurrency: max(cfg.Concurrency, 1),
		attempts:    max(cfg.Retries, 1),
		delay:       cfg.RetryDelay.Duration,
		failureLog:  cfg.FailureLog,
		http:        newDownloadClient(integrations.WithTimeout(cfg.Timeout.Duration)),
		hooks:       observability.NoopFetchHooks{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	if f.meta == nil {
		f.meta = npm.NewClient(nil, 0, integrations.WithTimeout(cfg.Timeout.Duration))
	}
	return f
}

func newDownloadClient(opts ...integrations.Option) *integrations.Client {
	return integrations.NewClient(nil, "", 0, map[string]string{
		"User-Agent": buildinfo.UserAgent(),
	}, opts...)
}

// Dir returns the artifact store directory.
func (f *Fetcher) Dir() string { return f.dir }

// Fetch downloads the tarball of every dependency.
func (f *Fetcher) Fetch(ctx context.Context, deps []lockfile.ResolvedDependency) (*Result, error) {
	jobs := make([]Job, 0, len(deps))
	for _, d := range deps {
		jobs = append(jobs, JobFor(d))
	}
	return f.FetchJobs(ctx, jobs)
}

// FetchJobs downloads jobs concurrently. Download failures are reported in
// the result, not as an error; the error is non-nil only when ctx is
// cancelled or the store or failure log cannot be written.
func (f *Fetcher) FetchJobs(ctx context.Context, jobs []Job) (*Result, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", f.dir, err)
	}

	res := &Result{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, job := range dedupeJobs(jobs) {
		g.Go(func() error {
			path, existed, err := f.fetchOne(gctx, job)
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				f.logger.Warn("download failed", "url", job.URL, "err", err)
				res.Failures = append(res.Failures, newFailure(job, err))
			case existed:
				res.Existing++
			default:
				res.Downloaded = append(res.Downloaded, path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	slices.Sort(res.Downloaded)
	slices.SortFunc(res.Failures, func(a, b Failure) int { return strings.Compare(a.URL, b.URL) })

	if f.failureLog != "" {
		if err := WriteFailureLog(f.failureLog, res.Failures); err != nil {
			return res, err
		}
	}
	return res, nil
}

// dedupeJobs drops jobs targeting a file name already claimed by an
// earlier job; two workers must never write the same file.
func dedupeJobs(jobs []Job) []Job {
	seen := make(map[string]bool, len(jobs))
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		key := j.fileName()
		if key == "" {
			key = j.URL
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, j)
	}
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, job Job) (path string, existed bool, err error) {
	name := job.fileName()
	if err := lmerrors.ValidateFileName(name); err != nil {
		return "", false, lmerrors.Wrap(lmerrors.ErrCodeInvalidPath, err, "store file for %s", job.URL)
	}
	path = filepath.Join(f.dir, name)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, true, nil
	}

	start := time.Now()
	f.hooks.OnFetchStart(ctx, job.URL)

	origin := job.origin()
	useOrigin := false
	var size int64
	err = httputil.RetryAttempts(ctx, f.attempts, f.delay, func(attempt int) error {
		src := job.URL
		if useOrigin || attempt == f.attempts-1 {
			src = origin
		}
		n, err := f.download(ctx, src, path)
		if errors.Is(err, integrations.ErrNotFound) && src != origin {
			f.hooks.OnFallback(ctx, src, origin, err)
			useOrigin = true
			n, err = f.download(ctx, origin, path)
		}
		size = n
		return err
	})
	f.hooks.OnFetchComplete(ctx, job.URL, size, time.Since(start), err)
	return path, false, err
}

// download streams url into dst through a temporary file in the same
// directory.
func (f *Fetcher) download(ctx context.Context, url, dst string) (int64, error) {
	body, err := f.http.Open(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, &httputil.RetryableError{Err: fmt.Errorf("%w: read %s: %v", integrations.ErrNetwork, url, err)}
	}
	if n == 0 {
		return 0, &httputil.RetryableError{Err: fmt.Errorf("%w: empty body from %s", integrations.ErrNetwork, url)}
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return n, err
	}
	return n, nil
}
