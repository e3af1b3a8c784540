package pipeline

import (
	"context"
	"slices"

	"github.com/matzehuels/lockmirror/pkg/fetch"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
	"github.com/matzehuels/lockmirror/pkg/report"
)

// DownloadResult is the outcome of the download phase.
type DownloadResult struct {
	Lockfile *lockfile.Result

	// Fetch covers the pinned dependencies and the resolved ranges.
	Fetch *fetch.Result

	// Resolved lists ranges resolved against the mirror.
	Resolved []fetch.Resolution

	// Unresolved lists ranges no published version satisfies.
	Unresolved []lockfile.UnresolvedSpec

	// Recovered counts failures fetched by the retry pass.
	Recovered int
}

// Summary converts the result for the run report.
func (d *DownloadResult) Summary() *report.DownloadSummary {
	s := &report.DownloadSummary{Dependencies: len(d.Lockfile.Dependencies), Resolved: len(d.Resolved), Retried: d.Recovered}
	if d.Fetch != nil {
		s.Downloaded = len(d.Fetch.Downloaded)
		s.Existing = d.Fetch.Existing
		for _, f := range d.Fetch.Failures {
			s.Failed = append(s.Failed, f.URL)
		}
	}
	for _, u := range d.Unresolved {
		s.Unresolved = append(s.Unresolved, u.String())
	}
	return s
}

// Download runs phase 1. A malformed lockfile aborts before any network
// activity. Download failures are recorded in the failure log and in the
// result; they do not fail the phase.
func (r *Runner) Download(ctx context.Context) (*DownloadResult, error) {
	path, dialect, err := r.lockfilePath()
	if err != nil {
		return nil, err
	}
	lock, err := lockfile.Parse(path, lockfile.Options{
		Mirror: r.cfg.Download.Mirror,
		Origin: r.cfg.Download.Origin,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("parsed lockfile",
		"path", path,
		"dialect", dialect,
		"dependencies", len(lock.Dependencies),
		"unresolved", len(lock.Unresolved),
		"local", lock.Skipped)
	for _, u := range lock.Unrecognized {
		r.logger.Warn("kept unrecognized tarball url", "url", u)
	}

	dl := &DownloadResult{Lockfile: lock}
	f := r.newFetcher(r.cfg.Download)

	jobs := make([]fetch.Job, 0, len(lock.Dependencies)+len(lock.Unresolved))
	for _, dep := range lock.Dependencies {
		jobs = append(jobs, fetch.JobFor(dep))
	}

	if len(lock.Unresolved) > 0 {
		resolved, unresolved, err := f.ResolveAll(ctx, r.cfg.Download.Mirror, lock.Unresolved)
		if err != nil {
			return dl, err
		}
		dl.Resolved, dl.Unresolved = resolved, unresolved
		for _, res := range resolved {
			r.logger.Debug("resolved range", "spec", res.Spec, "version", res.Version)
			jobs = append(jobs, res.Job)
		}
		for _, u := range unresolved {
			r.logger.Warn("no published version satisfies", "spec", u)
		}
	}

	res, err := f.FetchJobs(ctx, jobs)
	dl.Fetch = res
	if err != nil {
		return dl, err
	}
	r.logger.Info("fetched artifacts",
		"downloaded", len(res.Downloaded),
		"existing", res.Existing,
		"failed", len(res.Failures))

	if !res.OK() && r.cfg.Download.FailureLog != "" {
		if err := r.retryFailures(ctx, dl); err != nil {
			return dl, err
		}
	}
	return dl, nil
}

// retryFailures re-attempts every job in the failure log once against its
// origin. The log is rewritten with whatever still fails.
func (r *Runner) retryFailures(ctx context.Context, dl *DownloadResult) error {
	logged, err := fetch.ReadFailureLog(r.cfg.Download.FailureLog)
	if err != nil {
		return err
	}
	if len(logged) == 0 {
		return nil
	}
	jobs := make([]fetch.Job, len(logged))
	for i, fl := range logged {
		jobs[i] = fl.Job()
	}

	cfg := r.cfg.Download
	cfg.Retries = 1
	r.logger.Info("retrying failed downloads", "count", len(jobs))
	res, err := r.newFetcher(cfg).FetchJobs(ctx, jobs)
	if err != nil {
		return err
	}

	dl.Recovered = len(jobs) - len(res.Failures)
	dl.Fetch.Downloaded = append(dl.Fetch.Downloaded, res.Downloaded...)
	slices.Sort(dl.Fetch.Downloaded)
	dl.Fetch.Failures = res.Failures
	if len(res.Failures) > 0 {
		r.logger.Warn("downloads still failing", "count", len(res.Failures), "log", r.cfg.Download.FailureLog)
	}
	return nil
}
