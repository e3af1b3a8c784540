package repair

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lockmirror/pkg/fetch"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
)

// Supplier obtains artifacts for missing specs.
type Supplier interface {
	// Supply fetches what it can and returns the specs whose artifact is
	// now in the store.
	Supply(ctx context.Context, specs []MissingSpec) ([]MissingSpec, error)
}

// Reindexer makes newly stored artifacts visible to the installer.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// FetchSupplier resolves specs against a metadata registry and downloads
// the chosen versions.
type FetchSupplier struct {
	fetcher  *fetch.Fetcher
	registry string
	logger   *log.Logger
}

// NewFetchSupplier returns a supplier reading packuments from registry.
func NewFetchSupplier(f *fetch.Fetcher, registry string, logger *log.Logger) *FetchSupplier {
	if logger == nil {
		logger = log.Default()
	}
	return &FetchSupplier{fetcher: f, registry: registry, logger: logger}
}

// Supply implements [Supplier]. A spec counts as supplied when its artifact
// was downloaded or was already in the store.
func (s *FetchSupplier) Supply(ctx context.Context, specs []MissingSpec) ([]MissingSpec, error) {
	wanted := make([]lockfile.UnresolvedSpec, len(specs))
	for i, spec := range specs {
		wanted[i] = lockfile.UnresolvedSpec{Name: spec.Name, Range: spec.Range}
	}
	resolved, unresolved, err := s.fetcher.ResolveAll(ctx, s.registry, wanted)
	if err != nil {
		return nil, err
	}
	for _, u := range unresolved {
		s.logger.Warn("no published version satisfies", "spec", u)
	}
	if len(resolved) == 0 {
		return nil, nil
	}

	jobs := make([]fetch.Job, len(resolved))
	for i, r := range resolved {
		jobs[i] = r.Job
	}
	res, err := s.fetcher.FetchJobs(ctx, jobs)
	if err != nil {
		return nil, err
	}
	failed := make(map[string]bool, len(res.Failures))
	for _, f := range res.Failures {
		failed[f.URL] = true
	}

	var supplied []MissingSpec
	for _, r := range resolved {
		if failed[r.Job.URL] {
			continue
		}
		s.logger.Info("supplied", "spec", r.Spec, "version", r.Version)
		supplied = append(supplied, MissingSpec{Name: r.Spec.Name, Range: r.Spec.Range})
	}
	return supplied, nil
}
