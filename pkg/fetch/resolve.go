package fetch

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/lockmirror/pkg/lockfile"
	"github.com/matzehuels/lockmirror/pkg/semver"
)

// Resolution is an unpinned dependency turned into a download job.
type Resolution struct {
	Spec    lockfile.UnresolvedSpec
	Version string
	Job     Job
}

// ResolveSpec reads the packument of spec.Name from registry and picks the
// highest published version satisfying spec.Range. It reports false when the
// range is empty, the packument cannot be fetched or lists no versions, or
// no version matches. The returned job downloads from the mirror and falls
// back to the tarball URL the packument names.
func (f *Fetcher) ResolveSpec(ctx context.Context, registry string, spec lockfile.UnresolvedSpec) (Resolution, bool) {
	rng := strings.TrimSpace(spec.Range)
	if rng == "" {
		return Resolution{}, false
	}
	doc, err := f.meta.FetchPackument(ctx, registry, spec.Name, false)
	if err != nil {
		f.logger.Debug("packument unavailable", "package", spec.Name, "err", err)
		return Resolution{}, false
	}
	if len(doc.Versions) == 0 {
		return Resolution{}, false
	}
	version, ok := semver.BestMatch(doc.VersionList(), rng)
	if !ok {
		return Resolution{}, false
	}
	tarball := doc.TarballURL(version)
	if !strings.HasPrefix(tarball, "http://") && !strings.HasPrefix(tarball, "https://") {
		return Resolution{}, false
	}
	return Resolution{
		Spec:    spec,
		Version: version,
		Job: Job{
			URL:      lockfile.RewriteOrigin(tarball, f.mirror),
			Origin:   tarball,
			FileName: TarballFileName(spec.Name, version),
		},
	}, true
}

// ResolveAll resolves specs concurrently. Resolutions keep the order of
// specs; specs that could not be resolved are returned separately.
func (f *Fetcher) ResolveAll(ctx context.Context, registry string, specs []lockfile.UnresolvedSpec) ([]Resolution, []lockfile.UnresolvedSpec, error) {
	results := make([]*Resolution, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			r, ok := f.ResolveSpec(gctx, registry, spec)
			if err := gctx.Err(); err != nil {
				return err
			}
			if ok {
				results[i] = &r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var resolved []Resolution
	var unresolved []lockfile.UnresolvedSpec
	for i, r := range results {
		if r == nil {
			unresolved = append(unresolved, specs[i])
			continue
		}
		resolved = append(resolved, *r)
	}
	return resolved, unresolved, nil
}
