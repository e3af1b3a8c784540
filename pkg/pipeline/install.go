package pipeline

import (
	"context"
	"time"

	lmerrors "github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/fetch"
	"github.com/matzehuels/lockmirror/pkg/installer"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
	"github.com/matzehuels/lockmirror/pkg/registry"
	"github.com/matzehuels/lockmirror/pkg/report"
	"github.com/matzehuels/lockmirror/pkg/repair"
)

const shutdownTimeout = 5 * time.Second

// InstallResult is the outcome of the install phase.
type InstallResult struct {
	*repair.Result

	// Registry is the base URL the installer was pointed at.
	Registry string

	// Rewrite is set when the lockfile was rewritten for the run.
	Rewrite *lockfile.RewriteStats
}

// Summary converts the result for the run report.
func (i *InstallResult) Summary() *report.RepairSummary {
	s := &report.RepairSummary{Registry: i.Registry}
	if i.Result == nil {
		return s
	}
	s.Outcome = i.Outcome.String()
	s.Rounds = i.Rounds
	for _, spec := range i.Supplied {
		s.Supplied = append(s.Supplied, spec.String())
	}
	for _, spec := range i.Outstanding {
		s.Outstanding = append(s.Outstanding, spec.String())
	}
	return s
}

// Install runs phase 2: it starts the local registry over the artifact
// store, rewrites an npm lockfile to point at it and runs the repair loop.
// The registry is stopped and the lockfile restored before Install returns,
// whatever the outcome.
func (r *Runner) Install(ctx context.Context) (res *InstallResult, err error) {
	srv := registry.NewServer(r.cfg.Registry, r.cfg.RegistryRoots(),
		registry.WithLogger(r.logger),
		registry.WithHooks(r.hooks),
	)
	base, err := srv.Start(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(sctx); serr != nil {
			r.logger.Warn("registry shutdown", "err", serr)
		}
	}()
	r.logger.Info("local registry started", "url", base, "artifacts", srv.Index().Len())
	res = &InstallResult{Registry: base}

	restore, err := r.pointLockfile(base, res)
	if err != nil {
		return res, err
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			r.logger.Error("could not restore lockfile", "err", rerr)
			if err == nil {
				err = rerr
			}
		}
	}()

	cmd := installer.InstallCommand(r.cfg.Repair.Installer, r.cfg.Repair.Args, r.dir, base)
	supplier := repair.NewFetchSupplier(
		r.newFetcher(r.cfg.Download, fetch.WithFailureLog("")),
		r.cfg.Repair.MetadataRegistry,
		r.logger,
	)
	loop := repair.NewLoop(r.cfg.Repair, cmd, r.exec, supplier, registry.NewRescanClient(base),
		repair.WithLogger(r.logger),
		repair.WithHooks(r.hooks),
	)

	out, err := loop.Run(ctx)
	res.Result = out
	if err != nil {
		return res, err
	}
	r.logOutcome(out)
	return res, nil
}

// pointLockfile rewrites an npm lockfile to resolve from base and returns
// the function that restores it. Other dialects are left untouched; the
// installer still receives the registry flag.
func (r *Runner) pointLockfile(base string, res *InstallResult) (func() error, error) {
	noop := func() error { return nil }
	path, dialect, err := r.lockfilePath()
	if lmerrors.Is(err, lmerrors.ErrCodeNoLockfile) {
		r.logger.Warn("no lockfile, installing from package.json")
		return noop, nil
	}
	if err != nil {
		return noop, err
	}
	if dialect != lockfile.DialectNpm {
		r.logger.Info("lockfile left unchanged", "path", path, "dialect", dialect)
		return noop, nil
	}

	snap, err := lockfile.TakeSnapshot(path)
	if err != nil {
		return noop, err
	}
	stats, err := lockfile.RewriteFile(path, base)
	if err != nil {
		if rerr := snap.Restore(); rerr != nil {
			r.logger.Error("could not restore lockfile", "err", rerr)
		}
		return noop, err
	}
	res.Rewrite = &stats
	r.logger.Info("lockfile rewritten",
		"path", path,
		"resolved", stats.Rewritten,
		"phantoms", len(stats.Phantoms),
		"backup", snap.BackupPath())
	for _, p := range stats.Phantoms {
		r.logger.Debug("removed phantom entry", "key", p)
	}
	return func() error {
		if err := snap.Restore(); err != nil {
			return err
		}
		r.logger.Debug("lockfile restored", "path", path)
		return nil
	}, nil
}

func (r *Runner) logOutcome(out *repair.Result) {
	kv := []any{"outcome", out.Outcome, "rounds", out.Rounds, "supplied", len(out.Supplied)}
	switch out.Outcome {
	case repair.Done:
		r.logger.Info("install complete", kv...)
	case repair.InstallerFailed:
		r.logger.Error("installer failed", append(kv, "exit", out.ExitCode, "log", out.LogPath)...)
	case repair.ReindexFailed:
		r.logger.Error("registry reindex failed", append(kv, "err", out.Err)...)
	default:
		r.logger.Error("install incomplete", append(kv, "outstanding", len(out.Outstanding))...)
		for _, s := range out.Outstanding {
			r.logger.Error("unresolved", "spec", s)
		}
	}
}
