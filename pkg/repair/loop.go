package repair

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lockmirror/pkg/config"
	lmerrors "github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/installer"
	"github.com/matzehuels/lockmirror/pkg/observability"
)

// Outcome is how a repair run ended.
type Outcome int

const (
	Done Outcome = iota
	InstallerFailed
	NoProgress
	Unfixable
	RoundLimitReached
	ReindexFailed
)

var outcomeNames = [...]string{
	Done:              "done",
	InstallerFailed:   "installer-failed",
	NoProgress:        "no-progress",
	Unfixable:         "unfixable",
	RoundLimitReached: "round-limit",
	ReindexFailed:     "reindex-failed",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ExitCode maps the outcome to the process exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case Done:
		return 0
	case InstallerFailed:
		return 1
	case NoProgress:
		return 3
	case RoundLimitReached:
		return 4
	case Unfixable:
		return 5
	case ReindexFailed:
		return 6
	}
	return 1
}

// Result describes a finished repair run.
type Result struct {
	Outcome Outcome
	Rounds  int

	// Supplied lists every spec supplied during the run, in order.
	Supplied []MissingSpec

	// Outstanding lists the specs still missing when the run ended: the
	// stuck set for Unfixable, the unsupplied batch for NoProgress, the
	// last missing set for RoundLimitReached.
	Outstanding []MissingSpec

	// ExitCode is the exit status of the last installer run.
	ExitCode int

	// LogPath is the installer log of the last round.
	LogPath string

	// Err describes every outcome other than Done with a coded error.
	Err error
}

// Loop is the install-repair state machine.
type Loop struct {
	exec      installer.Executor
	cmd       installer.Command
	supplier  Supplier
	reindexer Reindexer

	maxRounds  int
	installLog string
	roundLog   string
	totalLog   string

	hooks  observability.RepairHooks
	logger *log.Logger
}

// Option configures a [Loop].
type Option func(*Loop)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithHooks sets the round event hooks.
func WithHooks(h observability.RepairHooks) Option {
	return func(lp *Loop) { lp.hooks = h }
}

// NewLoop creates a loop running cmd through exec. Round limit and log
// paths come from cfg.
func NewLoop(cfg config.RepairConfig, cmd installer.Command, exec installer.Executor, supplier Supplier, reindexer Reindexer, opts ...Option) *Loop {
	l := &Loop{
		exec:       exec,
		cmd:        cmd,
		supplier:   supplier,
		reindexer:  reindexer,
		maxRounds:  max(cfg.MaxRounds, 1),
		installLog: cfg.InstallLog,
		roundLog:   cfg.RoundLog,
		totalLog:   cfg.TotalLog,
		hooks:      observability.NoopRepairHooks{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.Default()
	}
	return l
}

// Run executes rounds until a terminal outcome. The returned error is
// non-nil only when the installer cannot be run, the supplier fails, or
// ctx is cancelled; every other ending is an [Outcome].
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	state := NewRoundState()
	res := &Result{LogPath: l.installLog}

	finish := func(o Outcome) (*Result, error) {
		res.Outcome = o
		res.Err = outcomeError(res, res.Err)
		l.hooks.OnOutcome(ctx, o.String(), res.Rounds)
		if len(res.Supplied) > 0 {
			if err := WriteTotalLog(l.totalLog, res.Supplied, o == Done); err != nil {
				l.logger.Warn("could not write supplement summary", "path", l.totalLog, "err", err)
			}
		}
		return res, nil
	}

	for round := 1; round <= l.maxRounds; round++ {
		res.Rounds = round
		l.hooks.OnRoundStart(ctx, round)
		l.logger.Info("running installer", "round", round)

		missing, err := l.install(ctx, res)
		if err != nil {
			return res, err
		}
		if len(missing) == 0 {
			return finish(l.settle(res))
		}

		fresh := state.Fresh(missing)
		if len(fresh) == 0 {
			l.logger.Info("all missing specs were supplied before, retrying once", "missing", len(missing))
			if missing, err = l.install(ctx, res); err != nil {
				return res, err
			}
			if len(missing) == 0 {
				return finish(l.settle(res))
			}
			fresh = state.Fresh(missing)
		}
		if len(fresh) == 0 {
			res.Outstanding = missing
			l.hooks.OnRoundComplete(ctx, round, len(missing), 0, 0)
			return finish(Unfixable)
		}

		l.logger.Info("missing packages", "total", len(missing), "new", len(fresh))
		for _, s := range fresh {
			l.logger.Debug("missing", "spec", s)
		}
		if err := WriteRoundLog(l.roundLog, fresh); err != nil {
			l.logger.Warn("could not write round log", "path", l.roundLog, "err", err)
		}
		state.Add(fresh...)

		supplied, err := l.supplier.Supply(ctx, fresh)
		if err != nil {
			return res, fmt.Errorf("supply round %d: %w", round, err)
		}
		res.Supplied = append(res.Supplied, supplied...)
		l.hooks.OnRoundComplete(ctx, round, len(missing), len(fresh), len(supplied))
		if len(supplied) == 0 {
			res.Outstanding = fresh
			return finish(NoProgress)
		}

		if _, err := l.reindexer.Reindex(ctx); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Err = err
			res.Outstanding = missing
			return finish(ReindexFailed)
		}
		res.Outstanding = missing
	}
	return finish(RoundLimitReached)
}

// outcomeError returns the coded error describing res.Outcome, or nil for
// Done. cause is the underlying failure, if any.
func outcomeError(res *Result, cause error) error {
	switch res.Outcome {
	case InstallerFailed:
		return lmerrors.New(lmerrors.ErrCodeInstaller, "installer exited with status %d, see %s", res.ExitCode, res.LogPath)
	case NoProgress:
		return lmerrors.New(lmerrors.ErrCodeNotFound, "none of %d missing packages could be supplied", len(res.Outstanding))
	case Unfixable:
		return lmerrors.New(lmerrors.ErrCodeRepairDivergence, "installer still reports %d supplied packages missing", len(res.Outstanding))
	case RoundLimitReached:
		return lmerrors.New(lmerrors.ErrCodeRoundLimit, "%d packages still missing after %d rounds", len(res.Outstanding), res.Rounds)
	case ReindexFailed:
		return lmerrors.Wrap(lmerrors.ErrCodeReindex, cause, "rescan local registry: %v", cause)
	}
	return nil
}

// install runs the installer once and returns the missing specs it
// reported.
func (l *Loop) install(ctx context.Context, res *Result) ([]MissingSpec, error) {
	out, err := l.exec.Run(ctx, l.cmd, l.installLog)
	if err != nil {
		return nil, err
	}
	res.ExitCode = out.ExitCode
	return ParseFailures(out.Output), nil
}

// settle classifies a round without missing-package diagnostics.
func (l *Loop) settle(res *Result) Outcome {
	res.Outstanding = nil
	if res.ExitCode != 0 {
		return InstallerFailed
	}
	return Done
}
