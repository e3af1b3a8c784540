// Package report records what a lockmirror run did.
//
// A [Report] is created when a run starts, filled in by the pipeline as the
// phases complete, and handed to a [Sink] at the end. Two sinks exist:
//   - [FileSink]: the report as an indented JSON file (CLI default)
//   - [MongoSink]: one document per run in a MongoDB collection, for
//     hosts that mirror many projects
package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/lockmirror/pkg/config"
	"github.com/matzehuels/lockmirror/pkg/errors"
)

// Report describes one run.
type Report struct {
	ID         string    `json:"id" bson:"_id"`
	Project    string    `json:"project" bson:"project"`
	Lockfile   string    `json:"lockfile,omitempty" bson:"lockfile,omitempty"`
	Dialect    string    `json:"dialect,omitempty" bson:"dialect,omitempty"`
	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`

	Download *DownloadSummary `json:"download,omitempty" bson:"download,omitempty"`
	Repair   *RepairSummary   `json:"repair,omitempty" bson:"repair,omitempty"`

	ExitCode int    `json:"exit_code" bson:"exit_code"`
	Error    string `json:"error,omitempty" bson:"error,omitempty"`
}

// DownloadSummary covers phase 1.
type DownloadSummary struct {
	Dependencies int      `json:"dependencies" bson:"dependencies"`
	Downloaded   int      `json:"downloaded" bson:"downloaded"`
	Existing     int      `json:"existing" bson:"existing"`
	Failed       []string `json:"failed,omitempty" bson:"failed,omitempty"`
	Resolved     int      `json:"resolved" bson:"resolved"`
	Unresolved   []string `json:"unresolved,omitempty" bson:"unresolved,omitempty"`
	Retried      int      `json:"retried" bson:"retried"`
}

// RepairSummary covers phase 2.
type RepairSummary struct {
	Outcome     string   `json:"outcome" bson:"outcome"`
	Rounds      int      `json:"rounds" bson:"rounds"`
	Supplied    []string `json:"supplied,omitempty" bson:"supplied,omitempty"`
	Outstanding []string `json:"outstanding,omitempty" bson:"outstanding,omitempty"`
	Registry    string   `json:"registry" bson:"registry"`
}

// New starts a report for the project in dir.
func New(dir string) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Project:   dir,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the end time and the final status.
func (r *Report) Finish(exitCode int, err error) {
	r.FinishedAt = time.Now().UTC()
	r.ExitCode = exitCode
	if err != nil {
		r.Error = errors.UserMessage(err)
	}
}

// Duration returns how long the run took, or zero before [Report.Finish].
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Sink persists finished reports.
type Sink interface {
	Write(ctx context.Context, r *Report) error
	Close() error
}

// NopSink discards reports.
type NopSink struct{}

func (NopSink) Write(context.Context, *Report) error { return nil }
func (NopSink) Close() error                         { return nil }

// Open returns the sink configured by cfg.
func Open(ctx context.Context, cfg config.ReportConfig) (Sink, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return NopSink{}, nil
	case config.BackendFile:
		return NewFileSink(cfg.Path), nil
	case config.BackendMongo:
		return NewMongoSink(ctx, MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown report backend %q", cfg.Backend)
}
