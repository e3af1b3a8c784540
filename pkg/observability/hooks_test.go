package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	f := NoopFetchHooks{}
	f.OnFetchStart(ctx, "http://mirror/a/-/a-1.0.0.tgz")
	f.OnFallback(ctx, "http://mirror/a/-/a-1.0.0.tgz", "https://registry.npmjs.org/a/-/a-1.0.0.tgz", nil)
	f.OnFetchComplete(ctx, "http://mirror/a/-/a-1.0.0.tgz", 1024, time.Second, nil)

	r := NoopRegistryHooks{}
	r.OnRequest(ctx, "GET", "/a", 200, time.Millisecond)
	r.OnReindex(ctx, 3, 4, time.Millisecond)

	p := NoopRepairHooks{}
	p.OnRoundStart(ctx, 1)
	p.OnRoundComplete(ctx, 1, 2, 2, 1)
	p.OnOutcome(ctx, "done", 1)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	h := NewLogHooks(logger)
	ctx := context.Background()

	h.OnFetchComplete(ctx, "http://x/a.tgz", 0, 0, errors.New("boom"))
	h.OnReindex(ctx, 2, 3, time.Millisecond)
	h.OnOutcome(ctx, "unfixable", 4)

	out := buf.String()
	for _, want := range []string{"fetch failed", "boom", "registry indexed", "packages=2", "outcome=unfixable"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLogHooksQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	h := NewLogHooks(log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel}))

	h.OnRequest(context.Background(), "GET", "/a", 200, time.Millisecond)
	h.OnFetchStart(context.Background(), "http://x/a.tgz")

	if buf.Len() != 0 {
		t.Errorf("debug events should not be logged at info level: %q", buf.String())
	}
}

func TestNewLogHooksNilLogger(t *testing.T) {
	if NewLogHooks(nil).logger == nil {
		t.Error("nil logger should fall back to log.Default()")
	}
}
