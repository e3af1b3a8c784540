package npm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/matzehuels/lockmirror/pkg/cache"
	"github.com/matzehuels/lockmirror/pkg/integrations"
)

func TestFetchPackument(t *testing.T) {
	var gotPath string
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		gotPath = r.URL.EscapedPath()
		if gotPath != "/@scope%2Fpkg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(Packument{
			Name: "@scope/pkg",
			Versions: map[string]VersionMeta{
				"1.0.0": {Name: "@scope/pkg", Version: "1.0.0", Dist: Dist{Tarball: "http://x/a-1.0.0.tgz"}},
				"1.1.0": {Name: "@scope/pkg", Version: "1.1.0", Dist: Dist{Tarball: "http://x/a-1.1.0.tgz"}},
			},
			DistTags: map[string]string{"latest": "1.1.0"},
		})
	}))
	defer srv.Close()

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	client := NewClient(fc, time.Hour, integrations.WithRetry(1, time.Millisecond))
	ctx := context.Background()

	doc, err := client.FetchPackument(ctx, srv.URL, "@scope/pkg", false)
	if err != nil {
		t.Fatalf("FetchPackument: %v", err)
	}
	if gotPath != "/@scope%2Fpkg" {
		t.Errorf("request path = %q", gotPath)
	}
	if got := doc.VersionList(); !slices.Equal(got, []string{"1.0.0", "1.1.0"}) {
		t.Errorf("VersionList = %v", got)
	}
	if doc.TarballURL("1.1.0") != "http://x/a-1.1.0.tgz" {
		t.Errorf("TarballURL = %q", doc.TarballURL("1.1.0"))
	}

	if _, err := client.FetchPackument(ctx, srv.URL, "@scope/pkg", false); err != nil {
		t.Fatalf("cached FetchPackument: %v", err)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (second call cached)", hits)
	}

	if _, err := client.FetchPackument(ctx, srv.URL, "@scope/pkg", true); err != nil {
		t.Fatalf("refresh FetchPackument: %v", err)
	}
	if hits != 2 {
		t.Errorf("server hits = %d, want 2 after refresh", hits)
	}
}

func TestFetchPackumentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := NewClient(nil, time.Hour, integrations.WithRetry(1, time.Millisecond))
	_, err := client.FetchPackument(context.Background(), srv.URL, "missing", false)
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
