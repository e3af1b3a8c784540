package fetch

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
)

// Failure describes a job that could not be downloaded.
type Failure struct {
	Package     string `json:"package,omitempty"`
	Version     string `json:"version,omitempty"`
	URL         string `json:"url"`
	FallbackURL string `json:"fallback_url"`
	Error       string `json:"error"`
}

// Job returns the job that retries this failure.
func (f Failure) Job() Job {
	return Job{URL: f.URL, Origin: f.FallbackURL}
}

// WriteFailureLog truncates path and writes one JSON object per failure,
// sorted by package name. No failures leaves the file empty.
func WriteFailureLog(path string, failures []Failure) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create log dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer f.Close()

	sorted := slices.Clone(failures)
	slices.SortStableFunc(sorted, func(a, b Failure) int {
		return strings.Compare(strings.ToLower(a.Package), strings.ToLower(b.Package))
	})

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, fl := range sorted {
		if err := enc.Encode(fl); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode failure log")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return f.Close()
}

// ReadFailureLog reads a log written by [WriteFailureLog]. A missing file
// yields no failures; lines that are not JSON objects are ignored.
func ReadFailureLog(path string) ([]Failure, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()

	var out []Failure
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var fl Failure
		if json.Unmarshal([]byte(line), &fl) != nil || fl.URL == "" || seen[fl.URL] {
			continue
		}
		seen[fl.URL] = true
		out = append(out, fl)
	}
	if err := sc.Err(); err != nil {
		return out, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	return out, nil
}

func newFailure(job Job, err error) Failure {
	name, version, _ := lockfile.PackageFromURL(job.URL)
	return Failure{
		Package:     name,
		Version:     version,
		URL:         job.URL,
		FallbackURL: job.origin(),
		Error:       truncate(err.Error(), 500),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
