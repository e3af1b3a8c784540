package repair

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	totalHeaderDone       = "# supplemented packages\n"
	totalHeaderIncomplete = "# supplemented packages (installation incomplete)\n"
)

// WriteRoundLog replaces path with one name@range line per spec.
func WriteRoundLog(path string, specs []MissingSpec) error {
	return writeSpecs(path, "", specs)
}

// WriteTotalLog replaces path with every spec supplemented during the run.
// The header records whether the run ended with a complete installation.
func WriteTotalLog(path string, specs []MissingSpec, finished bool) error {
	header := totalHeaderDone
	if !finished {
		header = totalHeaderIncomplete
	}
	return writeSpecs(path, header, specs)
}

func writeSpecs(path, header string, specs []MissingSpec) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(header)
	for _, s := range specs {
		b.WriteString(s.String())
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// ReadSpecLog reads a log written by [WriteRoundLog] or [WriteTotalLog].
// Comment lines and lines without a range are skipped.
func ReadSpecLog(path string) ([]MissingSpec, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []MissingSpec
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if spec, ok := ParseSpec(line); ok {
			out = append(out, spec)
		}
	}
	return out, nil
}
