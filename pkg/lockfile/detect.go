package lockfile

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

// Lockfile names in detection order.
var candidates = []struct {
	file    string
	dialect Dialect
}{
	{"package-lock.json", DialectNpm},
	{"npm-shrinkwrap.json", DialectNpm},
	{"pnpm-lock.yaml", DialectPnpm},
	{"yarn.lock", DialectYarn},
}

// Detect returns the first lockfile present in dir.
func Detect(dir string) (string, Dialect, error) {
	for _, c := range candidates {
		path := filepath.Join(dir, c.file)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, c.dialect, nil
		}
	}
	return "", "", errors.New(errors.ErrCodeNoLockfile, "no package-lock.json, npm-shrinkwrap.json, pnpm-lock.yaml or yarn.lock in %s", dir)
}

// DialectOf returns the dialect implied by a lockfile's base name.
func DialectOf(path string) (Dialect, bool) {
	base := filepath.Base(path)
	for _, c := range candidates {
		if c.file == base {
			return c.dialect, true
		}
	}
	return "", false
}

// Parse reads and parses the lockfile at path.
func Parse(path string, opts Options) (*Result, error) {
	dialect, ok := DialectOf(path)
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedLockfile, "unrecognized lockfile name %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNoLockfile, err, "read %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}

	var res *Result
	switch dialect {
	case DialectNpm:
		res, err = ParseNpm(data, opts)
	case DialectPnpm:
		if opts.WorkspaceFile == "" {
			opts.WorkspaceFile = filepath.Join(filepath.Dir(path), "pnpm-workspace.yaml")
		}
		res, err = ParsePnpm(data, opts)
	case DialectYarn:
		res, err = ParseYarn(data, opts)
	}
	if err != nil {
		return nil, err
	}
	res.Path = path
	return res, nil
}
