package registry

import (
	"cmp"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/lockmirror/pkg/integrations"
)

// Entry is one indexed artifact.
type Entry struct {
	Name    string
	Version string
	Path    string
}

// Index is an immutable snapshot of the artifact store.
type Index struct {
	entries map[key]Entry
	byName  map[string][]Entry // lowercased name, sorted by version
}

type key struct{ name, version string }

// NewIndex builds an index from entries. Later entries replace earlier
// ones with the same name and version.
func NewIndex(entries []Entry) *Index {
	ix := &Index{entries: make(map[key]Entry, len(entries)), byName: make(map[string][]Entry)}
	for _, e := range entries {
		ix.entries[key{e.Name, e.Version}] = e
	}
	for _, e := range ix.entries {
		lower := strings.ToLower(e.Name)
		ix.byName[lower] = append(ix.byName[lower], e)
	}
	for _, list := range ix.byName {
		slices.SortFunc(list, func(a, b Entry) int {
			return cmp.Or(cmp.Compare(a.Version, b.Version), cmp.Compare(a.Name, b.Name))
		})
	}
	return ix
}

// Len returns the number of (package, version) entries.
func (ix *Index) Len() int { return len(ix.entries) }

// Packages returns the number of distinct package names, ignoring case.
func (ix *Index) Packages() int { return len(ix.byName) }

// Versions returns the entries for name, one per version. For a scoped
// name, entries indexed under the unscoped name are included; an entry
// under the full name wins over one under the unscoped name.
func (ix *Index) Versions(name string) []Entry {
	byVersion := make(map[string]Entry)
	for i, n := range candidateNames(name) {
		for _, e := range ix.byName[n] {
			if _, ok := byVersion[e.Version]; ok && i > 0 {
				continue
			}
			byVersion[e.Version] = e
		}
	}
	out := make([]Entry, 0, len(byVersion))
	for _, e := range byVersion {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Version, b.Version) })
	return out
}

// Lookup returns the entry for name at exactly version.
func (ix *Index) Lookup(name, version string) (Entry, bool) {
	for _, n := range candidateNames(name) {
		for _, e := range ix.byName[n] {
			if e.Version == version {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// candidateNames returns the lowercased names a request for name matches,
// full name first.
func candidateNames(name string) []string {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "@") && strings.Contains(lower, "/") {
		return []string{lower, integrations.UnscopedName(lower)}
	}
	return []string{lower}
}

// ParseTarballName splits a file name of the form {name}-{version}{ext}.
// An encoded scope separator (%2F) in the name is decoded.
func ParseTarballName(file, ext string) (name, version string, ok bool) {
	m := tarballPattern(ext).FindStringSubmatch(file)
	if m == nil {
		return "", "", false
	}
	return integrations.DecodePackageName(m[1]), m[2], true
}

var tgzRE = regexp.MustCompile(`(?i)^(.+)-(\d+\.\d+\.\d+(?:[-.]\w+)*)\.tgz$`)

func tarballPattern(ext string) *regexp.Regexp {
	if ext == "" || strings.EqualFold(ext, ".tgz") {
		return tgzRE
	}
	return regexp.MustCompile(`(?i)^(.+)-(\d+\.\d+\.\d+(?:[-.]\w+)*)` + regexp.QuoteMeta(ext) + `$`)
}

// Scan walks roots recursively and indexes every file matching ext.
// Missing roots are skipped. When two files claim the same name and
// version, the one found later wins; roots are walked in order and each
// root in lexical order.
func Scan(ext string, roots ...string) (*Index, error) {
	re := tarballPattern(ext)
	var entries []Entry
	for _, root := range roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			m := re.FindStringSubmatch(d.Name())
			if m == nil {
				return nil
			}
			entries = append(entries, Entry{
				Name:    integrations.DecodePackageName(m[1]),
				Version: m[2],
				Path:    path,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return NewIndex(entries), nil
}
