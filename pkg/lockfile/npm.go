package lockfile

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

type npmLock struct {
	LockfileVersion int                       `json:"lockfileVersion"`
	Packages        map[string]npmPackage     `json:"packages"`
	Dependencies    map[string]npmLegacyEntry `json:"dependencies"`
}

type npmPackage struct {
	Version              string            `json:"version"`
	Resolved             string            `json:"resolved"`
	Integrity            string            `json:"integrity"`
	Link                 bool              `json:"link"`
	Dependencies         map[string]string `json:"dependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

// npmLegacyEntry is a node of the lockfileVersion 1 dependency tree.
type npmLegacyEntry struct {
	Version      string                    `json:"version"`
	Resolved     string                    `json:"resolved"`
	Requires     map[string]string         `json:"requires"`
	Dependencies map[string]npmLegacyEntry `json:"dependencies"`
}

// ParseNpm parses a package-lock.json or npm-shrinkwrap.json document.
//
// Every node with an HTTP resolved URL is collected from both the flat
// "packages" table and the nested "dependencies" tree. When the flat table
// is present, dependency declarations (peer, optional, regular) whose target
// has no resolved entry anywhere are returned as [UnresolvedSpec].
func ParseNpm(data []byte, opts Options) (*Result, error) {
	var lock npmLock
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&lock); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedLockfile, err, "decode npm lockfile")
	}

	c := newCollector(DialectNpm, opts)

	for _, key := range sortedKeys(lock.Packages) {
		if key == "" {
			continue
		}
		c.addURL(lock.Packages[key].Resolved)
	}
	walkLegacy(c, lock.Dependencies)

	if lock.Packages != nil {
		c.result.Unresolved = npmUnresolved(lock.Packages, c.names)
	}
	return c.finish(), nil
}

func walkLegacy(c *collector, deps map[string]npmLegacyEntry) {
	for _, name := range sortedKeys(deps) {
		entry := deps[name]
		c.addURL(entry.Resolved)
		walkLegacy(c, entry.Dependencies)

		// requires targets live among the siblings of this node
		for _, req := range sortedKeys(entry.Requires) {
			if sib, ok := deps[req]; ok {
				c.addURL(sib.Resolved)
			}
		}
	}
}

// PackageNameFromKey returns the package name of a "packages" table key:
// the part after the last "node_modules/" segment.
func PackageNameFromKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	if i := strings.LastIndex(key, "node_modules/"); i >= 0 {
		key = key[i+len("node_modules/"):]
	}
	return strings.Trim(key, "/")
}

func npmUnresolved(packages map[string]npmPackage, urlNames map[string]bool) []UnresolvedSpec {
	resolved := make(map[string]bool, len(urlNames))
	for name := range urlNames {
		resolved[name] = true
	}
	for key, pkg := range packages {
		if key != "" && pkg.Resolved != "" {
			if name := PackageNameFromKey(key); name != "" {
				resolved[name] = true
			}
		}
	}

	var out []UnresolvedSpec
	seen := make(map[UnresolvedSpec]bool)
	for _, key := range sortedKeys(packages) {
		pkg := packages[key]
		for _, decl := range []map[string]string{pkg.PeerDependencies, pkg.OptionalDependencies, pkg.Dependencies} {
			for _, dep := range sortedKeys(decl) {
				name := strings.TrimSpace(dep)
				if name == "" || resolved[name] {
					continue
				}
				spec := UnresolvedSpec{Name: name, Range: strings.TrimSpace(decl[dep])}
				if seen[spec] {
					continue
				}
				seen[spec] = true
				out = append(out, spec)
			}
		}
	}
	return out
}
