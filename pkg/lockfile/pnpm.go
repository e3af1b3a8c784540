package lockfile

import (
	"bytes"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

type pnpmLock struct {
	Importers            map[string]pnpmImporter `yaml:"importers"`
	Dependencies         map[string]pnpmDep      `yaml:"dependencies"`
	DevDependencies      map[string]pnpmDep      `yaml:"devDependencies"`
	OptionalDependencies map[string]pnpmDep      `yaml:"optionalDependencies"`
	Packages             map[string]pnpmPackage  `yaml:"packages"`
}

type pnpmImporter struct {
	Dependencies         map[string]pnpmDep `yaml:"dependencies"`
	DevDependencies      map[string]pnpmDep `yaml:"devDependencies"`
	OptionalDependencies map[string]pnpmDep `yaml:"optionalDependencies"`
}

// pnpmDep is either a bare version string (lockfile v5) or a
// {specifier, version} mapping (v6+).
type pnpmDep struct {
	Specifier string `yaml:"specifier"`
	Version   string `yaml:"version"`
}

func (d *pnpmDep) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d.Version = value.Value
		return nil
	}
	type plain pnpmDep
	return value.Decode((*plain)(d))
}

type pnpmPackage struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	Resolved   string `yaml:"resolved"`
	Resolution struct {
		Tarball   string `yaml:"tarball"`
		Integrity string `yaml:"integrity"`
	} `yaml:"resolution"`
}

type pnpmWorkspace struct {
	Packages []string `yaml:"packages"`
}

// ParsePnpm parses a pnpm-lock.yaml document. Entries without a resolved
// URL get one synthesized from the mirror base. Link, workspace and file
// entries are skipped, as are versions inside the workspace directories
// declared by opts.WorkspaceFile.
func ParsePnpm(data []byte, opts Options) (*Result, error) {
	var lock pnpmLock
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&lock); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedLockfile, err, "decode pnpm lockfile")
	}

	c := newCollector(DialectPnpm, opts)
	if opts.WorkspaceFile != "" {
		dirs, err := ReadWorkspaceDirs(opts.WorkspaceFile)
		if err != nil {
			return nil, err
		}
		c.result.Workspaces = dirs
	}

	addDeps := func(deps map[string]pnpmDep) {
		for _, name := range sortedKeys(deps) {
			dep := deps[name]
			if isLocalVersion(dep.Specifier, c.result.Workspaces) || isLocalVersion(dep.Version, c.result.Workspaces) {
				c.result.Skipped++
				continue
			}
			version := stripPeerSuffix(dep.Version)
			if !startsWithDigit(version) {
				continue
			}
			c.addVersion("", name, version)
		}
	}
	for _, path := range sortedKeys(lock.Importers) {
		imp := lock.Importers[path]
		addDeps(imp.Dependencies)
		addDeps(imp.DevDependencies)
		addDeps(imp.OptionalDependencies)
	}
	addDeps(lock.Dependencies)
	addDeps(lock.DevDependencies)
	addDeps(lock.OptionalDependencies)

	for _, key := range sortedKeys(lock.Packages) {
		if key == "" {
			continue
		}
		pkg := lock.Packages[key]
		if isLocalVersion(key, c.result.Workspaces) || isLocalVersion(pkg.Version, c.result.Workspaces) {
			c.result.Skipped++
			continue
		}
		if url := firstNonEmpty(pkg.Resolved, pkg.Resolution.Tarball); url != "" {
			c.addURL(url)
			continue
		}
		name, version, ok := ParsePnpmKey(key)
		if pkg.Name != "" {
			name = pkg.Name
		}
		if pkg.Version != "" {
			version = stripPeerSuffix(pkg.Version)
		}
		if !ok && pkg.Name == "" {
			continue
		}
		if name == "" || !startsWithDigit(version) {
			continue
		}
		c.addVersion("", name, version)
	}
	return c.finish(), nil
}

// ParsePnpmKey splits a "packages" key into name and version. Accepted
// shapes:
//
//	/name@1.0.0(peer@2.0.0)   lockfile v6
//	name@1.0.0                lockfile v9
//	/name/1.0.0_peer@2.0.0    lockfile v5
func ParsePnpmKey(key string) (name, version string, ok bool) {
	key = stripPeerSuffix(strings.TrimPrefix(key, "/"))

	parts := strings.Split(key, "/")
	nameParts := 1
	if strings.HasPrefix(key, "@") {
		nameParts = 2
	}
	if len(parts) > nameParts && startsWithDigit(parts[nameParts]) {
		version, _, _ = strings.Cut(parts[nameParts], "_")
		return strings.Join(parts[:nameParts], "/"), version, true
	}

	if at := strings.LastIndex(key, "@"); at > 0 {
		name, version = key[:at], key[at+1:]
		if startsWithDigit(version) {
			return name, version, true
		}
	}
	return "", "", false
}

// ReadWorkspaceDirs reads the "packages" globs of a pnpm-workspace.yaml file
// and returns the directories of the globs ending in "/*". A missing file
// yields no directories.
func ReadWorkspaceDirs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	var ws pnpmWorkspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedLockfile, err, "decode %s", path)
	}
	var dirs []string
	for _, pattern := range ws.Packages {
		if dir, ok := strings.CutSuffix(pattern, "/*"); ok && dir != "" {
			dirs = append(dirs, strings.TrimPrefix(dir, "./"))
		}
	}
	return dirs, nil
}

func isLocalVersion(v string, workspaces []string) bool {
	for _, prefix := range []string{"link:", "workspace:", "file:"} {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	for _, dir := range workspaces {
		if strings.HasPrefix(v, dir+"/") {
			return true
		}
	}
	return false
}

// stripPeerSuffix removes "(peer@x)" annotations: "1.0.0(react@18)" -> "1.0.0".
func stripPeerSuffix(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
