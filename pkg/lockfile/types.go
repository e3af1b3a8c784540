package lockfile

import (
	"cmp"
	"slices"
)

// Dialect identifies a lockfile format.
type Dialect string

const (
	DialectNpm  Dialect = "npm"
	DialectPnpm Dialect = "pnpm"
	DialectYarn Dialect = "yarn"
)

// ResolvedDependency is one downloadable artifact.
type ResolvedDependency struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	TarballURL string `json:"tarball_url"` // mirror URL
	Origin     string `json:"origin"`      // canonical registry URL
}

// UnresolvedSpec is a dependency declared with a range but not pinned.
type UnresolvedSpec struct {
	Name  string `json:"name"`
	Range string `json:"range"`
}

func (s UnresolvedSpec) String() string { return s.Name + "@" + s.Range }

// Options configures URL handling shared by all parsers.
type Options struct {
	// Mirror replaces the origin of every tarball URL and is the base for
	// synthesized URLs.
	Mirror string

	// Origin is the canonical registry used for fallback URLs.
	Origin string

	// WorkspaceFile is the pnpm workspace glob file. Empty means
	// pnpm-workspace.yaml next to the lockfile.
	WorkspaceFile string
}

// Result is the outcome of parsing one lockfile.
type Result struct {
	Dialect      Dialect
	Path         string
	Dependencies []ResolvedDependency
	Unresolved   []UnresolvedSpec

	// Unrecognized lists URLs whose nested-annotation shape could not be
	// repaired; they are kept unchanged in Dependencies.
	Unrecognized []string

	// Workspaces lists the workspace directories that were excluded.
	Workspaces []string

	// Skipped counts local (link/workspace/file) entries that were ignored.
	Skipped int
}

// collector accumulates dependencies, deduplicating by (name, version) or by
// URL when the URL does not reveal a name and version.
type collector struct {
	opts   Options
	result *Result
	seen   map[string]bool
	names  map[string]bool
}

func newCollector(d Dialect, opts Options) *collector {
	return &collector{
		opts:   opts,
		result: &Result{Dialect: d},
		seen:   make(map[string]bool),
		names:  make(map[string]bool),
	}
}

// addURL records a tarball URL taken verbatim from a lockfile. Non-HTTP
// URLs (file:, git+ssh:) are ignored.
func (c *collector) addURL(raw string) {
	if !isHTTP(raw) {
		return
	}
	mirrorURL, ok := NormalizeTarballURL(raw, c.opts.Mirror)
	if !ok {
		c.result.Unrecognized = append(c.result.Unrecognized, raw)
	}
	name, version, _ := PackageFromURL(mirrorURL)
	c.add(ResolvedDependency{
		Name:       name,
		Version:    version,
		TarballURL: mirrorURL,
		Origin:     RewriteOrigin(mirrorURL, c.opts.Origin),
	})
}

// addVersion records a dependency whose URL is synthesized from base.
func (c *collector) addVersion(base, name, version string) {
	if base == "" {
		base = c.opts.Mirror
	}
	c.addURL(TarballURL(base, name, version))
}

func (c *collector) add(dep ResolvedDependency) {
	key := dep.TarballURL
	if dep.Name != "" && dep.Version != "" {
		key = dep.Name + "@" + dep.Version
		c.names[dep.Name] = true
	}
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.result.Dependencies = append(c.result.Dependencies, dep)
}

func (c *collector) finish() *Result {
	slices.SortFunc(c.result.Dependencies, func(a, b ResolvedDependency) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Version, b.Version), cmp.Compare(a.TarballURL, b.TarballURL))
	})
	return c.result
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
