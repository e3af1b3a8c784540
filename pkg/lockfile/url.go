package lockfile

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/matzehuels/lockmirror/pkg/integrations"
	"github.com/matzehuels/lockmirror/pkg/semver"
)

var (
	// (peer@1)(other@2(x@3)).tgz at the end of a file name
	nestedSuffixRE = regexp.MustCompile(`(\([^()]*(?:\([^()]*\)[^()]*)*\))+\.tgz$`)

	// /name/-/name-1.2.3 prefix of an unscoped tarball path
	unscopedPrefixRE = regexp.MustCompile(`^(/[^/]+/-/[^/]+-\d+\.\d+\.\d+)`)

	// any-name-1.2.3 followed by "(" or "."
	fileVersionRE = regexp.MustCompile(`.*?-(\d+\.\d+\.\d+[^()]*?)[(.]`)
)

// StripNestedSuffix removes parenthesized nested-dependency annotations from
// a tarball URL path:
//
//	/pkg/-/pkg-1.0.0(dep@1)(dep2@2).tgz   -> /pkg/-/pkg-1.0.0.tgz
//	/@s/pkg/-/pkg-1.0.0(dep@1)            -> /@s/pkg/-/pkg-1.0.0.tgz
//
// It reports false when the path contains parentheses in a shape none of
// the rules recognize; the path is then returned unchanged.
func StripNestedSuffix(p string) (string, bool) {
	if !strings.ContainsAny(p, "()") {
		return p, true
	}
	if cleaned := nestedSuffixRE.ReplaceAllString(p, ".tgz"); !strings.ContainsAny(cleaned, "()") {
		return cleaned, true
	}

	sep := strings.Index(p, "/-/")
	if strings.Contains(p, "/@") && sep > 0 {
		scopePart, file := p[:sep], p[sep+3:]
		name := path.Base(integrations.DecodePackageName(scopePart))
		re := regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `-(\d+\.\d+\.\d+[^()]*)\(`)
		if m := re.FindStringSubmatch(file); m != nil {
			return scopePart + "/-/" + name + "-" + m[1] + ".tgz", true
		}
		return p, false
	}

	if m := unscopedPrefixRE.FindStringSubmatch(p); m != nil {
		return m[1] + ".tgz", true
	}

	// Best effort: rebuild from the package directory and the first
	// version-looking token of the file name. May be wrong for names that
	// themselves end in a version.
	if sep > 0 {
		pkgPath := p[:sep]
		if m := fileVersionRE.FindStringSubmatch(path.Base(p)); m != nil {
			return pkgPath + "/-/" + path.Base(pkgPath) + "-" + m[1] + ".tgz", true
		}
	}
	return p, false
}

// RewriteOrigin moves a tarball URL onto base, keeping the escaped package
// path. Any path prefix of the source registry
// (https://nexus.example/repository/npm-proxy) is dropped. URLs without a
// "/-/" tarball segment are returned unchanged.
func RewriteOrigin(raw, base string) string {
	if base == "" || !strings.Contains(raw, "/-/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.TrimRight(base, "/") + packagePath(u.EscapedPath())
}

// packagePath returns the registry-relative part of an escaped tarball
// path: the one or two name segments before "/-/" and everything after.
//
//	/repository/npm-proxy/lodash/-/lodash-4.17.21.tgz -> /lodash/-/lodash-4.17.21.tgz
//	/repo/@babel/core/-/core-7.24.0.tgz               -> /@babel/core/-/core-7.24.0.tgz
func packagePath(p string) string {
	sep := strings.Index(p, "/-/")
	if sep < 0 {
		return p
	}
	dir := strings.Trim(p[:sep], "/")
	if dir == "" {
		return p
	}
	segs := strings.Split(dir, "/")
	n := 1
	if len(segs) >= 2 && isScopeSegment(segs[len(segs)-2]) {
		n = 2
	}
	return "/" + strings.Join(segs[len(segs)-n:], "/") + p[sep:]
}

func isScopeSegment(s string) bool {
	return strings.HasPrefix(s, "@") || strings.HasPrefix(strings.ToLower(s), "%40")
}

// NormalizeTarballURL strips nested annotations and moves the URL onto
// mirror. The boolean is false when the annotation shape was not
// recognized; the URL is still rewritten to the mirror in that case.
func NormalizeTarballURL(raw, mirror string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, false
	}
	cleaned, ok := StripNestedSuffix(u.EscapedPath())
	if mirror != "" && strings.Contains(cleaned, "/-/") {
		return strings.TrimRight(mirror, "/") + packagePath(cleaned), ok
	}
	if cleaned == u.EscapedPath() {
		return raw, ok
	}
	return u.Scheme + "://" + u.Host + cleaned, ok
}

// TarballURL builds the conventional registry URL of name@version under
// base. The scope separator is encoded as %2F.
func TarballURL(base, name, version string) string {
	return integrations.JoinURL(base, integrations.EncodePackageName(name)) +
		"/-/" + integrations.UnscopedName(name) + "-" + version + ".tgz"
}

// PackageFromURL extracts the package name and version from a tarball URL
// of the form {base}/{name}/-/{unscoped}-{version}.tgz, where base may carry
// a path of its own.
func PackageFromURL(raw string) (name, version string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	p, err := url.PathUnescape(packagePath(u.EscapedPath()))
	if err != nil {
		return "", "", false
	}
	sep := strings.Index(p, "/-/")
	if sep < 0 {
		return "", "", false
	}
	name = strings.Trim(p[:sep], "/")
	file := path.Base(p)
	prefix := integrations.UnscopedName(name) + "-"
	if name == "" || !strings.HasPrefix(file, prefix) || !strings.HasSuffix(file, ".tgz") {
		return "", "", false
	}
	version = strings.TrimSuffix(strings.TrimPrefix(file, prefix), ".tgz")
	if _, ok := semver.ParseVersion(version); !ok {
		return "", "", false
	}
	return name, version, true
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
