package fetch

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/matzehuels/lockmirror/pkg/integrations"
)

var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F()@]`)

// SanitizeFileName replaces characters that are not portable in file names
// with "_".
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

// FileNameFromURL returns the sanitized final path segment of a tarball URL.
// Scoped tarballs keep only the unscoped file name
// (https://r/@s%2Fpkg/-/pkg-1.0.0.tgz -> pkg-1.0.0.tgz).
func FileNameFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	name := path.Base(strings.TrimRight(p, "/"))
	if name == "." || name == "/" {
		name = ""
	}
	name = SanitizeFileName(name)
	if name != "" && !strings.HasSuffix(name, ".tgz") {
		name += ".tgz"
	}
	return name
}

// TarballFileName returns the store file name for name@version. Scoped
// names keep their scope with the slash encoded, so two scopes publishing
// the same package name never collide:
//
//	lodash, 4.17.21       -> lodash-4.17.21.tgz
//	@babel/core, 7.24.0   -> @babel%2Fcore-7.24.0.tgz
func TarballFileName(name, version string) string {
	return integrations.EncodePackageName(name) + "-" + version + ".tgz"
}
