package semver

import (
	"cmp"
	"regexp"
	"strconv"
	"strings"
)

// Version is the numeric core of a package version.
type Version struct {
	Major, Minor, Patch int
}

var versionRE = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)`)

// ParseVersion extracts the numeric triple from s. Any suffix after the patch
// number is ignored. It reports false when s does not start with a full
// major.minor.patch triple.
func ParseVersion(s string) (Version, bool) {
	m := versionRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, false
	}
	return Version{Major: atoi(m[1]), Minor: atoi(m[2]), Patch: atoi(m[3])}, true
}

// Compare orders two versions by (major, minor, patch).
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, o.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, o.Patch)
}

func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Patch)
}

// Compare orders two version strings numerically. Unparseable versions sort
// as 0.0.0. When the triples are equal the lexicographically smaller string
// ranks higher, which keeps the order total and deterministic.
func Compare(a, b string) int {
	va, _ := ParseVersion(a)
	vb, _ := ParseVersion(b)
	if c := va.Compare(vb); c != 0 {
		return c
	}
	return strings.Compare(b, a)
}

// Max returns the numerically greatest version in versions, or "" when the
// slice is empty. Among equal triples the lexicographically smallest string
// wins, consistent with [BestMatch].
func Max(versions []string) string {
	best := ""
	for i, v := range versions {
		if i == 0 || Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}

// BestMatch returns the greatest version in candidates that satisfies rng.
// Ties on the numeric triple resolve to the lexicographically smallest
// string, independent of candidate order. It reports false when no
// candidate satisfies the range; it never substitutes the newest version.
func BestMatch(candidates []string, rng string) (string, bool) {
	var matched []string
	for _, c := range candidates {
		if Satisfies(c, rng) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return "", false
	}
	return Max(matched), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
