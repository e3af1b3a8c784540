package semver

import (
	"regexp"
	"strings"
)

// termRE matches one comparator: optional operator, 1-3 numeric or wildcard
// components, and an ignored pre-release/build suffix.
var termRE = regexp.MustCompile(`^(\^|~|>=|>|<=|<|=)?\s*v?(\d+)(?:\.(\d+|[xX*]))?(?:\.(\d+|[xX*]))?(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?`)

// IsWildcard reports whether rng matches every version.
func IsWildcard(rng string) bool {
	switch strings.TrimSpace(rng) {
	case "", "*", "x", "X", "latest":
		return true
	}
	return false
}

// Satisfies reports whether version falls within rng. A version without a
// numeric triple is treated as 0.0.0.
func Satisfies(version, rng string) bool {
	v, _ := ParseVersion(version)
	return satisfies(v, strings.TrimSpace(rng))
}

func satisfies(v Version, rng string) bool {
	if IsWildcard(rng) {
		return true
	}
	if strings.Contains(rng, "||") {
		for _, alt := range strings.Split(rng, "||") {
			if satisfies(v, strings.TrimSpace(alt)) {
				return true
			}
		}
		return false
	}

	m := termRE.FindStringSubmatchIndex(rng)
	if m == nil {
		return false
	}
	t := parseTerm(rng, m)
	if !t.match(v) {
		return false
	}
	if rest := strings.TrimSpace(rng[m[1]:]); rest != "" {
		return satisfies(v, rest)
	}
	return true
}

type term struct {
	op       string
	base     Version
	hasMinor bool
	hasPatch bool
}

func parseTerm(s string, m []int) term {
	group := func(i int) (string, bool) {
		if m[2*i] < 0 {
			return "", false
		}
		return s[m[2*i]:m[2*i+1]], true
	}
	op, _ := group(1)
	major, _ := group(2)
	t := term{op: op}
	t.base.Major = atoi(major)
	if minor, ok := group(3); ok && !isWildcardPart(minor) {
		t.hasMinor = true
		t.base.Minor = atoi(minor)
	}
	if patch, ok := group(4); ok && !isWildcardPart(patch) && t.hasMinor {
		t.hasPatch = true
		t.base.Patch = atoi(patch)
	}
	return t
}

func isWildcardPart(s string) bool {
	return s == "x" || s == "X" || s == "*"
}

func (t term) match(v Version) bool {
	c := v.Compare(t.base)
	switch t.op {
	case "^":
		return t.caret(v, c)
	case "~":
		if t.hasMinor {
			return c >= 0 && v.Major == t.base.Major && v.Minor == t.base.Minor
		}
		return c >= 0 && v.Major == t.base.Major
	case ">=":
		return c >= 0
	case ">":
		if t.partial() {
			return v.Compare(t.ceiling()) >= 0
		}
		return c > 0
	case "<=":
		if t.partial() {
			return v.Compare(t.ceiling()) < 0
		}
		return c <= 0
	case "<":
		return c < 0
	default:
		// "=" and bare versions: omitted components are wildcards.
		switch {
		case !t.hasMinor:
			return v.Major == t.base.Major
		case !t.hasPatch:
			return v.Major == t.base.Major && v.Minor == t.base.Minor
		}
		return c == 0
	}
}

func (t term) partial() bool { return !t.hasPatch }

// ceiling is the lowest version above every version a partial term covers:
// 1.2 becomes 1.3.0 and 1 becomes 2.0.0.
func (t term) ceiling() Version {
	if !t.hasMinor {
		return Version{Major: t.base.Major + 1}
	}
	return Version{Major: t.base.Major, Minor: t.base.Minor + 1}
}

func (t term) caret(v Version, c int) bool {
	switch {
	case t.base.Major > 0:
		return c >= 0 && v.Major == t.base.Major
	case t.hasMinor && t.base.Minor > 0:
		return c >= 0 && v.Major == 0 && v.Minor == t.base.Minor
	case t.hasPatch:
		return c == 0
	case t.hasMinor:
		return v.Major == 0 && v.Minor == 0
	}
	return v.Major == 0
}
