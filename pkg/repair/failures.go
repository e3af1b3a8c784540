package repair

import (
	"regexp"
	"strings"
)

// MissingSpec is a package the installer could not obtain, as named in its
// output.
type MissingSpec struct {
	Name  string
	Range string
}

func (s MissingSpec) String() string { return s.Name + "@" + s.Range }

var (
	notInRegistryRE = regexp.MustCompile(`(?i)404\s+[^']*'([^']+)@([^']+)'\s+is not in this registry`)
	notFoundRE      = regexp.MustCompile(`(?i)Package\s+'([^']+)'\s+not found`)
	noTargetRE      = regexp.MustCompile(`(?i)notarget\s+No matching version found for\s+(.+?)@(\S+)`)
	lacksTarballRE  = regexp.MustCompile(`(?i)Package\s+([^\s]+)\s+lacks\s+tarball\s+version\s+(\S+)`)
)

// ParseFailures extracts missing-package diagnostics from installer output.
// A package reported without a range gets "latest". Results are
// deduplicated and keep the order of the patterns, then of appearance.
func ParseFailures(output string) []MissingSpec {
	var found []MissingSpec
	add := func(name, rng string) {
		found = append(found, MissingSpec{
			Name:  strings.TrimSuffix(strings.TrimSpace(name), "."),
			Range: strings.TrimRight(strings.TrimSpace(rng), "."),
		})
	}
	for _, m := range notInRegistryRE.FindAllStringSubmatch(output, -1) {
		add(m[1], m[2])
	}
	for _, m := range notFoundRE.FindAllStringSubmatch(output, -1) {
		add(m[1], "latest")
	}
	for _, m := range noTargetRE.FindAllStringSubmatch(output, -1) {
		add(m[1], m[2])
	}
	for _, m := range lacksTarballRE.FindAllStringSubmatch(output, -1) {
		add(m[1], m[2])
	}

	seen := make(map[MissingSpec]bool, len(found))
	out := found[:0]
	for _, s := range found {
		if s.Name == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ParseSpec splits "name@range" at the last "@", so scoped names keep
// their leading "@".
func ParseSpec(s string) (MissingSpec, bool) {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return MissingSpec{}, false
	}
	spec := MissingSpec{Name: strings.TrimSpace(s[:at]), Range: strings.TrimSpace(s[at+1:])}
	return spec, spec.Name != "" && spec.Range != ""
}
