// Package semver implements the subset of npm version ranges that appears in
// real-world lockfiles and installer diagnostics.
//
// # Versions
//
// A version is reduced to its numeric (major, minor, patch) triple. Anything
// after the patch number (pre-release tags, build metadata) is ignored for
// ordering, so "2.0.0-rc.1" and "2.0.0" compare equal. This is a deliberate
// limitation, not full semver precedence.
//
// # Ranges
//
// Supported range syntax:
//
//   - wildcards: "", "*", "x", "X", "latest"
//   - alternatives: "^1.2.0 || ^2.0.0"
//   - operators: ^ ~ >= > <= < =
//   - partial versions: "1", "1.2", "1.x", "1.2.*"
//   - conjunctions: ">=1.2.0 <2.0.0"
//
// Hyphen ranges, tag names other than "latest" and pre-release aware
// comparisons are not supported; such ranges match nothing.
//
// # Selection
//
// [BestMatch] picks the greatest satisfying version. It never falls back to
// the newest available version when nothing satisfies the range:
//
//	v, ok := semver.BestMatch([]string{"1.0.0", "1.2.0", "2.0.0"}, "^1.0.0")
//	// v == "1.2.0", ok == true
package semver
