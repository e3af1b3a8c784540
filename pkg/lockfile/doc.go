// Package lockfile extracts downloadable artifacts from npm, pnpm and yarn
// lockfiles and rewrites npm lockfiles to point at a local registry.
//
// # Dialects
//
// Three independent parsers share no state:
//
//   - [ParseNpm]: package-lock.json / npm-shrinkwrap.json (v1 nested tree and
//     the v2/v3 flat "packages" table)
//   - [ParsePnpm]: pnpm-lock.yaml (v5, v6 and v9 key shapes) plus the
//     pnpm-workspace.yaml glob file
//   - [ParseYarn]: yarn.lock, scanned line by line
//
// Each returns a [Result] of [ResolvedDependency] values (deduplicated by
// name and version) and, for npm, the [UnresolvedSpec] values declared by
// some package but not pinned anywhere in the file.
//
// # URL normalization
//
// Every tarball URL goes through [NormalizeTarballURL]: the origin is
// replaced by the configured mirror and parenthesized peer annotations some
// lockfiles embed in file names are removed by [StripNestedSuffix].
//
// # Rewriting
//
// [Document] edits the "packages" table of an npm lockfile in place:
// [Document.RemovePhantoms] drops placeholder entries and
// [Document.RewriteResolved] points every versioned entry at a registry base.
package lockfile
