// Package pkg provides the libraries behind lockmirror, a tool that mirrors
// the packages a JavaScript lockfile pins so installs can run offline.
//
// # Overview
//
// A run has two phases. The download phase reads the lockfile, fetches every
// pinned tarball into a flat artifact store and resolves the declared but
// unpinned ranges. The install phase serves the store as an npm-compatible
// registry, points the lockfile at it and drives the installer in rounds,
// fetching whatever the installer reports missing until it succeeds or stops
// making progress.
//
//	lockfile ──► [lockfile] parse ──► [fetch] download ──► artifact store
//	                                                          │
//	installer ◄── [repair] loop ◄── [registry] serve ◄────────┘
//
// # Main Packages
//
//   - [lockfile]: npm, yarn and pnpm lockfile parsing and npm URL rewriting
//   - [fetch]: concurrent downloads with mirror fallback and a failure log
//   - [semver]: the range subset used to resolve unpinned dependencies
//   - [registry]: the local registry server and its artifact index
//   - [installer]: installer invocations and their output
//   - [repair]: the install-and-repair loop and its logs
//   - [pipeline]: orchestration of both phases for one project
//   - [report]: run reports stored in a file or MongoDB
//
// Supporting packages: [config], [cache], [integrations], [httputil],
// [observability], [errors] and [buildinfo].
//
// [lockfile]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/lockfile
// [fetch]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/fetch
// [semver]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/semver
// [registry]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/registry
// [installer]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/installer
// [repair]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/repair
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/pipeline
// [report]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/report
// [config]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/config
// [cache]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/cache
// [integrations]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/integrations
// [httputil]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/errors
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/lockmirror/pkg/buildinfo
package pkg
