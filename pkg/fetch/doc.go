// Package fetch downloads package tarballs into a local artifact store.
//
// A [Fetcher] runs downloads on a bounded worker pool. Every job names a
// mirror URL and an origin URL: the mirror is used for all attempts but the
// last, which goes to the origin. A 404 from the mirror switches to the
// origin at once without spending an attempt.
//
// Files are written to a temporary name and renamed into place, so the
// store never holds a partial tarball. Jobs whose target file already
// exists and is non-empty are skipped.
//
// Failures are returned to the caller and, when a failure log is
// configured, written to it as JSON lines. The log is truncated on every
// run, so an empty log means the last run had no failures.
//
// The fetcher also turns an unpinned dependency (name and range) into a
// download job by reading the package's packument and picking the highest
// published version that satisfies the range. It never falls back to the
// latest version when nothing matches.
package fetch
