// Package repair drives the installer against the local registry until the
// dependency closure is complete.
//
// Each round runs the installer, scans its output for missing-package
// diagnostics and hands specs not attempted before to a [Supplier], which
// fetches them into the artifact store. The registry is then reindexed and
// the next round starts. The loop stops when:
//
//   - the installer exits cleanly with no diagnostics ([Done]);
//   - it fails without any recognizable diagnostic ([InstallerFailed]);
//   - a round supplies nothing ([NoProgress]);
//   - only already-attempted specs remain after one extra installer run
//     ([Unfixable]);
//   - the reindex signal fails ([ReindexFailed]);
//   - the round budget is spent ([RoundLimitReached]).
//
// The loop is strictly sequential. Starting and stopping the registry and
// restoring the lockfile are the caller's job.
package repair
