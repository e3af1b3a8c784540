// Package registry serves a directory of package tarballs over the npm
// registry protocol.
//
// The server answers three kinds of request:
//
//	GET /{name}                  packument synthesized from the index
//	GET /{name}/-/{file}.tgz     tarball bytes
//	GET /-/rescan                rebuild the index, reply with its size
//
// HEAD is answered like GET. Scoped names may arrive with the slash
// encoded (@scope%2Fname) or literal.
//
// The index maps (package, version) to a file and is built by walking the
// configured roots for files named {name}-{version}{ext}. A rebuild
// produces a new [Index] that replaces the old one atomically; requests in
// flight keep the snapshot they started with.
//
// Package names match case-insensitively. A scoped request also matches
// files indexed under the unscoped name, since tarballs downloaded from a
// lockfile are stored under the unscoped file name.
package registry
