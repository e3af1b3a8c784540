// Package npm provides an HTTP client for the npm registry metadata API.
//
// # Overview
//
// The registry serves one JSON "packument" per package at
// GET {registry}/{name}. Scoped names are sent as a single path segment with
// the slash encoded ("@babel%2Fcore").
//
// # Usage
//
//	client := npm.NewClient(cache.NewNullCache(), 24*time.Hour)
//	doc, err := client.FetchPackument(ctx, npm.DefaultRegistry, "express", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(doc.VersionList())
//
// The same [Packument] type is produced by the local registry server, so the
// installer and the resolver see one shape.
//
// # Caching
//
// Responses are cached under the request URL. Pass refresh=true to bypass
// the cache.
package npm
