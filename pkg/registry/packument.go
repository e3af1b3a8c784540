package registry

import (
	"github.com/matzehuels/lockmirror/pkg/integrations/npm"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
	"github.com/matzehuels/lockmirror/pkg/semver"
)

// BuildPackument synthesizes the packument of name from ix. Tarball URLs
// are built from the requested name, not the indexed one, so the scope
// encoding always matches what the client asked for. latest is the
// numerically greatest version. It reports false when no version matches.
func BuildPackument(ix *Index, base, name string) (*npm.Packument, bool) {
	entries := ix.Versions(name)
	if len(entries) == 0 {
		return nil, false
	}
	doc := &npm.Packument{
		Name:     name,
		Versions: make(map[string]npm.VersionMeta, len(entries)),
	}
	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		versions = append(versions, e.Version)
		doc.Versions[e.Version] = npm.VersionMeta{
			Name:    name,
			Version: e.Version,
			Dist:    npm.Dist{Tarball: lockfile.TarballURL(base, name, e.Version)},
		}
	}
	latest := semver.Max(versions)
	doc.Version = latest
	doc.DistTags = map[string]string{"latest": latest}
	return doc, true
}
