package npm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/lockmirror/pkg/buildinfo"
	"github.com/matzehuels/lockmirror/pkg/cache"
	"github.com/matzehuels/lockmirror/pkg/integrations"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

// Packument is the metadata document a registry serves for one package.
// Only the fields the installer and the resolver consult are modelled.
type Packument struct {
	Name     string                 `json:"name"`
	Version  string                 `json:"version,omitempty"`
	Versions map[string]VersionMeta `json:"versions"`
	DistTags map[string]string      `json:"dist-tags"`
}

// VersionMeta describes one published version.
type VersionMeta struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Dist    Dist   `json:"dist"`
}

// Dist locates the tarball of a version.
type Dist struct {
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity,omitempty"`
	Shasum    string `json:"shasum,omitempty"`
}

// VersionList returns the published version strings in sorted order.
func (p *Packument) VersionList() []string {
	out := make([]string, 0, len(p.Versions))
	for v := range p.Versions {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// TarballURL returns the tarball URL of version, or "" when unknown.
func (p *Packument) TarballURL(version string) string {
	return p.Versions[version].Dist.Tarball
}

type Client struct {
	*integrations.Client
}

// NewClient creates a packument client caching documents for cacheTTL.
func NewClient(c cache.Cache, cacheTTL time.Duration, opts ...integrations.Option) *Client {
	return &Client{
		Client: integrations.NewClient(c, "npm:", cacheTTL, map[string]string{
			"Accept":     "application/json",
			"User-Agent": buildinfo.UserAgent(),
		}, opts...),
	}
}

// FetchPackument retrieves the packument of name from registry. Scoped names
// are sent with the slash encoded as %2F.
func (c *Client) FetchPackument(ctx context.Context, registry, name string, refresh bool) (*Packument, error) {
	name = strings.TrimSpace(name)
	if registry == "" {
		registry = DefaultRegistry
	}
	url := integrations.JoinURL(registry, integrations.EncodePackageName(name))

	var doc Packument
	err := c.Cached(ctx, url, refresh, &doc, func() error {
		return c.fetch(ctx, url, name, &doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) fetch(ctx context.Context, url, name string, doc *Packument) error {
	if err := c.Get(ctx, url, doc); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: npm package %s", err, name)
		}
		return err
	}
	return nil
}
