package registry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matzehuels/lockmirror/pkg/integrations"
)

// RescanClient asks a running registry to rebuild its index.
type RescanClient struct {
	base   string
	client *integrations.Client
}

// NewRescanClient returns a client for the registry at base.
func NewRescanClient(base string) *RescanClient {
	return &RescanClient{
		base:   base,
		client: integrations.NewClient(nil, "", 0, nil, integrations.WithTimeout(10*time.Second)),
	}
}

// Reindex triggers a rescan and returns the package count the server
// reports.
func (c *RescanClient) Reindex(ctx context.Context) (int, error) {
	body, err := c.client.Open(ctx, integrations.JoinURL(c.base, "/-/rescan"))
	if err != nil {
		return 0, fmt.Errorf("rescan %s: %w", c.base, err)
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return 0, fmt.Errorf("rescan %s: %w", c.base, err)
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(data)), "rescan ok, %d packages", &n); err != nil {
		return 0, fmt.Errorf("rescan %s: unexpected reply %q", c.base, data)
	}
	return n, nil
}
