// Package converge brings cloud resources to their declared state with
// check-then-create calls. Existing resources are never mutated; attribute
// mismatches are warned about and left alone.
package converge

import (
	"context"
	"errors"
	"fmt"
	"log"

	"webstack/internal/cloud"
	"webstack/internal/netcfg"
)

// Converger performs idempotent resource convergence against one client.
type Converger struct {
	client cloud.Client
}

// New creates a converger over the given client.
func New(client cloud.Client) *Converger {
	return &Converger{client: client}
}

// EnsureAffinityGroup creates the named affinity group when absent. When the
// group already exists in a different location, a warning is logged and the
// existing group is kept as-is.
func (c *Converger) EnsureAffinityGroup(ctx context.Context, name, location string) error {
	existing, err := c.client.GetAffinityGroup(ctx, name)
	if err != nil && !errors.Is(err, cloud.ErrNotFound) {
		return fmt.Errorf("failed to query affinity group %s: %w", name, err)
	}

	if existing != nil {
		if existing.Location != location {
			log.Printf("Warning: affinity group %s exists in location %q, requested %q; keeping existing",
				name, existing.Location, location)
		}
		return nil
	}

	log.Printf("Creating affinity group %s in %s", name, location)
	err = c.client.CreateAffinityGroup(ctx, cloud.AffinityGroup{
		Name:     name,
		Label:    name,
		Location: location,
	})
	if err != nil {
		return fmt.Errorf("failed to create affinity group %s: %w", name, err)
	}
	return nil
}

// EnsureVirtualNetwork merges the requested site into the platform's network
// configuration. When the platform has no configuration yet, a blank document
// is bootstrapped first. The merged document is pushed back only when the
// merge actually changed it.
func (c *Converger) EnsureVirtualNetwork(ctx context.Context, req netcfg.SiteRequest) error {
	doc, err := c.client.GetNetworkConfig(ctx)
	if errors.Is(err, cloud.ErrNotFound) {
		doc = netcfg.Blank()
	} else if err != nil {
		return fmt.Errorf("failed to fetch network configuration: %w", err)
	}

	if !netcfg.EnsureSite(doc, req) {
		log.Printf("Virtual network site %s already present", req.Name)
		return nil
	}

	log.Printf("Adding virtual network site %s (affinity group %s)", req.Name, req.AffinityGroup)
	if err := c.client.SetNetworkConfig(ctx, doc); err != nil {
		return fmt.Errorf("failed to push network configuration: %w", err)
	}
	return nil
}
