package converge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"webstack/internal/cloud"
	"webstack/internal/netcfg"
)

// fakeClient implements cloud.Client in memory and counts write calls.
type fakeClient struct {
	groups map[string]cloud.AffinityGroup
	netDoc *netcfg.Document

	createGroupCalls int
	setConfigCalls   int
}

func newFakeClient() *fakeClient {
	return &fakeClient{groups: make(map[string]cloud.AffinityGroup)}
}

func (f *fakeClient) GetAffinityGroup(ctx context.Context, name string) (*cloud.AffinityGroup, error) {
	g, ok := f.groups[name]
	if !ok {
		return nil, cloud.ErrNotFound
	}
	return &g, nil
}

func (f *fakeClient) CreateAffinityGroup(ctx context.Context, group cloud.AffinityGroup) error {
	f.createGroupCalls++
	f.groups[group.Name] = group
	return nil
}

func (f *fakeClient) GetNetworkConfig(ctx context.Context) (*netcfg.Document, error) {
	if f.netDoc == nil {
		return nil, cloud.ErrNotFound
	}
	return f.netDoc, nil
}

func (f *fakeClient) SetNetworkConfig(ctx context.Context, doc *netcfg.Document) error {
	f.setConfigCalls++
	f.netDoc = doc
	return nil
}

func (f *fakeClient) CreateVirtualMachine(ctx context.Context, spec cloud.VMSpec) (*cloud.VirtualMachine, error) {
	return nil, cloud.ErrNotFound
}

func (f *fakeClient) GetVirtualMachine(ctx context.Context, serviceName, name string) (*cloud.VirtualMachine, error) {
	return nil, cloud.ErrNotFound
}

func (f *fakeClient) AddCertificate(ctx context.Context, serviceName string, cert []byte) error {
	return nil
}

func TestEnsureAffinityGroupCreatesOnce(t *testing.T) {
	r := require.New(t)
	client := newFakeClient()
	c := New(client)
	ctx := context.Background()

	r.NoError(c.EnsureAffinityGroup(ctx, "stack-ag", "West US"))
	r.Equal(1, client.createGroupCalls)
	r.Equal("West US", client.groups["stack-ag"].Location)
	r.Equal("stack-ag", client.groups["stack-ag"].Label)

	// Second run only queries.
	r.NoError(c.EnsureAffinityGroup(ctx, "stack-ag", "West US"))
	r.Equal(1, client.createGroupCalls)
}

func TestEnsureAffinityGroupKeepsMismatchedLocation(t *testing.T) {
	r := require.New(t)
	client := newFakeClient()
	client.groups["stack-ag"] = cloud.AffinityGroup{Name: "stack-ag", Location: "East US"}
	c := New(client)

	// Different requested location: warn, keep the existing group, succeed.
	r.NoError(c.EnsureAffinityGroup(context.Background(), "stack-ag", "West US"))
	r.Equal(0, client.createGroupCalls)
	r.Equal("East US", client.groups["stack-ag"].Location)
}

func TestEnsureVirtualNetworkBootstrapsBlankDocument(t *testing.T) {
	r := require.New(t)
	client := newFakeClient()
	c := New(client)

	req := netcfg.SiteRequest{Name: "stack-vnet", AffinityGroup: "stack-ag", SubnetName: "stack-subnet"}
	r.NoError(c.EnsureVirtualNetwork(context.Background(), req))

	r.Equal(1, client.setConfigCalls)
	site := client.netDoc.FindSite("stack-vnet")
	r.NotNil(site)
	r.Equal([]string{netcfg.DefaultAddressPrefix}, site.AddressSpace.Prefixes)
}

func TestEnsureVirtualNetworkSkipsPushWhenPresent(t *testing.T) {
	r := require.New(t)
	client := newFakeClient()
	client.netDoc = netcfg.Blank()
	netcfg.EnsureSite(client.netDoc, netcfg.SiteRequest{Name: "stack-vnet", SubnetName: "stack-subnet"})
	c := New(client)

	req := netcfg.SiteRequest{Name: "stack-vnet", AffinityGroup: "stack-ag", SubnetName: "stack-subnet"}
	r.NoError(c.EnsureVirtualNetwork(context.Background(), req))
	r.Equal(0, client.setConfigCalls)
}

func TestEnsureVirtualNetworkIsIdempotent(t *testing.T) {
	r := require.New(t)
	client := newFakeClient()
	c := New(client)
	ctx := context.Background()

	req := netcfg.SiteRequest{Name: "stack-vnet", AffinityGroup: "stack-ag", SubnetName: "stack-subnet"}
	r.NoError(c.EnsureVirtualNetwork(ctx, req))
	r.NoError(c.EnsureVirtualNetwork(ctx, req))

	r.Equal(1, client.setConfigCalls)
	r.Len(client.netDoc.Sites, 1)
}
