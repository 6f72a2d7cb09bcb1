package netcfg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureSiteInsertsWhenAbsent(t *testing.T) {
	r := require.New(t)

	doc := Blank()
	changed := EnsureSite(doc, SiteRequest{
		Name:          "webappsubnet-vnet",
		AffinityGroup: "webapp-ag",
		SubnetName:    "webappsubnet",
	})

	r.True(changed)
	site := doc.FindSite("webappsubnet-vnet")
	r.NotNil(site)
	r.Equal("webapp-ag", site.AffinityGroup)
	r.Equal([]string{"10.0.0.0/8"}, site.AddressSpace.Prefixes)
	r.Len(site.Subnets, 1)
	r.Equal("webappsubnet", site.Subnets[0].Name)
	r.Equal("10.0.0.0/8", site.Subnets[0].Prefix)
}

func TestEnsureSiteIsIdempotent(t *testing.T) {
	r := require.New(t)

	doc := Blank()
	req := SiteRequest{Name: "stack-vnet", AffinityGroup: "stack-ag", SubnetName: "stack-subnet"}

	r.True(EnsureSite(doc, req))
	r.False(EnsureSite(doc, req))
	r.Len(doc.Sites, 1)
}

func TestEnsureSiteNeverMutatesExisting(t *testing.T) {
	r := require.New(t)

	doc := Blank()
	r.True(EnsureSite(doc, SiteRequest{
		Name:          "stack-vnet",
		AffinityGroup: "original-ag",
		SubnetName:    "original-subnet",
		AddressPrefix: "172.16.0.0/12",
	}))

	// A conflicting request for the same name changes nothing.
	changed := EnsureSite(doc, SiteRequest{
		Name:          "stack-vnet",
		AffinityGroup: "other-ag",
		SubnetName:    "other-subnet",
	})

	r.False(changed)
	site := doc.FindSite("stack-vnet")
	r.Equal("original-ag", site.AffinityGroup)
	r.Equal([]string{"172.16.0.0/12"}, site.AddressSpace.Prefixes)
	r.Equal("original-subnet", site.Subnets[0].Name)
}

func TestEnsureSitePrefixDefaults(t *testing.T) {
	tests := []struct {
		name        string
		req         SiteRequest
		wantAddress string
		wantSubnet  string
	}{
		{
			name:        "all defaults",
			req:         SiteRequest{Name: "a", SubnetName: "s"},
			wantAddress: "10.0.0.0/8",
			wantSubnet:  "10.0.0.0/8",
		},
		{
			name:        "subnet follows address prefix",
			req:         SiteRequest{Name: "a", SubnetName: "s", AddressPrefix: "192.168.0.0/16"},
			wantAddress: "192.168.0.0/16",
			wantSubnet:  "192.168.0.0/16",
		},
		{
			name:        "explicit subnet prefix",
			req:         SiteRequest{Name: "a", SubnetName: "s", AddressPrefix: "10.0.0.0/8", SubnetPrefix: "10.1.0.0/16"},
			wantAddress: "10.0.0.0/8",
			wantSubnet:  "10.1.0.0/16",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			doc := Blank()
			r.True(EnsureSite(doc, tt.req))
			site := doc.FindSite(tt.req.Name)
			r.Equal([]string{tt.wantAddress}, site.AddressSpace.Prefixes)
			r.Equal(tt.wantSubnet, site.Subnets[0].Prefix)
		})
	}
}

func TestParseMarshalRoundTrip(t *testing.T) {
	r := require.New(t)

	doc := Blank()
	EnsureSite(doc, SiteRequest{
		Name:          "stack-vnet",
		AffinityGroup: "stack-ag",
		SubnetName:    "stack-subnet",
		AddressPrefix: "10.4.0.0/16",
		SubnetPrefix:  "10.4.2.0/24",
	})

	data, err := doc.Marshal()
	r.NoError(err)

	parsed, err := Parse(data)
	r.NoError(err)

	site := parsed.FindSite("stack-vnet")
	r.NotNil(site)
	r.Equal("stack-ag", site.AffinityGroup)
	r.Equal([]string{"10.4.0.0/16"}, site.AddressSpace.Prefixes)
	r.Equal("stack-subnet", site.Subnets[0].Name)
	r.Equal("10.4.2.0/24", site.Subnets[0].Prefix)
}

func TestParseRejectsMalformedDocument(t *testing.T) {
	_, err := Parse([]byte("<NetworkConfiguration><unclosed"))
	require.Error(t, err)
}
