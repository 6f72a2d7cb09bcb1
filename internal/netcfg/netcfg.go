// Package netcfg models the platform's network configuration document. The
// document is fetched from the control plane, merged in memory, and pushed
// back whole; no in-place mutation of the remote copy ever happens.
package netcfg

import (
	"encoding/xml"
	"fmt"
)

// DefaultAddressPrefix is the address space given to a site inserted by the
// merge when the caller does not override it.
const DefaultAddressPrefix = "10.0.0.0/8"

// Document is the root of the network configuration.
type Document struct {
	XMLName xml.Name `xml:"NetworkConfiguration"`
	Sites   []Site   `xml:"VirtualNetworkConfiguration>VirtualNetworkSites>VirtualNetworkSite"`
}

// Site is one named virtual network site.
type Site struct {
	Name          string       `xml:"name,attr"`
	AffinityGroup string       `xml:"AffinityGroup,attr"`
	AddressSpace  AddressSpace `xml:"AddressSpace"`
	Subnets       []Subnet     `xml:"Subnets>Subnet"`
}

// AddressSpace lists the CIDR prefixes assigned to a site.
type AddressSpace struct {
	Prefixes []string `xml:"AddressPrefix"`
}

// Subnet is one named subnet within a site's address space.
type Subnet struct {
	Name   string `xml:"name,attr"`
	Prefix string `xml:"AddressPrefix"`
}

// SiteRequest describes the desired shape of one site for the merge.
type SiteRequest struct {
	Name          string
	AffinityGroup string
	SubnetName    string
	AddressPrefix string // defaults to DefaultAddressPrefix
	SubnetPrefix  string // defaults to AddressPrefix
}

// Blank returns an empty document, used to bootstrap a platform that has no
// network configuration yet.
func Blank() *Document {
	return &Document{}
}

// Parse decodes a network configuration document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse network configuration: %w", err)
	}
	return &doc, nil
}

// Marshal encodes the document for pushing back to the control plane.
func (d *Document) Marshal() ([]byte, error) {
	data, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode network configuration: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// FindSite returns the named site, or nil when absent.
func (d *Document) FindSite(name string) *Site {
	for i := range d.Sites {
		if d.Sites[i].Name == name {
			return &d.Sites[i]
		}
	}
	return nil
}

// EnsureSite inserts the requested site when it is absent and reports whether
// the document changed. An existing site of the same name is never mutated,
// whatever its attributes; convergence warns on mismatches instead.
func EnsureSite(doc *Document, req SiteRequest) bool {
	if doc.FindSite(req.Name) != nil {
		return false
	}

	addressPrefix := req.AddressPrefix
	if addressPrefix == "" {
		addressPrefix = DefaultAddressPrefix
	}
	subnetPrefix := req.SubnetPrefix
	if subnetPrefix == "" {
		subnetPrefix = addressPrefix
	}

	doc.Sites = append(doc.Sites, Site{
		Name:          req.Name,
		AffinityGroup: req.AffinityGroup,
		AddressSpace:  AddressSpace{Prefixes: []string{addressPrefix}},
		Subnets: []Subnet{
			{Name: req.SubnetName, Prefix: subnetPrefix},
		},
	})
	return true
}
