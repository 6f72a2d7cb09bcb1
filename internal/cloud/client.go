// Package cloud is the narrow client surface over the platform's management
// API that provisioning needs: query/create affinity groups, get/set the
// network configuration document, create VM deployments, add certificates.
package cloud

import (
	"context"
	"errors"

	"webstack/internal/netcfg"
)

// ErrNotFound is returned by queries when the named resource is absent.
var ErrNotFound = errors.New("resource not found")

// AffinityGroup groups resources into one physical location.
type AffinityGroup struct {
	Name     string
	Label    string
	Location string
}

// VMSpec declares one virtual machine to create.
type VMSpec struct {
	ServiceName   string
	Name          string
	Size          string
	ImageName     string
	AdminUser     string
	AdminPassword string
	NetworkSite   string
	SubnetName    string
	Endpoints     []Endpoint
}

// Endpoint is one public port opened on a VM.
type Endpoint struct {
	Name      string
	Protocol  string
	Port      int
	LocalPort int
}

// VirtualMachine is the platform's view of a created VM.
type VirtualMachine struct {
	ServiceName string
	Name        string
	Status      string
	PublicIP    string
}

// Client is the management API surface consumed by convergence and
// provisioning. Query-by-name methods return ErrNotFound for absent
// resources; create calls surface the platform's diagnostic on failure.
type Client interface {
	GetAffinityGroup(ctx context.Context, name string) (*AffinityGroup, error)
	CreateAffinityGroup(ctx context.Context, group AffinityGroup) error

	GetNetworkConfig(ctx context.Context) (*netcfg.Document, error)
	SetNetworkConfig(ctx context.Context, doc *netcfg.Document) error

	CreateVirtualMachine(ctx context.Context, spec VMSpec) (*VirtualMachine, error)
	GetVirtualMachine(ctx context.Context, serviceName, name string) (*VirtualMachine, error)

	AddCertificate(ctx context.Context, serviceName string, cert []byte) error
}
