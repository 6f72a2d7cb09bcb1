package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"webstack/internal/config"
	"webstack/internal/netcfg"
)

// apiVersion is sent on every management request.
const apiVersion = "2014-06-01"

// APIError carries the platform's diagnostic for a failed call.
type APIError struct {
	StatusCode int
	Code       string `xml:"Code"`
	Message    string `xml:"Message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("management API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// managementClient implements Client against the XML management API, using
// client-certificate authentication.
type managementClient struct {
	baseURL        string
	subscriptionID string
	httpClient     *http.Client
}

// NewManagementClient builds a Client from the cloud configuration. The
// client certificate authenticates every request.
func NewManagementClient(cfg *config.CloudConfig) (Client, error) {
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientCertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
		},
	}

	return &managementClient{
		baseURL:        strings.TrimRight(cfg.ManagementURL, "/"),
		subscriptionID: cfg.SubscriptionID,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
	}, nil
}

func (c *managementClient) url(parts ...string) string {
	return c.baseURL + "/" + c.subscriptionID + "/" + strings.Join(parts, "/")
}

// do issues one request and decodes the platform's error document on non-2xx
// responses. A 404 is reported as ErrNotFound so callers can converge.
func (c *managementClient) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-ms-version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("management request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read management response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := xml.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = string(data)
		}
		return nil, apiErr
	}

	return data, nil
}

type affinityGroupDoc struct {
	XMLName  xml.Name `xml:"AffinityGroup"`
	Name     string   `xml:"Name"`
	Label    string   `xml:"Label"`
	Location string   `xml:"Location"`
}

func (c *managementClient) GetAffinityGroup(ctx context.Context, name string) (*AffinityGroup, error) {
	data, err := c.do(ctx, http.MethodGet, c.url("affinitygroups", name), nil)
	if err != nil {
		return nil, err
	}

	var doc affinityGroupDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse affinity group: %w", err)
	}
	return &AffinityGroup{Name: doc.Name, Label: doc.Label, Location: doc.Location}, nil
}

func (c *managementClient) CreateAffinityGroup(ctx context.Context, group AffinityGroup) error {
	doc := affinityGroupDoc{Name: group.Name, Label: group.Label, Location: group.Location}
	body, err := xml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode affinity group: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPost, c.url("affinitygroups"), body); err != nil {
		return fmt.Errorf("failed to create affinity group %s: %w", group.Name, err)
	}
	return nil
}

func (c *managementClient) GetNetworkConfig(ctx context.Context) (*netcfg.Document, error) {
	data, err := c.do(ctx, http.MethodGet, c.url("services", "networking", "media"), nil)
	if err != nil {
		return nil, err
	}
	return netcfg.Parse(data)
}

func (c *managementClient) SetNetworkConfig(ctx context.Context, doc *netcfg.Document) error {
	body, err := doc.Marshal()
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, http.MethodPut, c.url("services", "networking", "media"), body); err != nil {
		return fmt.Errorf("failed to set network configuration: %w", err)
	}
	return nil
}

type deploymentDoc struct {
	XMLName       xml.Name      `xml:"Deployment"`
	Name          string        `xml:"Name"`
	VMSize        string        `xml:"RoleList>Role>RoleSize"`
	ImageName     string        `xml:"RoleList>Role>OSVirtualHardDisk>SourceImageName"`
	AdminUser     string        `xml:"RoleList>Role>ConfigurationSets>ConfigurationSet>AdminUsername"`
	AdminPassword string        `xml:"RoleList>Role>ConfigurationSets>ConfigurationSet>AdminPassword"`
	SubnetName    string        `xml:"RoleList>Role>ConfigurationSets>ConfigurationSet>SubnetNames>SubnetName"`
	Endpoints     []endpointDoc `xml:"RoleList>Role>ConfigurationSets>ConfigurationSet>InputEndpoints>InputEndpoint"`
	NetworkSite   string        `xml:"VirtualNetworkName"`
}

type endpointDoc struct {
	Name      string `xml:"Name"`
	Protocol  string `xml:"Protocol"`
	Port      int    `xml:"Port"`
	LocalPort int    `xml:"LocalPort"`
}

type vmStatusDoc struct {
	XMLName  xml.Name `xml:"Deployment"`
	Name     string   `xml:"Name"`
	Status   string   `xml:"Status"`
	PublicIP string   `xml:"VirtualIPs>VirtualIP>Address"`
}

func (c *managementClient) CreateVirtualMachine(ctx context.Context, spec VMSpec) (*VirtualMachine, error) {
	doc := deploymentDoc{
		Name:          spec.Name,
		VMSize:        spec.Size,
		ImageName:     spec.ImageName,
		AdminUser:     spec.AdminUser,
		AdminPassword: spec.AdminPassword,
		SubnetName:    spec.SubnetName,
		NetworkSite:   spec.NetworkSite,
	}
	for _, ep := range spec.Endpoints {
		doc.Endpoints = append(doc.Endpoints, endpointDoc{
			Name:      ep.Name,
			Protocol:  ep.Protocol,
			Port:      ep.Port,
			LocalPort: ep.LocalPort,
		})
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deployment: %w", err)
	}

	url := c.url("services", "hostedservices", spec.ServiceName, "deployments")
	if _, err := c.do(ctx, http.MethodPost, url, body); err != nil {
		return nil, fmt.Errorf("failed to create virtual machine %s: %w", spec.Name, err)
	}

	return c.GetVirtualMachine(ctx, spec.ServiceName, spec.Name)
}

func (c *managementClient) GetVirtualMachine(ctx context.Context, serviceName, name string) (*VirtualMachine, error) {
	url := c.url("services", "hostedservices", serviceName, "deployments", name)
	data, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var doc vmStatusDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse deployment: %w", err)
	}
	return &VirtualMachine{
		ServiceName: serviceName,
		Name:        doc.Name,
		Status:      doc.Status,
		PublicIP:    doc.PublicIP,
	}, nil
}

type certificateDoc struct {
	XMLName xml.Name `xml:"CertificateFile"`
	Data    []byte   `xml:"Data"`
	Format  string   `xml:"CertificateFormat"`
}

func (c *managementClient) AddCertificate(ctx context.Context, serviceName string, cert []byte) error {
	body, err := xml.Marshal(certificateDoc{Data: cert, Format: "pfx"})
	if err != nil {
		return fmt.Errorf("failed to encode certificate: %w", err)
	}

	url := c.url("services", "hostedservices", serviceName, "certificates")
	if _, err := c.do(ctx, http.MethodPost, url, body); err != nil {
		return fmt.Errorf("failed to add certificate to %s: %w", serviceName, err)
	}
	return nil
}
