// Package provision runs the two-tier deployment sequence: converge network
// resources, create the back-end and front-end VMs, then configure each host
// over a remote agent session. Everything is sequential and synchronous; any
// failure aborts the run and leaves partial state for manual inspection.
package provision

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"webstack/internal/cloud"
	"webstack/internal/converge"
	"webstack/internal/netcfg"
	"webstack/internal/remote"
	"webstack/internal/transfer"
	"webstack/internal/ui"
)

// Dialer opens an agent session to a provisioned host.
type Dialer func(ctx context.Context, host, user, password string) (remote.Session, error)

// UserInterface is the console surface the deployment talks to.
type UserInterface interface {
	ShowMessage(message string)
	ShowSuccess(message string)
	ShowWarning(message string)
	PromptCredentials(ctx context.Context) (*ui.Credentials, error)
	TrackProgress(ctx context.Context, description string, progressCh <-chan transfer.Progress)
}

// Options configures one deployment run.
type Options struct {
	ServiceName string // Required: hosted service the VMs are created under
	Location    string // Required: platform location for the affinity group

	WebVMName string
	SQLVMName string
	VMSize    string
	ImageName string

	CertFile     string // service certificate uploaded to the platform
	SettingsFile string // application settings pushed to the front end
	SettingsDest string // destination path on the front end
	CatalogEntry string // package-installer catalog entry for the web app

	SQLPort  int
	HTTPPort int
}

// applyDefaults fills derived names and standard ports.
func (o *Options) applyDefaults() {
	if o.WebVMName == "" {
		o.WebVMName = o.ServiceName + "-web"
	}
	if o.SQLVMName == "" {
		o.SQLVMName = o.ServiceName + "-sql"
	}
	if o.SQLPort == 0 {
		o.SQLPort = 1433
	}
	if o.HTTPPort == 0 {
		o.HTTPPort = 80
	}
}

// Deployer orchestrates the deployment sequence.
type Deployer struct {
	client    cloud.Client
	converger *converge.Converger
	uploader  *transfer.Uploader
	dial      Dialer
	ui        UserInterface
}

// NewDeployer wires a deployer from its collaborators.
func NewDeployer(client cloud.Client, uploader *transfer.Uploader, dial Dialer, consoleUI UserInterface) *Deployer {
	return &Deployer{
		client:    client,
		converger: converge.New(client),
		uploader:  uploader,
		dial:      dial,
		ui:        consoleUI,
	}
}

// Run executes the full deployment. Credentials are prompted once and reused
// for both hosts.
func (d *Deployer) Run(ctx context.Context, opts *Options) error {
	if opts.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if opts.Location == "" {
		return fmt.Errorf("location is required")
	}
	opts.applyDefaults()

	creds, err := d.ui.PromptCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect credentials: %w", err)
	}

	affinityGroup := opts.ServiceName + "-ag"
	siteName := opts.ServiceName + "-vnet"
	subnetName := opts.ServiceName + "-subnet"

	d.ui.ShowMessage(fmt.Sprintf("Converging network resources for %s", opts.ServiceName))
	if err := d.converger.EnsureAffinityGroup(ctx, affinityGroup, opts.Location); err != nil {
		return err
	}
	err = d.converger.EnsureVirtualNetwork(ctx, netcfg.SiteRequest{
		Name:          siteName,
		AffinityGroup: affinityGroup,
		SubnetName:    subnetName,
	})
	if err != nil {
		return err
	}

	if opts.CertFile != "" {
		cert, err := os.ReadFile(opts.CertFile)
		if err != nil {
			return fmt.Errorf("failed to read service certificate: %w", err)
		}
		d.ui.ShowMessage("Uploading service certificate")
		if err := d.client.AddCertificate(ctx, opts.ServiceName, cert); err != nil {
			return err
		}
	}

	// Back end first, then front end; the two machines are provisioned and
	// configured one after another.
	sqlVM, err := d.createVM(ctx, opts, creds, opts.SQLVMName, siteName, subnetName, []cloud.Endpoint{
		{Name: "ssh", Protocol: "tcp", Port: 22, LocalPort: 22},
		{Name: "sql", Protocol: "tcp", Port: opts.SQLPort, LocalPort: opts.SQLPort},
	})
	if err != nil {
		return err
	}

	webVM, err := d.createVM(ctx, opts, creds, opts.WebVMName, siteName, subnetName, []cloud.Endpoint{
		{Name: "ssh", Protocol: "tcp", Port: 22, LocalPort: 22},
		{Name: "http", Protocol: "tcp", Port: opts.HTTPPort, LocalPort: opts.HTTPPort},
	})
	if err != nil {
		return err
	}

	if err := d.configureBackEnd(ctx, sqlVM, creds, opts); err != nil {
		return err
	}
	if err := d.configureFrontEnd(ctx, webVM, creds, opts); err != nil {
		return err
	}

	d.ui.ShowSuccess(fmt.Sprintf("Deployment %s complete: web=%s sql=%s",
		opts.ServiceName, webVM.PublicIP, sqlVM.PublicIP))
	return nil
}

func (d *Deployer) createVM(ctx context.Context, opts *Options, creds *ui.Credentials,
	name, siteName, subnetName string, endpoints []cloud.Endpoint) (*cloud.VirtualMachine, error) {

	d.ui.ShowMessage(fmt.Sprintf("Creating virtual machine %s", name))
	vm, err := d.client.CreateVirtualMachine(ctx, cloud.VMSpec{
		ServiceName:   opts.ServiceName,
		Name:          name,
		Size:          opts.VMSize,
		ImageName:     opts.ImageName,
		AdminUser:     creds.Username,
		AdminPassword: creds.Password,
		NetworkSite:   siteName,
		SubnetName:    subnetName,
		Endpoints:     endpoints,
	})
	if err != nil {
		return nil, err
	}
	return vm, nil
}

// configureBackEnd switches the database server to mixed authentication and
// opens the SQL port on the host firewall.
func (d *Deployer) configureBackEnd(ctx context.Context, vm *cloud.VirtualMachine, creds *ui.Credentials, opts *Options) error {
	d.ui.ShowMessage(fmt.Sprintf("Configuring back end %s", vm.Name))

	sess, err := d.dial(ctx, vm.PublicIP, creds.Username, creds.Password)
	if err != nil {
		return fmt.Errorf("failed to open session to %s: %w", vm.Name, err)
	}
	defer sess.Close()

	if _, err := remote.RunAction(ctx, sess, remote.ActionDBAuthMode, "mixed"); err != nil {
		return err
	}
	if _, err := remote.RunAction(ctx, sess, remote.ActionFirewallAllow, strconv.Itoa(opts.SQLPort)); err != nil {
		return err
	}
	return nil
}

// configureFrontEnd installs the web application from the catalog, pushes the
// application settings file, and opens the HTTP port.
func (d *Deployer) configureFrontEnd(ctx context.Context, vm *cloud.VirtualMachine, creds *ui.Credentials, opts *Options) error {
	d.ui.ShowMessage(fmt.Sprintf("Configuring front end %s", vm.Name))

	sess, err := d.dial(ctx, vm.PublicIP, creds.Username, creds.Password)
	if err != nil {
		return fmt.Errorf("failed to open session to %s: %w", vm.Name, err)
	}
	defer sess.Close()

	if opts.CatalogEntry != "" {
		if _, err := remote.RunAction(ctx, sess, remote.ActionInstallEntry, opts.CatalogEntry); err != nil {
			return err
		}
	}

	if opts.SettingsFile != "" {
		progressCh := make(chan transfer.Progress, 16)
		trackDone := make(chan struct{})
		go func() {
			defer close(trackDone)
			d.ui.TrackProgress(ctx, "Pushing settings", progressCh)
		}()

		_, err := d.uploader.Upload(ctx, sess, opts.SettingsFile, opts.SettingsDest, progressCh)
		close(progressCh)
		<-trackDone
		if err != nil {
			return err
		}
	}

	if _, err := remote.RunAction(ctx, sess, remote.ActionFirewallAllow, strconv.Itoa(opts.HTTPPort)); err != nil {
		return err
	}
	return nil
}
