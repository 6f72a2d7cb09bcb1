package cmd

import (
	"context"
	"fmt"
	"log"

	"webstack/internal/cloud"
	"webstack/internal/provision"
	"webstack/internal/remote"
	"webstack/internal/transfer"
	"webstack/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type DeployFlags struct {
	ServiceName  string
	Location     string
	WebVMName    string
	SQLVMName    string
	VMSize       string
	ImageName    string
	CertFile     string
	SettingsFile string
	SettingsDest string
	CatalogEntry string
}

var deployFlags DeployFlags

// deployCmd represents the deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Provision a two-tier web/SQL deployment",
	Long: `Provision a complete two-tier deployment. This will:

1. Prompt once for the admin credentials used on both machines
2. Converge the affinity group and virtual network the deployment needs
3. Upload the service certificate
4. Create the back-end SQL machine, then the front-end web machine
5. Configure the back end (mixed database authentication, SQL firewall rule)
6. Configure the front end (catalog install, settings push, HTTP firewall rule)

Any failure aborts the run; partial state is left for manual inspection.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateDeployFlags(&deployFlags)
	},
	Run: func(cmd *cobra.Command, args []string) {
		log.Printf("Starting deployment: %s", deployFlags.ServiceName)
		if err := runDeploy(&deployFlags); err != nil {
			log.Fatalf("Deployment failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)

	// Define flags with struct binding
	deployCmd.Flags().StringVarP(&deployFlags.ServiceName, "service", "s", "", "Hosted service name (required)")
	deployCmd.Flags().StringVarP(&deployFlags.Location, "location", "l", "", "Platform location for the affinity group (required)")
	deployCmd.Flags().StringVar(&deployFlags.WebVMName, "web-name", "", "Front-end machine name (default <service>-web)")
	deployCmd.Flags().StringVar(&deployFlags.SQLVMName, "sql-name", "", "Back-end machine name (default <service>-sql)")
	deployCmd.Flags().StringVar(&deployFlags.VMSize, "size", "Medium", "Machine size for both machines")
	deployCmd.Flags().StringVar(&deployFlags.ImageName, "image", "", "Platform image both machines boot from (required)")
	deployCmd.Flags().StringVar(&deployFlags.CertFile, "cert", "", "Service certificate to upload")
	deployCmd.Flags().StringVar(&deployFlags.SettingsFile, "settings", "", "Application settings file pushed to the front end")
	deployCmd.Flags().StringVar(&deployFlags.SettingsDest, "settings-dest", "", "Destination path for the settings file")
	deployCmd.Flags().StringVar(&deployFlags.CatalogEntry, "catalog-entry", "", "Package-installer catalog entry for the web application")

	// Mark required flags
	deployCmd.MarkFlagRequired("service")
	deployCmd.MarkFlagRequired("location")
	deployCmd.MarkFlagRequired("image")

	// Bind flags to viper for environment variable support
	viper.BindPFlag("deploy.service", deployCmd.Flags().Lookup("service"))
	viper.BindPFlag("deploy.location", deployCmd.Flags().Lookup("location"))
	viper.BindPFlag("deploy.size", deployCmd.Flags().Lookup("size"))
	viper.BindPFlag("deploy.image", deployCmd.Flags().Lookup("image"))
}

// validateDeployFlags validates the deploy command flags
func validateDeployFlags(flags *DeployFlags) error {
	if flags.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if flags.Location == "" {
		return fmt.Errorf("location is required")
	}
	if flags.ImageName == "" {
		return fmt.Errorf("image name is required")
	}
	if flags.SettingsFile != "" && flags.SettingsDest == "" {
		return fmt.Errorf("settings destination is required when a settings file is given")
	}
	return nil
}

// runDeploy wires the deployment services and runs the sequence
func runDeploy(flags *DeployFlags) error {
	if err := cfg.ValidateCloud(); err != nil {
		return fmt.Errorf("invalid cloud configuration: %w", err)
	}

	ctx := createContext()

	client, err := cloud.NewManagementClient(&cfg.Cloud)
	if err != nil {
		return fmt.Errorf("failed to create management client: %w", err)
	}

	dial := func(ctx context.Context, host, user, password string) (remote.Session, error) {
		return remote.DialSSH(ctx, &cfg.Remote, host, user, password)
	}

	deployer := provision.NewDeployer(client, transfer.NewUploader(cfg), dial, ui.NewConsoleUI())

	opts := &provision.Options{
		ServiceName:  flags.ServiceName,
		Location:     flags.Location,
		WebVMName:    flags.WebVMName,
		SQLVMName:    flags.SQLVMName,
		VMSize:       flags.VMSize,
		ImageName:    flags.ImageName,
		CertFile:     flags.CertFile,
		SettingsFile: flags.SettingsFile,
		SettingsDest: flags.SettingsDest,
		CatalogEntry: flags.CatalogEntry,
	}
	return deployer.Run(ctx, opts)
}
