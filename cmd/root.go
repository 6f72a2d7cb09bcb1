package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"webstack/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg     *config.Config
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webstack",
	Short: "webstack - two-tier deployment provisioning tool",
	Long: `webstack provisions a two-tier deployment (front-end web server plus
back-end SQL server), converges the network resources it needs, and pushes
files to the provisioned hosts over a remote agent session.

Usage:
  Deploy a stack:     webstack deploy --service mystack --location "West US"
  Push a file:        webstack push --file app.config --dest /opt/app/app.config --host 1.2.3.4 --user admin
  Run the agent:      webstack agent --stdio`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize viper configuration
		initConfig()

		// Initialize configuration
		cfg = config.NewDefaultConfig()
		applyViperOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.webstack.yaml)")

	// Set up viper environment variable support
	viper.SetEnvPrefix("WEBSTACK")
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			log.Printf("Warning: Could not find home directory: %v", err)
			return
		}

		// Search config in home directory with name ".webstack" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".webstack")
	}

	// Read in environment variables that match
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		log.Printf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// applyViperOverrides copies any values set via config file or environment
// onto the default configuration.
func applyViperOverrides(c *config.Config) {
	if v := viper.GetString("cloud.management_url"); v != "" {
		c.Cloud.ManagementURL = v
	}
	if v := viper.GetString("cloud.subscription_id"); v != "" {
		c.Cloud.SubscriptionID = v
	}
	if v := viper.GetString("cloud.client_cert_file"); v != "" {
		c.Cloud.ClientCertFile = v
	}
	if v := viper.GetInt("remote.port"); v != 0 {
		c.Remote.Port = v
	}
	if v := viper.GetString("remote.agent_command"); v != "" {
		c.Remote.AgentCommand = v
	}
	if v := viper.GetInt("transfer.segment_size"); v != 0 {
		c.Transfer.SegmentSize = v
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// createContext creates a context that cancels on interrupt signals
func createContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	return ctx
}
