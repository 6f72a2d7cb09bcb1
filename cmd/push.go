package cmd

import (
	"fmt"
	"log"

	"webstack/internal/remote"
	"webstack/internal/transfer"
	"webstack/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type PushFlags struct {
	FilePath string
	DestPath string
	Host     string
	User     string
}

var pushFlags PushFlags

// pushCmd represents the push command
var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push a file to a provisioned host",
	Long: `Push a local file to a host over an agent session. The destination is
overwritten: any existing file is removed before the first segment is sent,
and the transfer is verified against the source length once complete.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validatePushFlags(&pushFlags)
	},
	Run: func(cmd *cobra.Command, args []string) {
		log.Printf("Pushing %s to %s:%s", pushFlags.FilePath, pushFlags.Host, pushFlags.DestPath)
		if err := runPush(&pushFlags); err != nil {
			log.Fatalf("Push failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)

	// Define flags with struct binding
	pushCmd.Flags().StringVarP(&pushFlags.FilePath, "file", "f", "", "Path to file to push (required)")
	pushCmd.Flags().StringVarP(&pushFlags.DestPath, "dest", "d", "", "Destination path on the host (required)")
	pushCmd.Flags().StringVar(&pushFlags.Host, "host", "", "Host to push to (required)")
	pushCmd.Flags().StringVarP(&pushFlags.User, "user", "u", "", "User to authenticate as (required)")

	// Mark required flags
	pushCmd.MarkFlagRequired("file")
	pushCmd.MarkFlagRequired("dest")
	pushCmd.MarkFlagRequired("host")
	pushCmd.MarkFlagRequired("user")

	// Bind flags to viper for environment variable support
	viper.BindPFlag("push.file", pushCmd.Flags().Lookup("file"))
	viper.BindPFlag("push.host", pushCmd.Flags().Lookup("host"))
	viper.BindPFlag("push.user", pushCmd.Flags().Lookup("user"))
}

// validatePushFlags validates the push command flags
func validatePushFlags(flags *PushFlags) error {
	if flags.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	if flags.DestPath == "" {
		return fmt.Errorf("destination path is required")
	}
	if flags.Host == "" {
		return fmt.Errorf("host is required")
	}
	if flags.User == "" {
		return fmt.Errorf("user is required")
	}
	return nil
}

// runPush opens an agent session and runs a single transfer
func runPush(flags *PushFlags) error {
	ctx := createContext()
	consoleUI := ui.NewConsoleUI()

	password, err := consoleUI.PromptPassword(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect credentials: %w", err)
	}

	sess, err := remote.DialSSH(ctx, &cfg.Remote, flags.Host, flags.User, password)
	if err != nil {
		return fmt.Errorf("failed to open session to %s: %w", flags.Host, err)
	}
	defer sess.Close()

	uploader := transfer.NewUploader(cfg)
	progressCh := make(chan transfer.Progress, 16)
	trackDone := make(chan struct{})
	go func() {
		defer close(trackDone)
		consoleUI.TrackProgress(ctx, "Pushing "+flags.FilePath, progressCh)
	}()

	stat, err := uploader.Upload(ctx, sess, flags.FilePath, flags.DestPath, progressCh)
	close(progressCh)
	<-trackDone
	if err != nil {
		return err
	}

	consoleUI.ShowSuccess(fmt.Sprintf("Pushed %s (%d bytes)", stat.Path, stat.Size))
	return nil
}
