package cmd

import (
	"fmt"
	"io"
	"log"

	"webstack/internal/remote"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

type AgentFlags struct {
	Stdio   bool
	Listen  string
	LogFile string
}

var agentFlags AgentFlags

// agentCmd represents the agent command
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the remote agent",
	Long: `Run the agent that serves file and configuration operations on a
provisioned host. With --stdio one session is served on stdin/stdout, which
is how the deploy and push commands execute it over SSH. With --listen the
agent accepts WebSocket sessions on the given address.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateAgentFlags(&agentFlags)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAgent(&agentFlags); err != nil {
			log.Fatalf("Agent failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)

	// Define flags with struct binding
	agentCmd.Flags().BoolVar(&agentFlags.Stdio, "stdio", false, "Serve one session on stdin/stdout")
	agentCmd.Flags().StringVar(&agentFlags.Listen, "listen", "", "Serve WebSocket sessions on this address (e.g. :8422)")
	agentCmd.Flags().StringVar(&agentFlags.LogFile, "log-file", "/var/log/webstack-agent.log", "Agent log file")

	// Bind flags to viper for environment variable support
	viper.BindPFlag("agent.listen", agentCmd.Flags().Lookup("listen"))
	viper.BindPFlag("agent.log_file", agentCmd.Flags().Lookup("log-file"))
}

// validateAgentFlags validates the agent command flags
func validateAgentFlags(flags *AgentFlags) error {
	if flags.Stdio == (flags.Listen != "") {
		return fmt.Errorf("exactly one of --stdio or --listen is required")
	}
	return nil
}

// agentLogger builds the agent's logger. In stdio mode stdout carries the
// protocol, so log lines always go to a rotated file.
func agentLogger(flags *AgentFlags) *log.Logger {
	var out io.Writer = &lumberjack.Logger{
		Filename:   flags.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return log.New(out, "agent: ", log.LstdFlags)
}

// runAgent serves agent sessions in the selected mode
func runAgent(flags *AgentFlags) error {
	agent := remote.NewAgent(remote.DefaultActions(), agentLogger(flags))

	if flags.Stdio {
		return agent.ServeStdio()
	}
	return agent.ListenAndServe(flags.Listen)
}
