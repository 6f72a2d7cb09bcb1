package remote

import (
	"fmt"
	"os/exec"
	"strconv"
)

// ActionFunc implements one named configuration action. Actions take plain
// string arguments and return their combined output.
type ActionFunc func(args []string) (string, error)

// Action names understood by the default table. Provisioning invokes these on
// the back-end and front-end hosts after the VMs come up.
const (
	ActionFirewallAllow = "firewall.allow"  // args: port
	ActionDBAuthMode    = "db.auth-mode"    // args: mode ("mixed" or "integrated")
	ActionInstallEntry  = "pkg.install"     // args: catalog entry name
	ActionRestartSvc    = "service.restart" // args: service name
)

// DefaultActions returns the action table used by the agent command. Each
// action runs a fixed argv; arguments are validated, never interpolated into
// a shell.
func DefaultActions() map[string]ActionFunc {
	return map[string]ActionFunc{
		ActionFirewallAllow: firewallAllow,
		ActionDBAuthMode:    dbAuthMode,
		ActionInstallEntry:  installEntry,
		ActionRestartSvc:    restartService,
	}
}

func firewallAllow(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("firewall.allow expects exactly one port argument")
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid port: %s", args[0])
	}
	return runCommand("ufw", "allow", strconv.Itoa(port))
}

func dbAuthMode(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("db.auth-mode expects exactly one mode argument")
	}
	mode := args[0]
	if mode != "mixed" && mode != "integrated" {
		return "", fmt.Errorf("unknown auth mode: %s", mode)
	}
	return runCommand("webstack-dbctl", "set-auth-mode", mode)
}

func installEntry(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("pkg.install expects exactly one catalog entry argument")
	}
	return runCommand("webstack-pkgctl", "install", args[0])
}

func restartService(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("service.restart expects exactly one service argument")
	}
	return runCommand("systemctl", "restart", args[0])
}

func runCommand(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s failed: %w: %s", name, err, out)
	}
	return string(out), nil
}
