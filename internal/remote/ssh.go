package remote

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/crypto/ssh"

	"webstack/internal/config"
)

// sshConn holds the SSH plumbing underneath a stdio FrameConn so that closing
// the session tears the whole connection down.
type sshConn struct {
	FrameConn
	sess   *ssh.Session
	client *ssh.Client
}

func (c *sshConn) Close() error {
	c.sess.Close()
	return c.client.Close()
}

// DialSSH connects to host, starts the remote agent in stdio mode over an SSH
// channel, and performs the protocol handshake.
func DialSSH(ctx context.Context, cfg *config.RemoteConfig, host, user, password string) (Session, error) {
	clientConfig := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
		},
		// Hosts are freshly provisioned by this tool; there is no prior
		// known_hosts entry to pin against.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.DialTimeout,
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", cfg.Port))
	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open SSH session: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("failed to open agent stdin: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("failed to open agent stdout: %w", err)
	}

	if err := sess.Start(cfg.AgentCommand); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("failed to start remote agent: %w", err)
	}

	conn := &sshConn{
		FrameConn: NewStdioConn(stdout, stdin, nil),
		sess:      sess,
		client:    client,
	}

	return NewSession(ctx, conn)
}
