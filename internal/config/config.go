package config

import (
	"errors"
	"time"
)

var (
	ErrInvalidSegmentSize    = errors.New("transfer segment size must be greater than 0")
	ErrInvalidRemotePort     = errors.New("remote port must be greater than 0")
	ErrInvalidAgentCommand   = errors.New("remote agent command must be set")
	ErrMissingManagementURL  = errors.New("cloud management URL must be set")
	ErrMissingSubscriptionID = errors.New("cloud subscription ID must be set")
	ErrMissingClientCert     = errors.New("cloud client certificate path must be set")
)

// Config holds all application configuration
type Config struct {
	Cloud    CloudConfig    `json:"cloud"`
	Remote   RemoteConfig   `json:"remote"`
	Transfer TransferConfig `json:"transfer"`
}

// CloudConfig holds management API client configuration
type CloudConfig struct {
	ManagementURL  string        `json:"management_url"`
	SubscriptionID string        `json:"subscription_id"`
	ClientCertFile string        `json:"client_cert_file"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// RemoteConfig holds remote agent session configuration
type RemoteConfig struct {
	Port         int           `json:"port"`
	AgentCommand string        `json:"agent_command"`
	DialTimeout  time.Duration `json:"dial_timeout"`
}

// TransferConfig holds chunked file transfer configuration
type TransferConfig struct {
	SegmentSize int `json:"segment_size"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			RequestTimeout: 2 * time.Minute,
		},
		Remote: RemoteConfig{
			Port:         22,
			AgentCommand: "webstack agent --stdio",
			DialTimeout:  30 * time.Second,
		},
		Transfer: TransferConfig{
			SegmentSize: 1024 * 1024, // 1 MiB segments
		},
	}
}

// Validate ensures the configuration is valid for local operations
func (c *Config) Validate() error {
	if c.Transfer.SegmentSize <= 0 {
		return ErrInvalidSegmentSize
	}
	if c.Remote.Port <= 0 {
		return ErrInvalidRemotePort
	}
	if c.Remote.AgentCommand == "" {
		return ErrInvalidAgentCommand
	}
	return nil
}

// ValidateCloud ensures the management API client can be constructed.
// Only the deploy path needs these fields, so they are checked separately.
func (c *Config) ValidateCloud() error {
	if c.Cloud.ManagementURL == "" {
		return ErrMissingManagementURL
	}
	if c.Cloud.SubscriptionID == "" {
		return ErrMissingSubscriptionID
	}
	if c.Cloud.ClientCertFile == "" {
		return ErrMissingClientCert
	}
	return nil
}
