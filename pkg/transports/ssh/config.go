package ssh

import (
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// Config describes how to reach a storage node over SSH.
type Config struct {
	// Host is the node address. A bare host defaults to port 22.
	Host string

	// User is the login user. Defaults to "root": nvmet configfs
	// manipulation requires it on stock kernels.
	User string

	// PrivateKeyPath points at the key used for authentication.
	// Password is used when no key is configured.
	PrivateKeyPath string
	Password       string

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// HostKeyCallback overrides host key verification. Defaults to
	// accepting any key; deployments pin keys via known_hosts files.
	HostKeyCallback ssh.HostKeyCallback
}

// Validate checks the config and applies defaults.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		c.User = "root"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	return nil
}

// Addr returns the dial address, defaulting the port to 22.
func (c *Config) Addr() string {
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	return net.JoinHostPort(c.Host, "22")
}

// buildClientConfig assembles the ssh.ClientConfig for this node.
func (c *Config) buildClientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if c.PrivateKeyPath != "" {
		key, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no authentication configured for %s", c.Host)
	}

	hostKey := c.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec // pinning is deployment-specific
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.DialTimeout,
	}, nil
}
