// Package ssh is the transport used to drive storage nodes: command
// execution for nvmet configfs changes and SFTP reads for
// verification.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// Client is an SSH connection to one storage node. Safe for
// concurrent use; sessions are created per command.
type Client struct {
	config *Config

	mu     sync.Mutex
	client *ssh.Client
}

// NewClient creates a client for the node described by config. No
// connection is made until the first call.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ssh config: %w", err)
	}
	return &Client{config: config}, nil
}

// connect returns the underlying connection, dialing on first use.
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	clientConfig, err := c.config.buildClientConfig()
	if err != nil {
		return nil, err
	}

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	done := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", c.config.Addr(), clientConfig)
		done <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("dial %s: %w", c.config.Addr(), res.err)
		}
		log.Debug().Str("host", c.config.Addr()).Msg("ssh connected")
		c.client = res.client
		return c.client, nil
	}
}

// Run executes a command on the node and returns trimmed stdout.
// The context deadline bounds the whole call; on expiry the session
// is signalled and the context error is returned.
func (c *Client) Run(ctx context.Context, cmd string) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		return "", ctx.Err()
	case err = <-done:
	}

	log.Debug().
		Str("host", c.config.Addr()).
		Str("command", cmd).
		Dur("duration", time.Since(start)).
		Msg("command executed")

	if err != nil {
		return "", fmt.Errorf("run %q: %w (stderr: %s)", cmd, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ReadFile retrieves a remote file over SFTP. Used to read nvmet
// configfs attributes without shell quoting hazards.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("sftp: %w", err)
	}
	defer sftpClient.Close()

	type readResult struct {
		data []byte
		err  error
	}
	done := make(chan readResult, 1)
	go func() {
		f, err := sftpClient.Open(path)
		if err != nil {
			done <- readResult{nil, err}
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		done <- readResult{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("read %s: %w", path, res.err)
		}
		return res.data, nil
	}
}

// Close shuts down the connection, if open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
