package fabric

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/transports/ssh"
)

const nvmetBase = "/sys/kernel/config/nvmet"

// NVMeTargetOptions configure SSH access to storage nodes.
type NVMeTargetOptions struct {
	User           string
	PrivateKeyPath string
	Password       string

	// SSHPort is used for all nodes; the port in fabric_address is the
	// NVMe portal, not the management port.
	SSHPort string
}

// NVMeTargetClient drives the nvmet configfs on storage nodes over
// SSH. Connections are cached per node.
type NVMeTargetClient struct {
	opts NVMeTargetOptions

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewNVMeTargetClient creates a client with the given node access
// options.
func NewNVMeTargetClient(opts NVMeTargetOptions) *NVMeTargetClient {
	if opts.SSHPort == "" {
		opts.SSHPort = "22"
	}
	return &NVMeTargetClient{
		opts:    opts,
		clients: make(map[string]*ssh.Client),
	}
}

// nodeClient returns the cached SSH client for a node, creating one
// on first use.
func (c *NVMeTargetClient) nodeClient(node config.Node) (*ssh.Client, error) {
	host, _, err := net.SplitHostPort(node.FabricAddress)
	if err != nil {
		host = node.FabricAddress
	}
	addr := net.JoinHostPort(host, c.opts.SSHPort)

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[addr]; ok {
		return client, nil
	}
	client, err := ssh.NewClient(&ssh.Config{
		Host:           addr,
		User:           c.opts.User,
		PrivateKeyPath: c.opts.PrivateKeyPath,
		Password:       c.opts.Password,
	})
	if err != nil {
		return nil, err
	}
	c.clients[addr] = client
	return client, nil
}

// CheckNode verifies SSH reachability and that the nvmet target
// driver is loaded.
func (c *NVMeTargetClient) CheckNode(ctx context.Context, node config.Node) error {
	client, err := c.nodeClient(node)
	if err != nil {
		return err
	}
	if _, err := client.Run(ctx, "test -d "+nvmetBase); err != nil {
		return timeoutOr("precheck "+node.ID,
			fmt.Errorf("nvmet target driver not available on %s: %w", node.ID, err))
	}
	return nil
}

// CreateExport creates the subsystem, namespace and portal binding
// for a target. The backing device follows the xiDIS convention
// /dev/xidis/<target_id>, provisioned by the filesystem layer.
func (c *NVMeTargetClient) CreateExport(ctx context.Context, node config.Node, tgt config.ExportTarget) error {
	client, err := c.nodeClient(node)
	if err != nil {
		return err
	}

	host, port, err := net.SplitHostPort(node.FabricAddress)
	if err != nil {
		return fmt.Errorf("bad fabric address %q: %w", node.FabricAddress, err)
	}

	nqn := NQN(node.ID, tgt.ID)
	subsys := nvmetBase + "/subsystems/" + nqn
	portDir := nvmetBase + "/ports/1"

	script := strings.Join([]string{
		fmt.Sprintf("mkdir -p %s", subsys),
		fmt.Sprintf("echo 1 > %s/attr_allow_any_host", subsys),
		fmt.Sprintf("mkdir -p %s/namespaces/1", subsys),
		fmt.Sprintf("echo /dev/xidis/%s > %s/namespaces/1/device_path", tgt.ID, subsys),
		fmt.Sprintf("echo 1 > %s/namespaces/1/enable", subsys),
		fmt.Sprintf("mkdir -p %s", portDir),
		fmt.Sprintf("[ -s %s/addr_traddr ] || { echo %s > %s/addr_traddr; echo tcp > %s/addr_trtype; echo %s > %s/addr_trsvcid; echo ipv4 > %s/addr_adrfam; }",
			portDir, host, portDir, portDir, port, portDir, portDir),
		fmt.Sprintf("ln -sf %s %s/subsystems/%s", subsys, portDir, nqn),
	}, " && ")

	if _, err := client.Run(ctx, script); err != nil {
		return timeoutOr("create export "+nqn, err)
	}
	return nil
}

// ListExports returns the NQNs the node currently exports.
func (c *NVMeTargetClient) ListExports(ctx context.Context, node config.Node) ([]string, error) {
	client, err := c.nodeClient(node)
	if err != nil {
		return nil, err
	}

	out, err := client.Run(ctx, "ls "+nvmetBase+"/subsystems 2>/dev/null || true")
	if err != nil {
		return nil, timeoutOr("list exports "+node.ID, err)
	}
	return strings.Fields(out), nil
}

// DeleteExport unbinds and removes a target's subsystem.
func (c *NVMeTargetClient) DeleteExport(ctx context.Context, node config.Node, tgt config.ExportTarget) error {
	client, err := c.nodeClient(node)
	if err != nil {
		return err
	}

	nqn := NQN(node.ID, tgt.ID)
	subsys := nvmetBase + "/subsystems/" + nqn
	script := strings.Join([]string{
		fmt.Sprintf("rm -f %s/ports/1/subsystems/%s", nvmetBase, nqn),
		fmt.Sprintf("if [ -d %s ]; then echo 0 > %s/namespaces/1/enable 2>/dev/null; rmdir %s/namespaces/1 %s; fi", subsys, subsys, subsys, subsys),
	}, " && ")

	if _, err := client.Run(ctx, script); err != nil {
		return timeoutOr("delete export "+nqn, err)
	}
	return nil
}

// VerifyExport reads the namespace enable attribute over SFTP.
func (c *NVMeTargetClient) VerifyExport(ctx context.Context, node config.Node, tgt config.ExportTarget) error {
	client, err := c.nodeClient(node)
	if err != nil {
		return err
	}

	nqn := NQN(node.ID, tgt.ID)
	data, err := client.ReadFile(ctx, nvmetBase+"/subsystems/"+nqn+"/namespaces/1/enable")
	if err != nil {
		return timeoutOr("verify export "+nqn, err)
	}
	if strings.TrimSpace(string(data)) != "1" {
		return fmt.Errorf("export %s: namespace not enabled", nqn)
	}
	return nil
}

// Close shuts down all cached node connections.
func (c *NVMeTargetClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, client := range c.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.clients = make(map[string]*ssh.Client)
	return firstErr
}

// timeoutOr maps deadline expiry to the retryable timeout class and
// leaves everything else as-is.
func timeoutOr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return engine.NewTimeoutError(op, err)
	}
	return err
}
