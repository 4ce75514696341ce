package fabric

import (
	"context"
	"fmt"

	"github.com/xidis/fabdeploy/pkg/config"
)

// NQNPrefix is the NVMe qualified name prefix for all xiDIS exports.
const NQNPrefix = "nqn.2025-01.io.xidis"

// NQN derives the stable NVMe qualified name of an export.
func NQN(nodeID, targetID string) string {
	return fmt.Sprintf("%s:%s.%s", NQNPrefix, nodeID, targetID)
}

// Export describes a fabric export as seen by the aggregator.
type Export struct {
	NQN       string
	NodeID    string
	TargetID  string
	Address   string // NVMe-oF portal address of the owning node
	SizeBytes uint64
}

// Connection is the aggregator's view of one attachment to an export.
type Connection struct {
	NQN   string `json:"nqn"`
	State string `json:"state"` // "connected", "connecting", "failed"
}

// AggregateSpec is the desired Opus aggregate layout.
type AggregateSpec struct {
	ID      string   `json:"id"`
	Level   string   `json:"level"`
	Members []string `json:"members"` // export NQNs
}

// AggregateState is the Opus engine's view of an aggregate.
type AggregateState struct {
	ID      string   `json:"id"`
	Level   string   `json:"level"`
	Members []string `json:"members"`
	State   string   `json:"state"` // "online", "degraded", "building"
}

// ReexportState is the aggregator's view of one downstream re-export.
type ReexportState struct {
	TargetID    string `json:"target_id"`
	AggregateID string `json:"aggregate_id"`
	State       string `json:"state"` // "exported", "pending"
}

// ExportClient is the NVMe-oF target collaborator on storage nodes.
type ExportClient interface {
	// CheckNode verifies the node is reachable and the nvmet target
	// driver is present. Read-only.
	CheckNode(ctx context.Context, node config.Node) error

	// CreateExport creates the NVMe-oF subsystem and namespace for a
	// target and exposes it on the node's portal.
	CreateExport(ctx context.Context, node config.Node, tgt config.ExportTarget) error

	// ListExports returns the NQNs currently exported by the node.
	ListExports(ctx context.Context, node config.Node) ([]string, error)

	// DeleteExport removes a target's subsystem. Removing an absent
	// export succeeds.
	DeleteExport(ctx context.Context, node config.Node, tgt config.ExportTarget) error

	// VerifyExport confirms the namespace is enabled, without mutating
	// anything.
	VerifyExport(ctx context.Context, node config.Node, tgt config.ExportTarget) error
}

// AggregatorClient is the aggregation-layer collaborator.
type AggregatorClient interface {
	// Connect attaches the aggregator to an export.
	Connect(ctx context.Context, export Export) error

	// Disconnect detaches the aggregator from an export. Disconnecting
	// an absent attachment succeeds.
	Disconnect(ctx context.Context, nqn string) error

	// ConnectionStatus reports the attachment for an NQN, and whether
	// one exists.
	ConnectionStatus(ctx context.Context, nqn string) (Connection, bool, error)

	// CreateReexport re-exposes an aggregate to a downstream target.
	CreateReexport(ctx context.Context, aggregateID, targetID string) error

	// ReexportStatus reports a downstream re-export, and whether it
	// exists.
	ReexportStatus(ctx context.Context, targetID string) (ReexportState, bool, error)

	// DeleteReexport removes a downstream re-export. Removing an
	// absent re-export succeeds.
	DeleteReexport(ctx context.Context, targetID string) error
}

// OpusClient is the RAID/aggregate construction collaborator.
type OpusClient interface {
	// CreateAggregate builds the aggregate from connected members.
	CreateAggregate(ctx context.Context, spec AggregateSpec) error

	// AggregateStatus reports an aggregate, and whether it exists.
	AggregateStatus(ctx context.Context, id string) (AggregateState, bool, error)
}

// Clients bundles the three collaborators for phase construction.
type Clients struct {
	Exports    ExportClient
	Aggregator AggregatorClient
	Opus       OpusClient
}
