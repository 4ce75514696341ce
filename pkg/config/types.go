package config

import (
	"fmt"
)

// FabricConfig describes the desired topology of the storage fabric.
// It is immutable once loaded for a run and safely shared without
// locking.
type FabricConfig struct {
	// Nodes are the storage nodes that export local namespaces.
	Nodes []Node `json:"nodes" validate:"required,min=1,dive"`

	// ExportTargets are the NVMe-oF exports to create, one per local
	// namespace on a storage node.
	ExportTargets []ExportTarget `json:"export_targets" validate:"required,min=1,dive"`

	// Aggregator is the control-plane endpoint that attaches to the
	// exports and hosts the aggregate.
	Aggregator Aggregator `json:"aggregator"`

	// RAID describes the Opus aggregate layout.
	RAID RAID `json:"raid"`

	// Reexport lists the downstream targets the aggregate is re-exposed to.
	Reexport Reexport `json:"reexport"`
}

// Node is a storage node participating in the fabric.
type Node struct {
	// ID uniquely identifies the node within the config.
	ID string `json:"id" validate:"required"`

	// FabricAddress is the node's NVMe-oF portal address (host:port).
	FabricAddress string `json:"fabric_address" validate:"required,hostname_port"`
}

// ExportTarget is a single NVMe-oF export on a storage node.
type ExportTarget struct {
	// ID uniquely identifies the export within the config.
	ID string `json:"id" validate:"required"`

	// NodeID references the owning node.
	NodeID string `json:"node_id" validate:"required"`

	// Size is the namespace size, e.g. "64 GiB".
	Size string `json:"size" validate:"required"`

	// SizeBytes is the parsed size. Populated by Load.
	SizeBytes uint64 `json:"-"`
}

// Aggregator is the aggregation-layer endpoint.
type Aggregator struct {
	// Endpoint is the aggregator control-plane base URL or host:port.
	Endpoint string `json:"endpoint" validate:"required,hostname_port|url"`

	// CredentialsRef names the environment variable holding the bearer
	// token for the aggregator API. Optional.
	CredentialsRef string `json:"credentials_ref"`
}

// RAID describes the aggregate layout built from connected exports.
type RAID struct {
	// Level is the redundancy scheme: mirror, stripe or raid5.
	Level string `json:"level" validate:"required,oneof=mirror stripe raid5"`

	// Members is the number of exports composed into the aggregate.
	// Defaults to the number of export targets.
	Members int `json:"members" validate:"gte=0"`

	// AggregateID names the aggregate volume.
	AggregateID string `json:"aggregate_id" validate:"required"`
}

// MinMembers returns the minimum member count for the requested level.
func (r RAID) MinMembers() int {
	switch r.Level {
	case "mirror":
		return 2
	case "raid5":
		return 3
	default:
		return 1
	}
}

// Reexport describes how the aggregate is re-exposed downstream.
type Reexport struct {
	// TargetIDs are the downstream export identifiers.
	TargetIDs []string `json:"target_ids"`
}

// NodeByID returns the node with the given ID.
func (c *FabricConfig) NodeByID(id string) (Node, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// TargetByID returns the export target with the given ID.
func (c *FabricConfig) TargetByID(id string) (ExportTarget, bool) {
	for _, t := range c.ExportTargets {
		if t.ID == id {
			return t, true
		}
	}
	return ExportTarget{}, false
}

// TargetsForNode returns the export targets owned by a node, in
// config order.
func (c *FabricConfig) TargetsForNode(nodeID string) []ExportTarget {
	var out []ExportTarget
	for _, t := range c.ExportTargets {
		if t.NodeID == nodeID {
			out = append(out, t)
		}
	}
	return out
}

// Error is a fatal configuration error, reported before any phase
// runs. Field names the offending document field.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid config: %s", e.Msg)
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Msg)
}

func newError(field, format string, args ...any) *Error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}
