package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates the fabric configuration at path. It has
// no side effects beyond reading the file and fails fast with a
// *Error naming the offending field.
func Load(path string) (*FabricConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError("", "read %s: %v", path, err)
	}
	return Parse(data)
}

// Parse validates a raw configuration document.
func Parse(data []byte) (*FabricConfig, error) {
	var cfg FabricConfig
	// Unknown keys are deliberately tolerated for forward compatibility.
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, newError("", "parse json: %v", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, translateValidation(err)
	}
	if cfg.RAID.Members == 0 {
		cfg.RAID.Members = len(cfg.ExportTargets)
	}
	if err := crossCheck(&cfg); err != nil {
		return nil, err
	}

	for i := range cfg.ExportTargets {
		t := &cfg.ExportTargets[i]
		size, err := humanize.ParseBytes(t.Size)
		if err != nil || size == 0 {
			return nil, newError(fmt.Sprintf("export_targets[%d].size", i),
				"invalid size %q", t.Size)
		}
		t.SizeBytes = size
	}

	return &cfg, nil
}

// crossCheck enforces the relationships struct tags cannot express:
// identifier uniqueness, node references and RAID layout consistency.
func crossCheck(cfg *FabricConfig) error {
	nodeIDs := make(map[string]struct{}, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		if _, dup := nodeIDs[n.ID]; dup {
			return newError(fmt.Sprintf("nodes[%d].id", i), "duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = struct{}{}
	}

	targetIDs := make(map[string]struct{}, len(cfg.ExportTargets))
	for i, t := range cfg.ExportTargets {
		if _, dup := targetIDs[t.ID]; dup {
			return newError(fmt.Sprintf("export_targets[%d].id", i), "duplicate target id %q", t.ID)
		}
		targetIDs[t.ID] = struct{}{}
		if _, ok := nodeIDs[t.NodeID]; !ok {
			return newError(fmt.Sprintf("export_targets[%d].node_id", i),
				"unknown node %q", t.NodeID)
		}
	}

	members := cfg.RAID.Members
	if min := cfg.RAID.MinMembers(); members < min {
		return newError("raid.members",
			"level %q requires at least %d members, got %d", cfg.RAID.Level, min, members)
	}
	if members > len(cfg.ExportTargets) {
		return newError("raid.members",
			"%d members requested but only %d export targets defined",
			members, len(cfg.ExportTargets))
	}

	for i, id := range cfg.Reexport.TargetIDs {
		if strings.TrimSpace(id) == "" {
			return newError(fmt.Sprintf("reexport.target_ids[%d]", i), "empty target id")
		}
	}

	return nil
}

// translateValidation converts a validator error into a *Error naming
// the first offending field in document notation.
func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return newError("", "%v", err)
	}

	fe := verrs[0]
	field := jsonPath(fe.StructNamespace())
	switch fe.Tag() {
	case "required":
		return newError(field, "missing required field")
	case "min":
		return newError(field, "must have at least %s entries", fe.Param())
	case "hostname_port":
		return newError(field, "must be a host:port address, got %q", fe.Value())
	case "hostname_port|url":
		return newError(field, "must be a host:port address or URL, got %q", fe.Value())
	case "oneof":
		return newError(field, "must be one of [%s], got %q", fe.Param(), fe.Value())
	default:
		return newError(field, "failed %q validation", fe.Tag())
	}
}

// jsonPath maps a validator struct namespace like
// "FabricConfig.ExportTargets[1].NodeID" to the document's key style.
func jsonPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 0 {
		parts = parts[1:] // drop the root struct name
	}
	for i, p := range parts {
		idx := ""
		if b := strings.IndexByte(p, '['); b >= 0 {
			idx = p[b:]
			p = p[:b]
		}
		parts[i] = snake(p) + idx
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	switch s {
	case "RAID":
		return "raid"
	case "ID":
		return "id"
	case "NodeID":
		return "node_id"
	case "AggregateID":
		return "aggregate_id"
	case "TargetIDs":
		return "target_ids"
	case "FabricAddress":
		return "fabric_address"
	case "ExportTargets":
		return "export_targets"
	case "CredentialsRef":
		return "credentials_ref"
	}

	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
