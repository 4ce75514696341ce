package engine

import (
	"fmt"
	"time"

	"github.com/xidis/fabdeploy/pkg/store"
)

// Phase names, in pipeline order. The set is fixed so dependency
// ordering is statically checkable.
const (
	PhasePrecheck          = "precheck"
	PhaseStorageExport     = "storage_export"
	PhaseAggregatorConnect = "aggregator_connect"
	PhaseOpusRAID          = "opus_raid"
	PhaseReexport          = "reexport"
	PhaseVerify            = "verify"

	// PhaseAll selects the full chain.
	PhaseAll = "all"
)

// Resource is an addressable unit acted on by a phase: an export, a
// connection, an aggregate or a re-export. Key is stable across runs
// and derived from config.
type Resource struct {
	// Key identifies the resource within its phase, e.g. "node-a/tgt0".
	Key string

	// Description is a short human-readable summary for logs and tables.
	Description string
}

// RunStatus is the overall status of a pipeline run.
type RunStatus string

const (
	// RunStatusNotStarted indicates the run has been created but no
	// phase has executed yet.
	RunStatusNotStarted RunStatus = "not_started"

	// RunStatusRunning indicates a phase is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted indicates every requested phase succeeded.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed indicates a phase finished with failed resources
	// or a fatal error stopped the run.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the status is final.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// PhaseResult collects the records produced by one phase during a run.
type PhaseResult struct {
	Phase   string
	Records []store.Record
}

// Counts returns the number of records per status.
func (r PhaseResult) Counts() map[store.Status]int {
	counts := make(map[store.Status]int)
	for _, rec := range r.Records {
		counts[rec.Status]++
	}
	return counts
}

// PipelineRun is a single execution instance: a config snapshot, the
// requested phase (or "all") and the records produced. It lives only
// for the duration of the process; persistent state is in the store.
type PipelineRun struct {
	ID             string
	RequestedPhase string
	Status         RunStatus
	FailedPhase    string
	StartedAt      time.Time
	CompletedAt    time.Time
	Phases         []PhaseResult
}

// Duration returns the wall-clock duration of the run.
func (r *PipelineRun) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Summary returns a one-line status summary.
func (r *PipelineRun) Summary() string {
	if r.Status == RunStatusFailed && r.FailedPhase != "" {
		return fmt.Sprintf("run %s %s at phase %s", r.ID, r.Status, r.FailedPhase)
	}
	return fmt.Sprintf("run %s %s", r.ID, r.Status)
}
