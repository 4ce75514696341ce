package store

import (
	"context"
	"fmt"
	"time"
)

// Status is the last known status of a resource within a phase.
type Status string

const (
	// StatusPending indicates the resource has been planned but not applied.
	StatusPending Status = "pending"

	// StatusApplied indicates the external collaborator confirmed the
	// resource exists in the desired shape.
	StatusApplied Status = "applied"

	// StatusFailed indicates the last apply or verify attempt failed.
	StatusFailed Status = "failed"

	// StatusVerified indicates a read-only end-to-end check confirmed the
	// resource. Only reachable after StatusApplied.
	StatusVerified Status = "verified"
)

// Satisfied reports whether the status counts as complete for
// dependency checking.
func (s Status) Satisfied() bool {
	return s == StatusApplied || s == StatusVerified
}

// Validate checks that the status is one of the known values.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusApplied, StatusFailed, StatusVerified:
		return nil
	default:
		return fmt.Errorf("invalid status: %s", s)
	}
}

// Record is the persisted state of a single resource within a phase.
type Record struct {
	Phase       string    `json:"phase"`
	ResourceKey string    `json:"resource_key"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the snapshot key for a (phase, resource) pair.
func Key(phase, resourceKey string) string {
	return phase + "/" + resourceKey
}

// Store tracks phase records across pipeline runs. Implementations
// must allow concurrent reads from multiple workers and serialize
// writes so that two workers never race on the same record.
type Store interface {
	// Get returns the record for (phase, resourceKey) and whether it exists.
	Get(ctx context.Context, phase, resourceKey string) (Record, bool, error)

	// Put upserts a record. The write is durable before Put returns.
	Put(ctx context.Context, rec Record) error

	// Delete removes a record, if present.
	Delete(ctx context.Context, phase, resourceKey string) error

	// Snapshot returns all records ordered by phase then resource key.
	Snapshot(ctx context.Context) ([]Record, error)

	// Close releases any resources held by the store.
	Close() error
}

// Run is a single pipeline invocation, kept by stores that record
// run history.
type Run struct {
	ID             string     `json:"id"`
	RequestedPhase string     `json:"requested_phase"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Error          *string    `json:"error,omitempty"`
}

// Event is an append-only log entry tied to a run.
type Event struct {
	RunID       string    `json:"run_id"`
	Phase       string    `json:"phase,omitempty"`
	ResourceKey string    `json:"resource_key,omitempty"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunLog is implemented by stores that keep run history alongside
// phase records. The engine uses it when available.
type RunLog interface {
	CreateRun(ctx context.Context, run Run) error
	CompleteRun(ctx context.Context, id, status string, errMsg *string) error
	AppendEvent(ctx context.Context, ev Event) error
}

// Error wraps a persistence failure. Any Error from the store is
// fatal to the run: correctness cannot be guaranteed once state reads
// or writes fail.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
