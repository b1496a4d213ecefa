// Package ops tracks long-running operations: per-operation state machines,
// an in-memory store with TTL eviction, and an event publisher for the
// transport layers.
package ops

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Typed errors for the operation registry.
var (
	// ErrOperationNotFound is returned for an unknown operation id.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrForbidden is returned when an operation belongs to another user.
	ErrForbidden = errors.New("operation belongs to another user")
)

// Status is the lifecycle state of an operation.
type Status string

// Lifecycle states. Completed, failed and cancelled are terminal and absorb
// all further transitions.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Snapshot is an immutable view of an operation's state.
type Snapshot struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Status       Status     `json:"status"`
	Progress     float64    `json:"progress"`
	Message      string     `json:"message"`
	ResultsCount int        `json:"results_count"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Operation is the mutable state of one long-running request. All state
// changes go through its transition methods; each operation carries its own
// lock so unrelated operations never contend.
type Operation struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewOperation creates a pending operation owned by userID.
func NewOperation(userID string) *Operation {
	return &Operation{snap: Snapshot{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}}
}

// Snapshot returns a copy of the current state.
func (o *Operation) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snap
}

// ID returns the operation id.
func (o *Operation) ID() string {
	return o.Snapshot().ID
}

// OwnedBy reports whether userID owns this operation.
func (o *Operation) OwnedBy(userID string) bool {
	return o.Snapshot().UserID == userID
}

// Start transitions pending -> running. Returns false if the operation is
// not pending.
func (o *Operation) Start() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.snap.Status != StatusPending {
		return false
	}

	o.snap.Status = StatusRunning

	return true
}

// SetProgress is the running -> running self-transition carrying updated
// progress, message and result count. Ignored in any other state.
func (o *Operation) SetProgress(progress float64, message string, resultsCount int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.snap.Status != StatusRunning {
		return
	}

	o.snap.Progress = progress
	o.snap.Message = message
	o.snap.ResultsCount = resultsCount
}

// Complete transitions to the completed terminal state. Terminal states
// absorb the call.
func (o *Operation) Complete(message string, resultsCount int) {
	o.terminate(StatusCompleted, message, resultsCount)
}

// Fail transitions to the failed terminal state with a human-readable
// message. Terminal states absorb the call.
func (o *Operation) Fail(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.snap.Status.Terminal() {
		return
	}

	now := time.Now()
	o.snap.Status = StatusFailed
	o.snap.Message = message
	o.snap.CompletedAt = &now
}

// Cancel transitions to the cancelled terminal state. Cancelling an already
// terminal operation is a no-op; the first call returns true.
func (o *Operation) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.snap.Status.Terminal() {
		return false
	}

	now := time.Now()
	o.snap.Status = StatusCancelled
	o.snap.Message = "cancelled"
	o.snap.CompletedAt = &now

	return true
}

// Cancelled reports whether the operation was cancelled. Workers poll this
// between commits.
func (o *Operation) Cancelled() bool {
	return o.Snapshot().Status == StatusCancelled
}

func (o *Operation) terminate(status Status, message string, resultsCount int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.snap.Status.Terminal() {
		return
	}

	now := time.Now()
	o.snap.Status = status
	o.snap.Message = message
	o.snap.Progress = 1
	o.snap.ResultsCount = resultsCount
	o.snap.CompletedAt = &now
}
