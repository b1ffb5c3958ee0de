package models

// ErrorKind discriminates failed lock outcomes so callers can map them to
// user-facing responses without parsing database errors.
type ErrorKind string

const (
	ErrKindNotFound     ErrorKind = "NOT_FOUND"
	ErrKindLockConflict ErrorKind = "LOCK_CONFLICT"
	ErrKindServerError  ErrorKind = "SERVER_ERROR"
)

// Action types recorded on a claim.
const (
	ActionEdit   = "EDIT"
	ActionDelete = "DELETE"
)

// Lockable is implemented by every entity whose edits are claim-protected.
// The claim columns are written exclusively by the lock coordinator; the
// repository omits them on ordinary saves.
type Lockable interface {
	// LockKey returns the primary-key value of the record.
	LockKey() string
	// ClaimState returns the current claim holder and the unix-millisecond
	// stamp of the claim. Both are zero when the record is unclaimed.
	ClaimState() (holder string, stampedAt int64)
}

// LockResource describes one lockable table to the coordinator: a stable
// type name for results and logging, the primary-key column, and a
// prototype factory. The coordinator is parametric over this descriptor
// and never assumes a concrete record type.
type LockResource struct {
	Name       string
	PrimaryKey string
	New        func() Lockable
}

// ClaimInfo describes a live edit claim on a record.
type ClaimInfo struct {
	// ClaimID is a unique identifier for this particular acquisition.
	ClaimID string `json:"claim_id"`
	// ResourceID is the primary key of the claimed record.
	ResourceID string `json:"resource_id"`
	// ResourceType is the LockResource name, e.g. "dashboard_order".
	ResourceType string `json:"resource_type"`
	// Holder is the user ID that holds the claim.
	Holder string `json:"holder"`
	// HolderName is the display name of the holder, filled in by the
	// service layer for UI affordances. Optional.
	HolderName string `json:"holder_name,omitempty"`
	// ActionType is what the holder intends to do (EDIT, DELETE).
	ActionType string `json:"action_type"`
	// AcquiredAt is the unix-millisecond time the claim was stamped.
	AcquiredAt int64 `json:"acquired_at"`
	// ExpiresAt is AcquiredAt plus the coordinator TTL.
	ExpiresAt int64 `json:"expires_at"`
}

// LockResult is the outcome of a single acquire attempt.
type LockResult struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	ErrorKind ErrorKind  `json:"error_code,omitempty"`
	Claim     *ClaimInfo `json:"claim,omitempty"`
}

// BatchLockResult is the outcome of an all-or-nothing multi-record acquire.
type BatchLockResult struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Locks     []ClaimInfo `json:"locks,omitempty"`
	FailedIDs []string    `json:"failed_ids,omitempty"`
}

// ReleaseResult is the outcome of a release.
type ReleaseResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BatchReleaseResult is the outcome of a multi-record release.
type BatchReleaseResult struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// LockStatus is the advisory read-only view of a record's claim state.
// Expired claims are invisible here even though the stale columns remain
// in storage until the next acquire or release.
type LockStatus struct {
	IsLocked bool       `json:"is_locked"`
	Metadata *ClaimInfo `json:"metadata"`
}
