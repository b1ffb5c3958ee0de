package lockmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/translogix/tms/internal/models"
	"github.com/translogix/tms/internal/obs"
	"github.com/translogix/tms/pkg/logger"
)

const (
	// DefaultClaimTTL is how long a stamped claim is honored without a
	// refresh. Expiry is lazy: nothing sweeps stale claims, they are simply
	// ignored once older than the TTL.
	DefaultClaimTTL = 5 * time.Minute
	// DefaultRetries is the number of additional attempts after the first
	// one when the database reports row-lock contention.
	DefaultRetries = 2
	// DefaultRetryDelay is the wait between contention retries.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Coordinator arbitrates concurrent edit access to claim-protected records.
// It uses the database's native row lock (SELECT ... FOR UPDATE inside a
// short transaction) as the arbitration primitive, so mutual exclusion
// survives process restarts and holds across server instances. The
// Coordinator keeps no per-record state in process; all coordination state
// lives in the claim columns of the record itself.
type Coordinator struct {
	db      *gorm.DB
	logger  *logger.Logger
	metrics *obs.Metrics

	ttl        time.Duration
	retries    int
	retryDelay time.Duration

	// allowTakeover restores the permissive policy where acquiring a record
	// claimed by someone else simply overwrites the holder. Off by default;
	// the safe policy rejects such acquires with LOCK_CONFLICT.
	allowTakeover bool

	// rowLock is false on engines without SELECT ... FOR UPDATE (SQLite
	// serializes writers at the file level, the clause is a syntax error
	// there).
	rowLock bool
}

type Option func(*Coordinator)

func WithTTL(d time.Duration) Option {
	return func(c *Coordinator) { c.ttl = d }
}

func WithRetries(n int) Option {
	return func(c *Coordinator) { c.retries = n }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.retryDelay = d }
}

func WithTakeover() Option {
	return func(c *Coordinator) { c.allowTakeover = true }
}

func WithMetrics(m *obs.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func New(db *gorm.DB, log *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		db:         db,
		logger:     log,
		ttl:        DefaultClaimTTL,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		rowLock:    supportsRowLock(db),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// claimHeldError is returned from inside the acquire transaction when the
// record is claimed by another caller within the TTL and takeover is off.
type claimHeldError struct {
	holder string
}

func (e *claimHeldError) Error() string {
	return fmt.Sprintf("record claimed by %s", e.holder)
}

// notHolderError is returned from inside the release transaction when the
// caller does not hold the claim.
type notHolderError struct {
	holder string
}

func (e *notHolderError) Error() string {
	return fmt.Sprintf("claim held by %s, not by caller", e.holder)
}

// Acquire stamps an exclusive edit claim on the record identified by id.
// The row fetch and the stamp happen inside one transaction holding the
// row lock, so among concurrent callers exactly one commits first; the
// database lock is released at commit and the logical claim persists as
// ordinary row data afterward. Contention errors are retried a bounded
// number of times with a fixed delay, then surfaced as LOCK_CONFLICT.
// A caller re-acquiring their own claim succeeds and refreshes the stamp.
func (c *Coordinator) Acquire(ctx context.Context, res models.LockResource, id, callerID, actionType string) models.LockResult {
	start := time.Now()
	defer c.observeLatency("acquire", start)

	if id == "" || callerID == "" {
		return models.LockResult{
			Success:   false,
			ErrorKind: models.ErrKindServerError,
			Message:   "resource id and caller id are required",
		}
	}
	if actionType == "" {
		actionType = models.ActionEdit
	}

	for attempt := 1; ; attempt++ {
		result, contended := c.tryAcquire(ctx, res, id, callerID, actionType)
		if !contended {
			c.countAcquire(result)
			return result
		}

		if c.metrics != nil {
			c.metrics.ContentionTotal.WithLabelValues(res.Name).Inc()
		}
		c.logger.Warn("Row-lock contention on acquire ",
			"resource ", res.Name, "id ", id, "attempt ", attempt)

		if attempt > c.retries {
			c.countResult(c.metrics, "acquire", "conflict")
			return models.LockResult{
				Success:   false,
				ErrorKind: models.ErrKindLockConflict,
				Message:   "another user is currently editing this record",
			}
		}
		if err := waitRetry(ctx, c.retryDelay); err != nil {
			c.countResult(c.metrics, "acquire", "error")
			return models.LockResult{
				Success:   false,
				ErrorKind: models.ErrKindServerError,
				Message:   "acquire aborted: " + err.Error(),
			}
		}
	}
}

// tryAcquire runs a single lock-and-stamp transaction. The second return
// value reports whether the failure was row-lock contention and the caller
// should retry.
func (c *Coordinator) tryAcquire(ctx context.Context, res models.LockResource, id, callerID, actionType string) (models.LockResult, bool) {
	stamp := time.Now().UnixMilli()
	var takenFrom string

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := res.New()
		if err := c.lockedFetch(tx, res, id, rec); err != nil {
			return err
		}

		holder, stampedAt := rec.ClaimState()
		if holder != "" && holder != callerID && !c.claimExpired(stampedAt, stamp) {
			if !c.allowTakeover {
				return &claimHeldError{holder: holder}
			}
			takenFrom = holder
		}

		return tx.Model(rec).UpdateColumns(map[string]interface{}{
			"claim_holder":     callerID,
			"claim_stamped_at": stamp,
		}).Error
	})

	var held *claimHeldError
	switch {
	case err == nil:
		if takenFrom != "" {
			c.logger.Warn("Edit claim taken over ",
				"resource ", res.Name, "id ", id, "from ", takenFrom, "to ", callerID)
		}
		c.logger.Debug("Edit claim acquired ",
			"resource ", res.Name, "id ", id, "holder ", callerID)
		return models.LockResult{
			Success: true,
			Message: "lock acquired",
			Claim: &models.ClaimInfo{
				ClaimID:      uuid.NewString(),
				ResourceID:   id,
				ResourceType: res.Name,
				Holder:       callerID,
				ActionType:   actionType,
				AcquiredAt:   stamp,
				ExpiresAt:    stamp + c.ttl.Milliseconds(),
			},
		}, false

	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.LockResult{
			Success:   false,
			ErrorKind: models.ErrKindNotFound,
			Message:   fmt.Sprintf("%s %s not found", res.Name, id),
		}, false

	case errors.As(err, &held):
		return models.LockResult{
			Success:   false,
			ErrorKind: models.ErrKindLockConflict,
			Message:   fmt.Sprintf("record is being edited by %s", held.holder),
		}, false

	case isContentionErr(err):
		return models.LockResult{}, true

	default:
		c.logger.Error("Failed to acquire edit claim ",
			"resource ", res.Name, "id ", id, "error ", err)
		return models.LockResult{
			Success:   false,
			ErrorKind: models.ErrKindServerError,
			Message:   "failed to acquire lock: " + err.Error(),
		}, false
	}
}

// AcquireMany acquires claims on every id sequentially. If any acquisition
// fails, claims already taken in this batch are released again, so the
// batch is all-or-nothing without a single cross-row transaction.
func (c *Coordinator) AcquireMany(ctx context.Context, res models.LockResource, ids []string, callerID, actionType string) models.BatchLockResult {
	locks := make([]models.ClaimInfo, 0, len(ids))
	for _, id := range ids {
		result := c.Acquire(ctx, res, id, callerID, actionType)
		if !result.Success {
			acquired := make([]string, 0, len(locks))
			for _, l := range locks {
				acquired = append(acquired, l.ResourceID)
			}
			if len(acquired) > 0 {
				c.ReleaseMany(ctx, res, acquired, callerID)
			}
			return models.BatchLockResult{
				Success:   false,
				Message:   result.Message,
				FailedIDs: []string{id},
			}
		}
		locks = append(locks, *result.Claim)
	}
	return models.BatchLockResult{
		Success: true,
		Message: fmt.Sprintf("acquired %d locks", len(locks)),
		Locks:   locks,
	}
}

// Release clears the claim if callerID holds it. Releasing a record that
// does not exist, or that carries no claim, is a no-op success: the
// caller's goal of not holding it is already satisfied.
func (c *Coordinator) Release(ctx context.Context, res models.LockResource, id, callerID string) models.ReleaseResult {
	return c.release(ctx, res, id, callerID, false)
}

// ForceRelease clears the claim regardless of holder. Whether a caller is
// allowed to force-release is decided by the calling layer (admin role);
// the coordinator itself only distinguishes forced from owned release.
func (c *Coordinator) ForceRelease(ctx context.Context, res models.LockResource, id string) models.ReleaseResult {
	return c.release(ctx, res, id, "", true)
}

func (c *Coordinator) release(ctx context.Context, res models.LockResource, id, callerID string, force bool) models.ReleaseResult {
	start := time.Now()
	defer c.observeLatency("release", start)

	if id == "" {
		return models.ReleaseResult{Success: false, Message: "resource id is required"}
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := res.New()
		err := c.lockedFetch(tx, res, id, rec)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		holder, _ := rec.ClaimState()
		if holder == "" {
			return nil
		}
		if !force && holder != callerID {
			return &notHolderError{holder: holder}
		}

		return tx.Model(rec).UpdateColumns(map[string]interface{}{
			"claim_holder":     "",
			"claim_stamped_at": 0,
		}).Error
	})

	var notHolder *notHolderError
	switch {
	case err == nil:
		c.countResult(c.metrics, "release", "released")
		c.logger.Debug("Edit claim released ", "resource ", res.Name, "id ", id)
		return models.ReleaseResult{Success: true, Message: "lock released"}

	case errors.As(err, &notHolder):
		c.countResult(c.metrics, "release", "not_holder")
		return models.ReleaseResult{
			Success: false,
			Message: fmt.Sprintf("lock is held by %s", notHolder.holder),
		}

	default:
		c.countResult(c.metrics, "release", "error")
		c.logger.Error("Failed to release edit claim ",
			"resource ", res.Name, "id ", id, "error ", err)
		return models.ReleaseResult{Success: false, Message: "failed to release lock: " + err.Error()}
	}
}

// ReleaseMany releases each id best-effort and reports the ids that could
// not be released.
func (c *Coordinator) ReleaseMany(ctx context.Context, res models.LockResource, ids []string, callerID string) models.BatchReleaseResult {
	var failed []string
	for _, id := range ids {
		if result := c.Release(ctx, res, id, callerID); !result.Success {
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return models.BatchReleaseResult{
			Success:   false,
			Message:   fmt.Sprintf("failed to release %d of %d locks", len(failed), len(ids)),
			FailedIDs: failed,
		}
	}
	return models.BatchReleaseResult{
		Success: true,
		Message: fmt.Sprintf("released %d locks", len(ids)),
	}
}

// GetClaimInfo reads the claim state without taking any lock. Claims older
// than the TTL are reported as not locked even though the stale columns
// stay in storage until the next acquire or release. The view is advisory:
// it can change immediately after the read, enforcement happens at acquire
// time under the row lock.
func (c *Coordinator) GetClaimInfo(ctx context.Context, res models.LockResource, id string) (models.LockStatus, error) {
	start := time.Now()
	defer c.observeLatency("info", start)

	rec := res.New()
	if err := c.db.WithContext(ctx).
		Where(fmt.Sprintf("%s = ?", res.PrimaryKey), id).
		First(rec).Error; err != nil {
		return models.LockStatus{}, err
	}

	holder, stampedAt := rec.ClaimState()
	if holder == "" || c.claimExpired(stampedAt, time.Now().UnixMilli()) {
		return models.LockStatus{IsLocked: false}, nil
	}

	return models.LockStatus{
		IsLocked: true,
		Metadata: &models.ClaimInfo{
			ResourceID:   id,
			ResourceType: res.Name,
			Holder:       holder,
			AcquiredAt:   stampedAt,
			ExpiresAt:    stampedAt + c.ttl.Milliseconds(),
		},
	}, nil
}

// TTL returns the claim time-to-live the coordinator was configured with.
func (c *Coordinator) TTL() time.Duration {
	return c.ttl
}

func (c *Coordinator) lockedFetch(tx *gorm.DB, res models.LockResource, id string, rec models.Lockable) error {
	q := tx
	if c.rowLock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q.Where(fmt.Sprintf("%s = ?", res.PrimaryKey), id).First(rec).Error
}

func (c *Coordinator) claimExpired(stampedAt, nowMilli int64) bool {
	if stampedAt == 0 {
		return true
	}
	return nowMilli-stampedAt >= c.ttl.Milliseconds()
}

func (c *Coordinator) observeLatency(op string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

func (c *Coordinator) countAcquire(result models.LockResult) {
	switch {
	case result.Success:
		c.countResult(c.metrics, "acquire", "acquired")
	case result.ErrorKind == models.ErrKindNotFound:
		c.countResult(c.metrics, "acquire", "not_found")
	case result.ErrorKind == models.ErrKindLockConflict:
		c.countResult(c.metrics, "acquire", "conflict")
	default:
		c.countResult(c.metrics, "acquire", "error")
	}
}

func (c *Coordinator) countResult(m *obs.Metrics, op, result string) {
	if m == nil {
		return
	}
	switch op {
	case "acquire":
		m.AcquireTotal.WithLabelValues(result).Inc()
	case "release":
		m.ReleaseTotal.WithLabelValues(result).Inc()
	}
}

// waitRetry suspends the calling goroutine for d without tying up a thread,
// and aborts early if the request context is done.
func waitRetry(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// contentionPatterns match the lock-contention diagnostics of the engines
// we run against (Postgres lock_timeout/NOWAIT, MySQL innodb wait, SQLite
// busy).
var contentionPatterns = []string{
	"could not obtain lock",
	"lock wait timeout",
	"deadlock",
	"lock timeout",
	"database is locked",
	"database table is locked",
}

func isContentionErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range contentionPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func supportsRowLock(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		return true
	}
	return false
}
