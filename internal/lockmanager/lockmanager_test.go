package lockmanager_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/translogix/tms/internal/lockmanager"
	"github.com/translogix/tms/internal/models"
	"github.com/translogix/tms/pkg/logger"
)

// openTestDB opens a temp-file SQLite database. _txlock=immediate makes
// every transaction take the write lock at BEGIN, which stands in for the
// row-level FOR UPDATE serialization we get on Postgres.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "tms_test.db") +
		"?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.DashboardOrder{}, &models.HandoverNote{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Create(&models.DashboardOrder{
		ID:           id,
		CustomerName: "Hanjin Freight",
		Origin:       "Busan",
		Destination:  "Seoul",
		Status:       models.StatusPending,
	}).Error)
}

func newCoordinator(db *gorm.DB, opts ...lockmanager.Option) *lockmanager.Coordinator {
	return lockmanager.New(db, logger.NewNopLogger(), opts...)
}

func orderClaim(t *testing.T, db *gorm.DB, id string) (string, int64) {
	t.Helper()
	var order models.DashboardOrder
	require.NoError(t, db.Where("id = ?", id).First(&order).Error)
	return order.ClaimHolder, order.ClaimStampedAt
}

func TestAcquireStampsClaim(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")
	c := newCoordinator(db)

	result := c.Acquire(context.Background(), models.OrderLockResource, "ORD-1", "alice", models.ActionEdit)
	require.True(t, result.Success, result.Message)
	require.NotNil(t, result.Claim)
	assert.Equal(t, "alice", result.Claim.Holder)
	assert.Equal(t, "dashboard_order", result.Claim.ResourceType)
	assert.Equal(t, "ORD-1", result.Claim.ResourceID)
	assert.Equal(t, models.ActionEdit, result.Claim.ActionType)
	assert.NotEmpty(t, result.Claim.ClaimID)
	assert.Equal(t, result.Claim.AcquiredAt+c.TTL().Milliseconds(), result.Claim.ExpiresAt)

	holder, stampedAt := orderClaim(t, db, "ORD-1")
	assert.Equal(t, "alice", holder)
	assert.Equal(t, result.Claim.AcquiredAt, stampedAt)
}

func TestSelfReacquireRefreshesStamp(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")
	c := newCoordinator(db)
	ctx := context.Background()

	first := c.Acquire(ctx, models.OrderLockResource, "ORD-1", "alice", models.ActionEdit)
	require.True(t, first.Success)

	time.Sleep(10 * time.Millisecond)

	second := c.Acquire(ctx, models.OrderLockResource, "ORD-1", "alice", models.ActionEdit)
	require.True(t, second.Success, "re-acquiring an own claim must succeed")
	assert.Greater(t, second.Claim.AcquiredAt, first.Claim.AcquiredAt)

	holder, stampedAt := orderClaim(t, db, "ORD-1")
	assert.Equal(t, "alice", holder)
	assert.Equal(t, second.Claim.AcquiredAt, stampedAt)
}

func TestAcquireNotFound(t *testing.T) {
	db := openTestDB(t)
	c := newCoordinator(db)

	result := c.Acquire(context.Background(), models.OrderLockResource, "ORD-MISSING", "alice", models.ActionEdit)
	require.False(t, result.Success)
	assert.Equal(t, models.ErrKindNotFound, result.ErrorKind)
	assert.Nil(t, result.Claim)

	// No partial claim state may appear.
	var count int64
	require.NoError(t, db.Model(&models.DashboardOrder{}).Where("id = ?", "ORD-MISSING").Count(&count).Error)
	assert.Zero(t, count)
}

func TestAcquireRejectsLiveForeignClaim(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")
	c := newCoordinator(db)
	ctx := context.Background()

	require.True(t, c.Acquire(ctx, models.OrderLockResource, "ORD-1", "alice", models.ActionEdit).Success)

	result := c.Acquire(ctx, models.OrderLockResource, "ORD-1", "bob", models.ActionEdit)
	require.False(t, result.Success)
	assert.Equal(t, models.ErrKindLockConflict, result.ErrorKind)

	holder, _ := orderClaim(t, db, "ORD-1")
	assert.Equal(t, "alice", holder, "rejected acquire must not disturb the live claim")
}

func TestTakeoverOptIn(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-42")
	c := newCoordinator(db, lockmanager.WithTakeover())
	ctx := context.Background()

	require.True(t, c.Acquire(ctx, models.OrderLockResource, "ORD-42", "alice", models.ActionEdit).Success)

	// With takeover enabled the latest opener wins.
	result := c.Acquire(ctx, models.OrderLockResource, "ORD-42", "bob", models.ActionEdit)
	require.True(t, result.Success)

	status, err := c.GetClaimInfo(ctx, models.OrderLockResource, "ORD-42")
	require.NoError(t, err)
	require.True(t, status.IsLocked)
	assert.Equal(t, "bob", status.Metadata.Holder)

	// The displaced holder can no longer release.
	assert.False(t, c.Release(ctx, models.OrderLockResource, "ORD-42", "alice").Success)

	require.True(t, c.Release(ctx, models.OrderLockResource, "ORD-42", "bob").Success)
	status, err = c.GetClaimInfo(ctx, models.OrderLockResource, "ORD-42")
	require.NoError(t, err)
	assert.False(t, status.IsLocked)
}

func TestReleaseRequiresOwnership(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")
	c := newCoordinator(db)
	ctx := context.Background()

	require.True(t, c.Acquire(ctx, models.OrderLockResource, "ORD-1", "alice", models.ActionEdit).Success)

	result := c.Release(ctx, models.OrderLockResource, "ORD-1", "bob")
	require.False(t, result.Success)

	holder, stampedAt := orderClaim(t, db, "ORD-1")
	assert.Equal(t, "alice", holder, "foreign release must not clear the claim")
	assert.NotZero(t, stampedAt)

	// Force release ignores the holder check; the role policy lives upstream.
	require.True(t, c.ForceRelease(ctx, models.OrderLockResource, "ORD-1").Success)
	holder, stampedAt = orderClaim(t, db, "ORD-1")
	assert.Empty(t, holder)
	assert.Zero(t, stampedAt)
}

func TestReleaseMissingOrUnclaimedIsNoop(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")
	c := newCoordinator(db)
	ctx := context.Background()

	assert.True(t, c.Release(ctx, models.OrderLockResource, "ORD-MISSING", "alice").Success,
		"releasing a nonexistent record is a no-op success")
	assert.True(t, c.Release(ctx, models.OrderLockResource, "ORD-1", "alice").Success,
		"releasing an unclaimed record is a no-op success")
}

func TestClaimTTLExpiry(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")
	c := newCoordinator(db, lockmanager.WithTTL(60*time.Millisecond))
	ctx := context.Background()

	require.True(t, c.Acquire(ctx, models.OrderLockResource, "ORD-1", "alice", models.ActionEdit).Success)

	status, err := c.GetClaimInfo(ctx, models.OrderLockResource, "ORD-1")
	require.NoError(t, err)
	require.True(t, status.IsLocked)
	assert.Equal(t, "alice", status.Metadata.Holder)
	assert.Equal(t, status.Metadata.AcquiredAt+60, status.Metadata.ExpiresAt)

	time.Sleep(90 * time.Millisecond)

	// No release happened; the claim is invisible purely by age. The stale
	// columns are still in storage.
	status, err = c.GetClaimInfo(ctx, models.OrderLockResource, "ORD-1")
	require.NoError(t, err)
	assert.False(t, status.IsLocked)
	assert.Nil(t, status.Metadata)

	holder, _ := orderClaim(t, db, "ORD-1")
	assert.Equal(t, "alice", holder, "expiry is lazy, columns are not swept")

	// An expired claim does not block a new caller under the strict policy.
	result := c.Acquire(ctx, models.OrderLockResource, "ORD-1", "bob", models.ActionEdit)
	require.True(t, result.Success)
	holder, _ = orderClaim(t, db, "ORD-1")
	assert.Equal(t, "bob", holder)
}

func TestAcquireManyAllOrNothing(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		seedOrder(t, db, id)
	}
	c := newCoordinator(db)
	ctx := context.Background()

	require.True(t, c.Acquire(ctx, models.OrderLockResource, "ORD-2", "bob", models.ActionEdit).Success)

	result := c.AcquireMany(ctx, models.OrderLockResource, []string{"ORD-1", "ORD-2", "ORD-3"}, "alice", models.ActionEdit)
	require.False(t, result.Success)
	assert.Equal(t, []string{"ORD-2"}, result.FailedIDs)
	assert.Empty(t, result.Locks)

	// The claim taken on ORD-1 must have been compensated away, ORD-3 was
	// never reached.
	for _, id := range []string{"ORD-1", "ORD-3"} {
		holder, stampedAt := orderClaim(t, db, id)
		assert.Empty(t, holder, "expected %s to be unclaimed after compensation", id)
		assert.Zero(t, stampedAt)
	}

	holder, _ := orderClaim(t, db, "ORD-2")
	assert.Equal(t, "bob", holder)
}

func TestAcquireManySuccess(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"ORD-1", "ORD-2"} {
		seedOrder(t, db, id)
	}
	c := newCoordinator(db)
	ctx := context.Background()

	result := c.AcquireMany(ctx, models.OrderLockResource, []string{"ORD-1", "ORD-2"}, "alice", models.ActionEdit)
	require.True(t, result.Success, result.Message)
	require.Len(t, result.Locks, 2)

	released := c.ReleaseMany(ctx, models.OrderLockResource, []string{"ORD-1", "ORD-2"}, "alice")
	require.True(t, released.Success, released.Message)
	for _, id := range []string{"ORD-1", "ORD-2"} {
		holder, _ := orderClaim(t, db, id)
		assert.Empty(t, holder)
	}
}

func TestRetryThenConflict(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")

	// Make every row fetch fail with a lock-contention diagnostic.
	var attempts int64
	err := db.Callback().Query().Before("gorm:query").Register("test_inject_contention", func(tx *gorm.DB) {
		atomic.AddInt64(&attempts, 1)
		tx.AddError(errors.New(`could not obtain lock on row in relation "dashboard_orders"`))
	})
	require.NoError(t, err)

	retryDelay := 40 * time.Millisecond
	c := newCoordinator(db,
		lockmanager.WithRetries(2),
		lockmanager.WithRetryDelay(retryDelay),
	)

	start := time.Now()
	result := c.Acquire(context.Background(), models.OrderLockResource, "ORD-1", "alice", models.ActionEdit)
	elapsed := time.Since(start)

	require.False(t, result.Success)
	assert.Equal(t, models.ErrKindLockConflict, result.ErrorKind)
	assert.EqualValues(t, 3, atomic.LoadInt64(&attempts), "1 initial try + 2 retries")
	assert.GreaterOrEqual(t, elapsed, 2*retryDelay, "each retry must be separated by the delay")
}

func TestRetryAbortsOnContextCancel(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")

	err := db.Callback().Query().Before("gorm:query").Register("test_inject_contention", func(tx *gorm.DB) {
		tx.AddError(errors.New("lock wait timeout exceeded; try restarting transaction"))
	})
	require.NoError(t, err)

	c := newCoordinator(db,
		lockmanager.WithRetries(10),
		lockmanager.WithRetryDelay(50*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	result := c.Acquire(ctx, models.OrderLockResource, "ORD-1", "alice", models.ActionEdit)
	require.False(t, result.Success)
	assert.Equal(t, models.ErrKindServerError, result.ErrorKind)
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	db := openTestDB(t)
	seedOrder(t, db, "ORD-1")
	c := newCoordinator(db, lockmanager.WithRetries(4), lockmanager.WithRetryDelay(20*time.Millisecond))
	ctx := context.Background()

	const callers = 8
	var successes int64
	var winner atomic.Value

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		caller := fmt.Sprintf("user-%d", i)
		go func() {
			defer wg.Done()
			result := c.Acquire(ctx, models.OrderLockResource, "ORD-1", caller, models.ActionEdit)
			if result.Success {
				atomic.AddInt64(&successes, 1)
				winner.Store(caller)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, successes, "exactly one concurrent caller may win the claim")

	holder, _ := orderClaim(t, db, "ORD-1")
	assert.Equal(t, winner.Load().(string), holder)
}

func TestHandoverResourceIsLockable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&models.HandoverNote{
		ID:       "HND-1",
		AuthorID: "alice",
		Shift:    "2026-08-31/night",
		Title:    "Gate 3 closed",
	}).Error)
	c := newCoordinator(db)
	ctx := context.Background()

	result := c.Acquire(ctx, models.HandoverLockResource, "HND-1", "alice", models.ActionEdit)
	require.True(t, result.Success)
	assert.Equal(t, "handover_note", result.Claim.ResourceType)

	status, err := c.GetClaimInfo(ctx, models.HandoverLockResource, "HND-1")
	require.NoError(t, err)
	assert.True(t, status.IsLocked)

	require.True(t, c.Release(ctx, models.HandoverLockResource, "HND-1", "alice").Success)
}
