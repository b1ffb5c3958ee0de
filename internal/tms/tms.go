package tms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/translogix/tms/internal/config"
	"github.com/translogix/tms/internal/lockmanager"
	"github.com/translogix/tms/internal/models"
	"github.com/translogix/tms/pkg/logger"
)

// statusTransitions lists the legal next statuses per current status.
// Terminal statuses (DELIVERED, CANCELLED) have no entry.
var statusTransitions = map[string][]string{
	models.StatusPending:    {models.StatusDispatched, models.StatusCancelled},
	models.StatusDispatched: {models.StatusInTransit, models.StatusCancelled},
	models.StatusInTransit:  {models.StatusDelivered, models.StatusCancelled},
}

// TMS is the main struct for the transportation management backend.
// It serves all business logic and owns the rule that every mutation of a
// lockable record runs through the edit-claim coordinator first.
type TMS struct {
	logger *logger.Logger
	config *config.Config

	repo        models.Repository
	locks       *lockmanager.Coordinator
	notificator models.NotificationService

	// nameCache maps user IDs to display names for claim metadata, so lock
	// polling does not hit the users table on every request. Injected, not
	// a package-level singleton, to keep it testable.
	nameCache *cache.Cache
}

// NewTMS creates a new TMS instance
func NewTMS(
	repo models.Repository,
	locks *lockmanager.Coordinator,
	notificator models.NotificationService,
	logger *logger.Logger,
	config *config.Config,
) models.TMSI {
	return &TMS{
		repo:        repo,
		locks:       locks,
		notificator: notificator,
		logger:      logger,
		config:      config,
		nameCache:   cache.New(time.Minute, 5*time.Minute),
	}
}

func (t *TMS) CreateOrder(ctx context.Context, order *models.DashboardOrder) error {
	if order.ID == "" {
		order.ID = newRecordID("ORD")
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	return t.repo.CreateOrder(order)
}

func (t *TMS) GetOrder(ctx context.Context, id string) (*models.DashboardOrder, error) {
	return t.repo.GetOrder(id)
}

func (t *TMS) ListOrders(ctx context.Context, status string, limit int) ([]*models.DashboardOrder, error) {
	return t.repo.ListOrders(status, limit)
}

// UpdateOrder saves the editable order fields. The claim is acquired (or
// refreshed, when the caller already holds it) before the write, so a
// caller whose claim was lost to another editor gets a conflict instead of
// silently overwriting their changes. The claim stays held afterwards;
// the client releases it when the edit session ends.
func (t *TMS) UpdateOrder(ctx context.Context, callerID string, order *models.DashboardOrder) models.LockResult {
	result := t.locks.Acquire(ctx, models.OrderLockResource, order.ID, callerID, models.ActionEdit)
	if !result.Success {
		return result
	}

	existing, err := t.repo.GetOrder(order.ID)
	if err != nil {
		return storeFailure("failed to load order", err)
	}

	existing.CustomerName = order.CustomerName
	existing.Origin = order.Origin
	existing.Destination = order.Destination
	existing.CargoNote = order.CargoNote
	existing.ScheduledAt = order.ScheduledAt
	existing.UpdatedBy = callerID

	if err := t.repo.UpdateOrder(existing); err != nil {
		return storeFailure("failed to update order", err)
	}

	t.logger.Info("Order updated", " id ", order.ID, " by ", callerID)
	return result
}

func (t *TMS) UpdateOrderStatus(ctx context.Context, callerID, id, status string) models.LockResult {
	result := t.locks.Acquire(ctx, models.OrderLockResource, id, callerID, models.ActionEdit)
	if !result.Success {
		return result
	}

	order, err := t.repo.GetOrder(id)
	if err != nil {
		return storeFailure("failed to load order", err)
	}

	if !transitionAllowed(order.Status, status) {
		return models.LockResult{
			Success: false,
			Message: fmt.Sprintf("illegal status transition %s -> %s", order.Status, status),
		}
	}

	order.Status = status
	order.UpdatedBy = callerID
	if err := t.repo.UpdateOrder(order); err != nil {
		return storeFailure("failed to update order status", err)
	}

	t.logger.Info("Order status changed", " id ", id, " status ", status, " by ", callerID)
	return result
}

func (t *TMS) AssignDriver(ctx context.Context, callerID, id, driverID string) models.LockResult {
	driver, err := t.repo.GetUser(driverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LockResult{
				Success:   false,
				ErrorKind: models.ErrKindNotFound,
				Message:   fmt.Sprintf("driver %s not found", driverID),
			}
		}
		return storeFailure("failed to load driver", err)
	}

	result := t.locks.Acquire(ctx, models.OrderLockResource, id, callerID, models.ActionEdit)
	if !result.Success {
		return result
	}

	order, err := t.repo.GetOrder(id)
	if err != nil {
		return storeFailure("failed to load order", err)
	}

	order.DriverID = driverID
	order.UpdatedBy = callerID
	if err := t.repo.UpdateOrder(order); err != nil {
		return storeFailure("failed to assign driver", err)
	}

	t.logger.Info("Driver assigned", " order ", id, " driver ", driverID, " by ", callerID)
	go t.notificator.NotifyDispatch(driver, &models.DispatchNotification{
		OrderIDs:     []string{order.ID},
		Origin:       order.Origin,
		Destination:  order.Destination,
		DispatchedBy: t.displayName(callerID),
	})
	return result
}

// DeleteOrder removes an order. Deletion is a mutation, so it claims the
// record first; the claim dies with the row.
func (t *TMS) DeleteOrder(ctx context.Context, callerID, id string) models.LockResult {
	result := t.locks.Acquire(ctx, models.OrderLockResource, id, callerID, models.ActionDelete)
	if !result.Success {
		return result
	}
	if err := t.repo.DeleteOrder(id); err != nil {
		return storeFailure("failed to delete order", err)
	}
	t.logger.Info("Order deleted", " id ", id, " by ", callerID)
	return result
}

// BulkDispatch assigns a driver to several orders at once. Claims on all
// target orders are taken up front; if any order is being edited the whole
// batch fails and already-taken claims are compensated away, so a partial
// dispatch can never leak.
func (t *TMS) BulkDispatch(ctx context.Context, callerID, driverID string, orderIDs []string) models.BatchLockResult {
	driver, err := t.repo.GetUser(driverID)
	if err != nil {
		return models.BatchLockResult{
			Success: false,
			Message: fmt.Sprintf("driver %s not found", driverID),
		}
	}

	batch := t.locks.AcquireMany(ctx, models.OrderLockResource, orderIDs, callerID, models.ActionEdit)
	if !batch.Success {
		return batch
	}
	defer t.locks.ReleaseMany(ctx, models.OrderLockResource, orderIDs, callerID)

	var dispatched []string
	var failed []string
	for _, id := range orderIDs {
		order, err := t.repo.GetOrder(id)
		if err != nil {
			t.logger.Error("Failed to load order for dispatch ", "id ", id, "error ", err)
			failed = append(failed, id)
			continue
		}
		if !transitionAllowed(order.Status, models.StatusDispatched) {
			failed = append(failed, id)
			continue
		}
		order.DriverID = driverID
		order.Status = models.StatusDispatched
		order.UpdatedBy = callerID
		if err := t.repo.UpdateOrder(order); err != nil {
			t.logger.Error("Failed to dispatch order ", "id ", id, "error ", err)
			failed = append(failed, id)
			continue
		}
		dispatched = append(dispatched, id)
	}

	if len(failed) > 0 {
		return models.BatchLockResult{
			Success:   false,
			Message:   fmt.Sprintf("dispatched %d of %d orders", len(dispatched), len(orderIDs)),
			FailedIDs: failed,
		}
	}

	t.logger.Info("Bulk dispatch completed", " driver ", driverID, " orders ", len(dispatched))
	go t.notificator.NotifyDispatch(driver, &models.DispatchNotification{
		OrderIDs:     dispatched,
		DispatchedBy: t.displayName(callerID),
	})
	return models.BatchLockResult{
		Success: true,
		Message: fmt.Sprintf("dispatched %d orders", len(dispatched)),
		Locks:   batch.Locks,
	}
}

func (t *TMS) CreateHandover(ctx context.Context, note *models.HandoverNote) error {
	if note.ID == "" {
		note.ID = newRecordID("HND")
	}
	return t.repo.CreateHandover(note)
}

func (t *TMS) GetHandover(ctx context.Context, id string) (*models.HandoverNote, error) {
	return t.repo.GetHandover(id)
}

func (t *TMS) ListHandovers(ctx context.Context, pinnedOnly bool, limit int) ([]*models.HandoverNote, error) {
	return t.repo.ListHandovers(pinnedOnly, limit)
}

func (t *TMS) UpdateHandover(ctx context.Context, callerID string, note *models.HandoverNote) models.LockResult {
	result := t.locks.Acquire(ctx, models.HandoverLockResource, note.ID, callerID, models.ActionEdit)
	if !result.Success {
		return result
	}

	existing, err := t.repo.GetHandover(note.ID)
	if err != nil {
		return storeFailure("failed to load handover note", err)
	}

	existing.Shift = note.Shift
	existing.Title = note.Title
	existing.Body = note.Body
	existing.Pinned = note.Pinned
	existing.UpdatedBy = callerID

	if err := t.repo.UpdateHandover(existing); err != nil {
		return storeFailure("failed to update handover note", err)
	}

	t.logger.Info("Handover note updated", " id ", note.ID, " by ", callerID)
	return result
}

func (t *TMS) DeleteHandover(ctx context.Context, callerID, id string) models.LockResult {
	result := t.locks.Acquire(ctx, models.HandoverLockResource, id, callerID, models.ActionDelete)
	if !result.Success {
		return result
	}
	if err := t.repo.DeleteHandover(id); err != nil {
		return storeFailure("failed to delete handover note", err)
	}
	t.logger.Info("Handover note deleted", " id ", id, " by ", callerID)
	return result
}

func (t *TMS) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleStaff
	}
	return t.repo.CreateUser(user)
}

func (t *TMS) GetUser(ctx context.Context, id string) (*models.User, error) {
	return t.repo.GetUser(id)
}

func (t *TMS) AcquireEditLock(ctx context.Context, resource, id, callerID, actionType string) models.LockResult {
	res, ok := lockResourceFor(resource)
	if !ok {
		return models.LockResult{
			Success:   false,
			ErrorKind: models.ErrKindNotFound,
			Message:   "unknown resource " + resource,
		}
	}
	result := t.locks.Acquire(ctx, res, id, callerID, actionType)
	if result.Success {
		result.Claim.HolderName = t.displayName(callerID)
	}
	return result
}

func (t *TMS) ReleaseEditLock(ctx context.Context, resource, id, callerID string, force bool) models.ReleaseResult {
	res, ok := lockResourceFor(resource)
	if !ok {
		return models.ReleaseResult{Success: false, Message: "unknown resource " + resource}
	}
	if force {
		return t.locks.ForceRelease(ctx, res, id)
	}
	return t.locks.Release(ctx, res, id, callerID)
}

func (t *TMS) EditLockStatus(ctx context.Context, resource, id string) (models.LockStatus, error) {
	res, ok := lockResourceFor(resource)
	if !ok {
		return models.LockStatus{}, gorm.ErrRecordNotFound
	}
	status, err := t.locks.GetClaimInfo(ctx, res, id)
	if err != nil {
		return models.LockStatus{}, err
	}
	if status.IsLocked {
		status.Metadata.HolderName = t.displayName(status.Metadata.Holder)
	}
	return status, nil
}

// displayName resolves a user ID to a display name through the injected
// cache, falling back to the raw ID when the user is unknown.
func (t *TMS) displayName(userID string) string {
	if name, found := t.nameCache.Get(userID); found {
		return name.(string)
	}
	user, err := t.repo.GetUser(userID)
	if err != nil {
		return userID
	}
	t.nameCache.Set(userID, user.DisplayName, cache.DefaultExpiration)
	return user.DisplayName
}

func lockResourceFor(resource string) (models.LockResource, bool) {
	switch resource {
	case models.ResourceOrders:
		return models.OrderLockResource, true
	case models.ResourceHandovers:
		return models.HandoverLockResource, true
	}
	return models.LockResource{}, false
}

func transitionAllowed(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func storeFailure(message string, err error) models.LockResult {
	return models.LockResult{
		Success:   false,
		ErrorKind: models.ErrKindServerError,
		Message:   message + ": " + err.Error(),
	}
}

func newRecordID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}
