package models

import "context"

// Resource kinds accepted by the lock endpoints.
const (
	ResourceOrders    = "orders"
	ResourceHandovers = "handovers"
)

// TMSI is the business-logic surface consumed by the HTTP layer. Every
// mutation of a lockable record goes through the edit-claim coordinator;
// handlers never write claim columns themselves. Mutating operations
// return a LockResult so claim conflicts and store failures reach the
// caller as one discriminated outcome.
type TMSI interface {
	CreateOrder(ctx context.Context, order *DashboardOrder) error
	GetOrder(ctx context.Context, id string) (*DashboardOrder, error)
	ListOrders(ctx context.Context, status string, limit int) ([]*DashboardOrder, error)
	UpdateOrder(ctx context.Context, callerID string, order *DashboardOrder) LockResult
	UpdateOrderStatus(ctx context.Context, callerID, id, status string) LockResult
	AssignDriver(ctx context.Context, callerID, id, driverID string) LockResult
	DeleteOrder(ctx context.Context, callerID, id string) LockResult
	BulkDispatch(ctx context.Context, callerID, driverID string, orderIDs []string) BatchLockResult

	CreateHandover(ctx context.Context, note *HandoverNote) error
	GetHandover(ctx context.Context, id string) (*HandoverNote, error)
	ListHandovers(ctx context.Context, pinnedOnly bool, limit int) ([]*HandoverNote, error)
	UpdateHandover(ctx context.Context, callerID string, note *HandoverNote) LockResult
	DeleteHandover(ctx context.Context, callerID, id string) LockResult

	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)

	AcquireEditLock(ctx context.Context, resource, id, callerID, actionType string) LockResult
	ReleaseEditLock(ctx context.Context, resource, id, callerID string, force bool) ReleaseResult
	EditLockStatus(ctx context.Context, resource, id string) (LockStatus, error)
}

// APIServer is implemented by the HTTP front end.
type APIServer interface {
	Start()
	Shutdown() error
}
