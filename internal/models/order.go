package models

// Delivery order statuses.
const (
	StatusPending    = "PENDING"
	StatusDispatched = "DISPATCHED"
	StatusInTransit  = "IN_TRANSIT"
	StatusDelivered  = "DELIVERED"
	StatusCancelled  = "CANCELLED"
)

// DashboardOrder represents a delivery order tracked on the dispatch dashboard.
type DashboardOrder struct {
	// ID is the opaque order number, e.g. "ORD-20260831-0042".
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// CustomerName is the shipper the order belongs to.
	CustomerName string `json:"customer_name" gorm:"column:customer_name"`
	// Origin is the pickup location.
	Origin string `json:"origin" gorm:"column:origin"`
	// Destination is the drop-off location.
	Destination string `json:"destination" gorm:"column:destination"`
	// CargoNote is a free-form description of the load.
	CargoNote string `json:"cargo_note" gorm:"column:cargo_note"`
	// DriverID is the user ID of the assigned driver, empty until dispatch.
	DriverID string `json:"driver_id" gorm:"column:driver_id;index"`
	// Status is the delivery status (PENDING, DISPATCHED, IN_TRANSIT,
	// DELIVERED, CANCELLED).
	Status string `json:"status" gorm:"column:status;index;default:PENDING"`
	// ScheduledAt is the unix timestamp of the planned pickup.
	ScheduledAt int64 `json:"scheduled_at" gorm:"column:scheduled_at;index"`

	// CreatedAt / UpdatedAt / UpdatedBy are the audit trail. They are kept
	// separate from the claim columns below so that releasing an edit claim
	// never erases audit data.
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	UpdatedBy string `json:"updated_by" gorm:"column:updated_by"`

	// ClaimHolder is the user ID that currently holds the edit claim.
	// Empty when unclaimed. Written only by the lock coordinator.
	ClaimHolder string `json:"claim_holder,omitempty" gorm:"column:claim_holder;index"`
	// ClaimStampedAt is the unix-millisecond time the claim was last
	// (re)established. Zero when unclaimed.
	ClaimStampedAt int64 `json:"claim_stamped_at,omitempty" gorm:"column:claim_stamped_at"`
}

func (DashboardOrder) TableName() string {
	return "dashboard_orders"
}

func (o *DashboardOrder) LockKey() string {
	return o.ID
}

func (o *DashboardOrder) ClaimState() (string, int64) {
	return o.ClaimHolder, o.ClaimStampedAt
}

// OrderLockResource describes the dashboard_orders table to the lock
// coordinator.
var OrderLockResource = LockResource{
	Name:       "dashboard_order",
	PrimaryKey: "id",
	New:        func() Lockable { return &DashboardOrder{} },
}
