package models

import "fmt"

type NotificationService interface {
	// NotifyDispatch tells a driver that orders were assigned to them.
	// Fire-and-forget; delivery failures are logged, never surfaced.
	NotifyDispatch(driver *User, notification *DispatchNotification)
}

// DispatchNotification carries the message sent to a driver on assignment.
type DispatchNotification struct {
	OrderIDs     []string `json:"order_ids"`
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	DispatchedBy string   `json:"dispatched_by"`
}

func (n *DispatchNotification) String() string {
	if len(n.OrderIDs) == 1 {
		return fmt.Sprintf("Order %s assigned to you (%s -> %s) by %s",
			n.OrderIDs[0], n.Origin, n.Destination, n.DispatchedBy)
	}
	return fmt.Sprintf("%d orders assigned to you by %s: %v",
		len(n.OrderIDs), n.DispatchedBy, n.OrderIDs)
}
