package models

type Repository interface {
	CreateOrder(*DashboardOrder) error
	GetOrder(id string) (*DashboardOrder, error)
	ListOrders(status string, limit int) ([]*DashboardOrder, error)
	UpdateOrder(*DashboardOrder) error
	DeleteOrder(id string) error

	CreateHandover(*HandoverNote) error
	GetHandover(id string) (*HandoverNote, error)
	ListHandovers(pinnedOnly bool, limit int) ([]*HandoverNote, error)
	UpdateHandover(*HandoverNote) error
	DeleteHandover(id string) error

	CreateUser(*User) error
	GetUser(id string) (*User, error)

	Close() error
}
