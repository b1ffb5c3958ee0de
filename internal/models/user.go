package models

// User roles.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleDriver = "driver"
)

// User represents an operator, dispatcher or driver account. Authentication
// itself happens upstream; this record carries display and contact data.
type User struct {
	// ID is the login identifier.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// DisplayName is shown in "X is editing this" affordances.
	DisplayName string `json:"display_name" gorm:"column:display_name"`
	// Role is admin, staff or driver.
	Role string `json:"role" gorm:"column:role;index;default:staff"`
	// TelegramChatID is the chat to notify on dispatch, optional.
	TelegramChatID string `json:"telegram_chat_id" gorm:"column:telegram_chat_id"`
	// Email is the address to notify on dispatch, optional.
	Email string `json:"email" gorm:"column:email"`

	CreatedAt int64 `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}
