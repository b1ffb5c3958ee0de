package notificator

import (
	"runtime/debug"

	"github.com/translogix/tms/internal/models"
	"github.com/translogix/tms/pkg/logger"
)

type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a function with panic recovery so a broken provider cannot
// take down the dispatch path.
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// NotifyDispatch fans the dispatch message out to every contact channel the
// driver has configured. Failures are logged and swallowed; a dispatch is
// never rolled back because a notification could not be delivered.
func (n *Notificator) NotifyDispatch(driver *models.User, notification *models.DispatchNotification) {
	if driver == nil {
		n.logger.Error("NotifyDispatch called without a driver")
		return
	}

	message := notification.String()
	if n.TelegramNotificator != nil && driver.TelegramChatID != "" {
		chatID := driver.TelegramChatID
		n.safeCall(func() { n.TelegramNotificator.SendNotification(chatID, message) }, "telegramNotification")
	}
	if n.EmailNotificator != nil && driver.Email != "" {
		email := driver.Email
		n.safeCall(func() { n.EmailNotificator.SendNotification(email, message) }, "emailNotification")
	}
}
