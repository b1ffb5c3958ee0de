package notificator

import (
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/translogix/tms/pkg/logger"
)

type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPSender string

	SMTPAuth smtp.Auth
}

func NewEmailNotificator(logger *logger.Logger, host string, port int, user, password, sender string) *EmailNotificator {
	auth := smtp.PlainAuth(
		"",
		user,
		password,
		host,
	)

	return &EmailNotificator{
		logger:     logger,
		SMTPAuth:   auth,
		SMTPHost:   host,
		SMTPPort:   port,
		SMTPUser:   user,
		SMTPSender: sender,
	}
}

func (e *EmailNotificator) SendNotification(to, message string) {
	addr := e.SMTPHost + ":" + strconv.Itoa(e.SMTPPort)
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.SMTPSender,
		to,
		"Dispatch notification",
		message,
	)
	if err := smtp.SendMail(addr, e.SMTPAuth, e.SMTPSender, []string{to}, []byte(msg)); err != nil {
		e.logger.Error("Failed to send email ", "to ", to, "error ", err)
		return
	}
	e.logger.Debug("Email notification sent ", "to ", to)
}
