package notificator

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/translogix/tms/pkg/logger"
)

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot
}

func NewTelegramNotificator(logger *logger.Logger, token string) (*TelegramNotificator, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %s", err)
	}
	go b.Start(context.Background())

	return &TelegramNotificator{logger: logger, bot: b}, nil
}

func (t *TelegramNotificator) SendNotification(chatID, message string) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   message,
	}
	_, err := t.bot.SendMessage(context.Background(), params)
	if err != nil {
		t.logger.Error("Failed to send telegram message ", "chat_id ", chatID, "error ", err)
		return
	}
	t.logger.Debug("Telegram notification sent ", "chat_id ", chatID)
}
