package services

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers short text messages to a chat.
type Notifier interface {
	Notify(chatID int64, text string) error
}

type telegramNotifier struct {
	bot *tgbotapi.BotAPI
	log *slog.Logger
}

// NewTelegramNotifier connects the bot; an empty token yields a notifier that only logs.
func NewTelegramNotifier(token string, logger *slog.Logger) (Notifier, error) {
	logger = logger.With("component", "telegram")
	if token == "" {
		return &telegramNotifier{log: logger}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return &telegramNotifier{bot: bot, log: logger}, nil
}

func (t *telegramNotifier) Notify(chatID int64, text string) error {
	if t.bot == nil || chatID == 0 {
		t.log.Debug("telegram skipped", "chat_id", chatID)
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
