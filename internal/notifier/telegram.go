package notifier

import (
	"fmt"
	"log"

	"pairchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TargetLookup resolves a user id to a Telegram chat id. A zero chat id means
// the user has no linked chat and the alert is skipped.
type TargetLookup func(userID string) (int64, error)

// TelegramNotifier forwards browser-style alerts to a user's linked Telegram
// chat. Fire-and-forget: a failed delivery is logged and dropped.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	lookup TargetLookup
}

func NewTelegramNotifier(token string, lookup TargetLookup) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Printf("Telegram notifier authorized as @%s", bot.Self.UserName)
	return &TelegramNotifier{bot: bot, lookup: lookup}, nil
}

// Notify implements chathub.ExternalNotifier.
func (t *TelegramNotifier) Notify(userID string, alert models.BrowserNotification) error {
	chatID, err := t.lookup(userID)
	if err != nil {
		return err
	}
	if chatID == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("New message from %s:\n%s", alert.From, preview(alert.Message)))
	_, err = t.bot.Send(msg)
	return err
}

// preview truncates the alert body the same way the in-browser notification
// does.
func preview(text string) string {
	const max = 50
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
