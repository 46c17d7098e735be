// Package api provides handlers for external APIs and interfaces
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLength is the Telegram limit for one text message
const maxMessageLength = 4096

// ErrNotConfigured is returned when the bot token or chat is missing
var ErrNotConfigured = errors.New("telegram bot token and chat id are required")

// TelegramNotifier delivers inspection reports to a single chat
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a notifier. An empty endpoint uses the public Bot API.
func NewTelegramNotifier(botToken string, chatID int64, endpoint string) (*TelegramNotifier, error) {
	if botToken == "" || chatID == 0 {
		return nil, ErrNotConfigured
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.Printf("Authorized on Telegram account %s", bot.Self.UserName)

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// SendReport sends the report text, split into messages the API accepts,
// followed by the chart when one is given
func (n *TelegramNotifier) SendReport(text string, chart []byte, caption string) error {
	for _, part := range splitMessage(escapeHTML(text), maxMessageLength) {
		// Monospace keeps the tables aligned
		msg := tgbotapi.NewMessage(n.chatID, "<pre>"+part+"</pre>")
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := n.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send report: %w", err)
		}
	}

	if len(chart) == 0 {
		return nil
	}
	photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileBytes{Name: "sea_level.png", Bytes: chart})
	photo.Caption = caption
	if _, err := n.bot.Send(photo); err != nil {
		return fmt.Errorf("failed to send chart: %w", err)
	}
	log.Printf("Sent report to chat %d", n.chatID)
	return nil
}

// splitMessage breaks text on line boundaries into parts of at most limit
// bytes, leaving room for the <pre> wrapper
func splitMessage(text string, limit int) []string {
	limit -= len("<pre></pre>")
	var parts []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			parts = append(parts, line[:limit])
			line = line[limit:]
		}
		if current.Len()+len(line) > limit {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func escapeHTML(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
