package notification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TelegramNotifier delivers alerts through the Telegram Bot API.
// Messages are sent as plain text; settlement amounts and trade IDs don't
// need markup and plain text avoids MarkdownV2 escaping entirely.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier for the given bot token
// and target chat ID.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	prefix := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		prefix = "⚠️"
	case AlertCritical:
		prefix = "🚨"
	}

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", fmt.Sprintf("%s %s\n%s", prefix, alert.Title, alert.Message))

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}
	return nil
}
