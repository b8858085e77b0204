// Package telegram delivers relay reports through the Bot API sendMessage
// method.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/railsonsantospb/unifi-relay/core"
)

const maxResponseBodyBytes int64 = 64 * 1024

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL  string
	BotToken string
	ChatID   string
}

// Notifier makes one sendMessage call per report. It never retries and uses
// the client's own timeouts.
type Notifier struct {
	cfg    Config
	client HTTPDoer
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

func NewNotifier(cfg Config, client HTTPDoer) (*Notifier, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = core.DefaultTelegramBaseURL
	}
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, configError("telegram: bot token is required")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, configError("telegram: chat id is required")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Notifier{cfg: cfg, client: client}, nil
}

func (n *Notifier) endpoint() string {
	return n.cfg.BaseURL + "/bot" + n.cfg.BotToken + "/sendMessage"
}

func (n *Notifier) Send(ctx context.Context, text string) error {
	if n == nil || n.client == nil {
		return configError("telegram: notifier is not configured")
	}
	form := url.Values{}
	form.Set("chat_id", n.cfg.ChatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return providerWrapError(err, n.redact("telegram: build request: "+err.Error()), nil)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return providerWrapError(err, n.redact("telegram: send request: "+err.Error()), nil)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes+1))
	if err != nil {
		return providerWrapError(err, "telegram: read response: "+err.Error(), map[string]any{"status": res.StatusCode})
	}
	if int64(len(body)) > maxResponseBodyBytes {
		body = body[:maxResponseBodyBytes]
	}
	bodyText := strings.TrimSpace(string(body))
	meta := map[string]any{"status": res.StatusCode, "body": bodyText}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return providerError(fmt.Sprintf("telegram: status %d: %s", res.StatusCode, bodyText), meta)
	}
	var payload sendMessageResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return providerWrapError(err, fmt.Sprintf("telegram: malformed response (status %d): %s", res.StatusCode, bodyText), meta)
	}
	if !payload.OK {
		return providerError(fmt.Sprintf("telegram: status %d: %s", res.StatusCode, bodyText), meta)
	}
	return nil
}

func (n *Notifier) redact(message string) string {
	if n.cfg.BotToken == "" {
		return message
	}
	return strings.ReplaceAll(message, n.cfg.BotToken, "<redacted>")
}

var _ core.Notifier = (*Notifier)(nil)
