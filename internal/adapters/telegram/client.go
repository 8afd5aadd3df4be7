/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.telegram.org"

// Client posts short report notices to the configured chats.
type Client struct {
	token   string
	chats   []int64
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{token: cfg.TelegramToken, chats: cfg.TelegramChatIDs, baseURL: defaultBaseURL, http: &http.Client{Timeout: 10 * time.Second}, log: log}
}

// Enabled reports whether a token and at least one chat are configured.
func (c *Client) Enabled() bool { return c.token != "" && len(c.chats) > 0 }

func (c *Client) post(ctx context.Context, method string, body map[string]any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram %s status=%d body=%s", method, resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// SendMessagePlain sends without parse_mode to avoid markdown parsing errors.
func (c *Client) SendMessagePlain(ctx context.Context, chatID int64, text string) error {
	if c.token == "" || chatID == 0 {
		return fmt.Errorf("telegram: missing token or chat id")
	}
	return c.post(ctx, "sendMessage", map[string]any{"chat_id": chatID, "text": text, "disable_web_page_preview": true})
}

// SetWebhook registers the webhook URL and secret with Telegram.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secretToken string) error {
	if c.token == "" || webhookURL == "" || secretToken == "" {
		return fmt.Errorf("telegram: missing token, url or secret")
	}
	return c.post(ctx, "setWebhook", map[string]any{
		"url":                  webhookURL,
		"secret_token":         secretToken,
		"drop_pending_updates": true,
		"allowed_updates":      []string{"message"},
	})
}

// Notify sends text to every configured chat; failures are collected, not fatal.
func (c *Client) Notify(ctx context.Context, text string) error {
	if !c.Enabled() {
		return nil
	}
	var errs []error
	for _, chat := range c.chats {
		if err := c.SendMessagePlain(ctx, chat, text); err != nil {
			c.log.Error().Err(err).Int64("chat", chat).Msg("telegram send failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
