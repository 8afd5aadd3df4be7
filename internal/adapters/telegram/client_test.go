/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/rs/zerolog"
)

func TestNotify_SendsToEveryChat(t *testing.T) {
	var chats []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			ChatID int64  `json:"chat_id"`
			Text   string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		chats = append(chats, body.ChatID)
		if body.ChatID == 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(config.Config{TelegramToken: "TOKEN", TelegramChatIDs: []int64{1, 2, 3}}, zerolog.Nop())
	c.baseURL = srv.URL
	err := c.Notify(context.Background(), "report ready")
	if err == nil {
		t.Fatalf("expected the failed chat to surface an error")
	}
	if len(chats) != 3 {
		t.Fatalf("expected all chats attempted, got %v", chats)
	}
}

func TestNotify_DisabledIsNoop(t *testing.T) {
	c := NewClient(config.Config{}, zerolog.Nop())
	if c.Enabled() {
		t.Fatalf("client without token should be disabled")
	}
	if err := c.Notify(context.Background(), "x"); err != nil {
		t.Fatalf("disabled notify should be a no-op, got %v", err)
	}
}

func TestSetWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/setWebhook" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(config.Config{TelegramToken: "TOKEN"}, zerolog.Nop())
	c.baseURL = srv.URL
	if err := c.SetWebhook(context.Background(), "https://pulse.example.com/telegram/webhook/s", "s"); err != nil {
		t.Fatalf("set webhook: %v", err)
	}
	if got["secret_token"] != "s" || got["url"] != "https://pulse.example.com/telegram/webhook/s" {
		t.Fatalf("unexpected payload %v", got)
	}
	if err := c.SetWebhook(context.Background(), "", "s"); err == nil {
		t.Fatalf("missing url should fail")
	}
}
