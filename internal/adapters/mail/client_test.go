/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"
)

func testClient(send func(context.Context, *gomail.Msg) error) *Client {
	c := NewClient(config.Config{SMTPHost: "smtp.test", SMTPPort: 25, SMTPFrom: "reports@example.com", SMTPTimeout: time.Second}, zerolog.Nop())
	c.retryCfg.InitialDelay = time.Millisecond
	c.send = send
	return c
}

func TestSendHTML_RetriesTransientFailure(t *testing.T) {
	calls := 0
	var got *gomail.Msg
	c := testClient(func(_ context.Context, m *gomail.Msg) error {
		calls++
		got = m
		if calls == 1 {
			return errors.New("421 try again")
		}
		return nil
	})
	if err := c.SendHTML(context.Background(), "lead@example.com", "Report", "<p>hi</p>", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	rcpts, err := got.GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "lead@example.com" {
		t.Fatalf("unexpected recipients %v err=%v", rcpts, err)
	}
}

func TestSendHTML_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	c := testClient(func(context.Context, *gomail.Msg) error { calls++; return errors.New("550 mailbox unavailable") })
	if err := c.SendHTML(context.Background(), "x@example.com", "Report", "", ""); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSendHTML_Validation(t *testing.T) {
	c := testClient(func(context.Context, *gomail.Msg) error { t.Fatalf("must not send"); return nil })
	if err := c.SendHTML(context.Background(), "not an address", "s", "", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	c.cfg.SMTPHost = ""
	if err := c.SendHTML(context.Background(), "x@example.com", "s", "", ""); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
