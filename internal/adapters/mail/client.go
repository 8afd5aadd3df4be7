/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"
)

// Client delivers report and reminder emails over SMTP. Each send is retried
// with exponential backoff inside an overall timeout.
type Client struct {
	cfg      config.Config
	log      zerolog.Logger
	retryCfg retry.Config
	send     func(ctx context.Context, msg *gomail.Msg) error
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	c := &Client{
		cfg: cfg,
		log: log,
		retryCfg: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  time.Second,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
	c.send = c.dialAndSend
	return c
}

func (c *Client) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(c.cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(c.cfg.SMTPTimeout),
	}
	if c.cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(c.cfg.SMTPUsername),
			gomail.WithPassword(c.cfg.SMTPPassword),
		)
	}
	cli, err := gomail.NewClient(c.cfg.SMTPHost, opts...)
	if err != nil {
		return err
	}
	return cli.DialAndSendWithContext(ctx, msg)
}

func (c *Client) message(to, subject, html string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(c.cfg.SMTPFrom); err != nil {
		return nil, fmt.Errorf("from %q: %w", c.cfg.SMTPFrom, err)
	}
	if err := msg.To(to); err != nil {
		return nil, domain.Invalid("recipient %q: %v", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)
	return msg, nil
}

// SendHTML sends an HTML email, optionally attaching one file.
func (c *Client) SendHTML(ctx context.Context, to, subject, html, attachment string) error {
	if c.cfg.SMTPHost == "" {
		return &domain.ConfigurationError{Reason: "SMTP_HOST is not set"}
	}
	msg, err := c.message(to, subject, html)
	if err != nil {
		return err
	}
	if attachment != "" {
		msg.AttachFile(attachment)
	}
	r := retry.New[struct{}](c.retryCfg)
	t := timeout.New[struct{}](timeout.Config{DefaultTimeout: c.overall()})
	_, err = t.Execute(ctx, c.overall(), func(ctx context.Context) (struct{}, error) {
		return r.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.send(ctx, msg)
		})
	})
	if err != nil {
		c.log.Warn().Err(err).Str("to", to).Msg("mail: send failed")
		return err
	}
	c.log.Info().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}

func (c *Client) overall() time.Duration {
	d := c.cfg.SMTPTimeout
	if d <= 0 {
		d = 30 * time.Second
	}
	return d * time.Duration(c.retryCfg.MaxAttempts+1)
}
