/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/HamedShams/effort-pulse/internal/config"
	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"
)

const systemPrompt = "You are a senior engineering manager. Given aggregated team effort metrics " +
	"(efficiency = estimated/effective hours, block impact = blocked/logged hours), write a short executive " +
	"summary: three to five sentences on delivery, the main blockers and one concrete action. Plain text, no markdown."

// Client writes the executive summary paragraph of a report.
type Client struct {
	key   string
	model string
	cli   openai.Client
	log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	model := cfg.OpenAIModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4.1-mini"
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.OpenAIKey), option.WithRequestTimeout(cfg.OpenAITimeout), option.WithMaxRetries(2))
	return &Client{key: cfg.OpenAIKey, model: model, cli: cli, log: log}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return strings.TrimSpace(c.key) != "" }

// Summarize sends the (already redacted) payload and returns the model's text.
func (c *Client) Summarize(ctx context.Context, payload any) (string, error) {
	if !c.Enabled() {
		return "", errors.New("openai: missing key")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	c.log.Info().Str("model", c.model).Int("bytes", len(b)).Msg("openai summarize call")
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(b)),
		},
	}
	resp, err := c.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
