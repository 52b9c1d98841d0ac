package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "stancegraph/pkg/errors"
	"stancegraph/pkg/logger"
)

// Client talks to an OpenAI-compatible endpoint (LiteLLM, Ollama, ...) and
// backs all four oracles: NER, stance, embedding and generation.
type Client struct {
	api            *openai.Client
	chatModel      string
	embeddingModel string
	logger         *zap.Logger
}

// NewClient creates an oracle client for the given endpoint
func NewClient(baseURL, apiKey, chatModel, embeddingModel string) *Client {
	// Compatible proxies accept any key when auth is disabled
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"

	return &Client{
		api:            openai.NewClientWithConfig(config),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		logger:         logger.Named("oracle"),
	}
}

const maxRetries = 3

// chat runs one chat completion at temperature 0 with retry and linear
// backoff. Transport failures surface as OracleUnavailable.
func (c *Client) chat(ctx context.Context, oracle, systemPrompt, userMsg string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		Temperature: 0,
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			c.logger.Warn("Retrying oracle request",
				zap.String("oracle", oracle),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", apperrors.NewOracleUnavailable(oracle, ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err = c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		c.logger.Error("Oracle request failed",
			zap.String("oracle", oracle),
			zap.Int("attempt", attempt+1),
			zap.String("model", c.chatModel),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return "", apperrors.NewOracleUnavailable(oracle, ctx.Err())
		}
	}
	if err != nil {
		return "", apperrors.NewOracleUnavailable(oracle, err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewOracleMalformedOutput(oracle, "no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// stripCodeFence removes a surrounding markdown code fence, which some chat
// models wrap around JSON output despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
