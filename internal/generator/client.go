package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/passage-quiz/backend/internal/config"
	"github.com/passage-quiz/backend/internal/logger"
)

// LLMClient is the interface every generator backend satisfies.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
	Vision(ctx context.Context, systemPrompt string, userPrompt string, image []byte, mediaType string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// NewLLMClient picks the backend named by cfg.LLMProvider and returns it with
// the model name recorded on generated quizzes.
func NewLLMClient(cfg *config.Config, log *logger.Logger) (LLMClient, string, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", cfg.LLMProvider)
		}
		log.Info("Generator using Anthropic API", "model", cfg.AnthropicModel)
		return NewAPIClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, log), cfg.AnthropicModel, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY is required for provider %q", cfg.LLMProvider)
		}
		log.Info("Generator using OpenAI API", "model", cfg.OpenAIModel)
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), cfg.OpenAIModel, nil
	case "cli":
		log.Info("Generator using Claude CLI", "path", cfg.ClaudeCLIPath)
		return NewCLIClient(cfg.ClaudeCLIPath), "claude-cli", nil
	case "mock":
		log.Info("Generator using mock data")
		return NewMockClient(), "mock", nil
	default:
		return nil, "", fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// ── APIClient: Anthropic SDK ───────────────────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
	log    *logger.Logger
}

func NewAPIClient(apiKey, model string, log *logger.Logger) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &APIClient{client: &client, model: model, log: log}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	return c.send(ctx, systemPrompt, anthropic.NewTextBlock(userPrompt))
}

func (c *APIClient) Vision(ctx context.Context, systemPrompt string, userPrompt string, image []byte, mediaType string) (*LLMResponse, error) {
	encoded := base64.StdEncoding.EncodeToString(image)
	return c.send(ctx, systemPrompt,
		anthropic.NewImageBlockBase64(mediaType, encoded),
		anthropic.NewTextBlock(userPrompt),
	)
}

func (c *APIClient) send(ctx context.Context, systemPrompt string, blocks ...anthropic.ContentBlockParamUnion) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   4096,
		Temperature: param.NewOpt(0.4),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn("Retrying Anthropic API call", "backoff", sleepDuration, "attempt", attempt+1)
			select {
			case <-time.After(sleepDuration):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		c.log.Warn("Anthropic API attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}
