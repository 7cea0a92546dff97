package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/clarimed/clarimed/internal/faults"
	"github.com/clarimed/clarimed/internal/util"
)

// OpenAIProvider implements the Provider interface for OpenAI models.
// It is the primary extraction backend: JSON response mode plus the shared
// prompt pair.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, faults.New(faults.CodeConfiguration, "OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Lightweight API call; failures here usually mean a bad key or endpoint
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Extract runs one extraction through OpenAI's Chat Completions API
func (p *OpenAIProvider) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	mdl := req.Model
	if mdl == "" {
		mdl = p.config.Model
	}
	if mdl == "" {
		mdl = openai.GPT4oMini
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 4000
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: mdl,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: BuildSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildUserPrompt(req),
			},
		},
		MaxTokens: maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1, // Extraction wants determinism, not creativity
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, faults.New(faults.CodeAIExtraction, "no response from OpenAI")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	extraction, err := ParseExtraction(content)
	if err != nil {
		return nil, err
	}

	return &ExtractResponse{
		Extraction: extraction,
		Model:      mdl,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// classifyOpenAIError maps client errors onto the pipeline taxonomy.
func classifyOpenAIError(err error) *faults.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return faults.Wrap(faults.CodeAITimeout, "OpenAI request timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return faults.Wrap(faults.CodeAIRateLimit, "OpenAI rate limit", err).
				WithRetryAfter(faults.DefaultRateLimitDelay)
		case apiErr.HTTPStatusCode == http.StatusRequestTimeout:
			return faults.Wrap(faults.CodeAITimeout, "OpenAI request timed out", err)
		case apiErr.HTTPStatusCode >= 500:
			return faults.Wrap(faults.CodeExternalService,
				fmt.Sprintf("OpenAI server error (%d)", apiErr.HTTPStatusCode), err)
		}
	}

	return faults.Wrap(faults.CodeAIExtraction, "OpenAI API error", err)
}
