package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clarimed/clarimed/internal/faults"
	"github.com/clarimed/clarimed/internal/model"
	"github.com/clarimed/clarimed/internal/util"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude
// models. It is the secondary backend and uses the Messages API's tool-use
// mechanism as a native structured-output mode: the output types are shared
// with the primary backend, which keeps the prompts less fragile.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
}

const extractionToolName = "record_medical_extraction"

// Anthropic API structures
type anthropicRequest struct {
	Model      string             `json:"model"`
	MaxTokens  int                `json:"max_tokens"`
	Messages   []anthropicMessage `json:"messages"`
	System     string             `json:"system,omitempty"`
	Tools      []anthropicTool    `json:"tools,omitempty"`
	ToolChoice *anthropicToolPick `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicToolPick struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, faults.New(faults.CodeConfiguration, "Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &AnthropicProvider{
		apiKey:  config.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is properly configured
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	req := anthropicRequest{
		Model:     "claude-3-5-haiku-20241022",
		MaxTokens: 10,
		Messages: []anthropicMessage{
			{Role: "user", Content: "Hi"},
		},
	}
	_, err := p.makeRequest(ctx, req)
	return err == nil
}

// Extract runs one extraction through Anthropic's Messages API with a forced
// tool call carrying the extraction schema.
func (p *AnthropicProvider) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	mdl := req.Model
	if mdl == "" {
		mdl = p.config.Model
	}
	if mdl == "" {
		mdl = "claude-3-5-sonnet-20241022"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 4000
	}

	apiReq := anthropicRequest{
		Model:     mdl,
		MaxTokens: maxTokens,
		System:    BuildSystemPrompt(),
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildUserPrompt(req)},
		},
		Tools: []anthropicTool{
			{
				Name:        extractionToolName,
				Description: "Record the complete structured medical extraction for the document.",
				InputSchema: extractionInputSchema(),
			},
		},
		ToolChoice: &anthropicToolPick{Type: "tool", Name: extractionToolName},
	}

	resp, err := p.makeRequest(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != extractionToolName {
			continue
		}

		var extraction model.StructuredMedicalExtraction
		if err := json.Unmarshal(block.Input, &extraction); err != nil {
			return nil, faults.Wrap(faults.CodeAIResponseParsing, "decode tool input", err).
				WithDetail("response", string(block.Input))
		}
		if strings.TrimSpace(extraction.ExtractionTimestamp) == "" {
			extraction.ExtractionTimestamp = time.Now().UTC().Format(time.RFC3339)
		}
		if err := extraction.Validate(); err != nil {
			return nil, faults.Wrap(faults.CodeSchemaModel, "extraction failed schema validation", err).
				WithDetail("response", string(block.Input))
		}
		extraction.Finalize()

		return &ExtractResponse{
			Extraction: &extraction,
			Model:      resp.Model,
			TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}, nil
	}

	// Some models answer in text despite a forced tool; salvage the payload
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			extraction, err := ParseExtraction(block.Text)
			if err != nil {
				return nil, err
			}
			return &ExtractResponse{
				Extraction: extraction,
				Model:      resp.Model,
				TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
			}, nil
		}
	}

	return nil, faults.New(faults.CodeAIExtraction, "no usable content in Anthropic response")
}

// makeRequest makes an HTTP request to the Anthropic API
func (p *AnthropicProvider) makeRequest(ctx context.Context, apiReq anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, faults.Wrap(faults.CodeAITimeout, "Anthropic request timed out", err)
		}
		return nil, faults.Wrap(faults.CodeExternalService, "Anthropic request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, faults.Wrap(faults.CodeExternalService, "read Anthropic response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyAnthropicStatus(httpResp, respBody)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, faults.Wrap(faults.CodeAIResponseParsing, "unmarshal Anthropic response", err).
			WithDetail("response", string(respBody))
	}

	return &resp, nil
}

// classifyAnthropicStatus maps non-200 responses onto the pipeline taxonomy.
func classifyAnthropicStatus(resp *http.Response, body []byte) *faults.Error {
	message := string(body)
	var apiErr anthropicError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = fmt.Sprintf("%s: %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := faults.DefaultRateLimitDelay
		if header := resp.Header.Get("Retry-After"); header != "" {
			if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return faults.New(faults.CodeAIRateLimit, "Anthropic rate limit").
			WithDetail("response", message).
			WithRetryAfter(retryAfter)
	case resp.StatusCode == http.StatusRequestTimeout:
		return faults.New(faults.CodeAITimeout, "Anthropic request timed out").
			WithDetail("response", message)
	case resp.StatusCode >= 500:
		return faults.New(faults.CodeExternalService,
			fmt.Sprintf("Anthropic server error (%d)", resp.StatusCode)).
			WithDetail("response", message)
	default:
		return faults.New(faults.CodeAIExtraction,
			fmt.Sprintf("Anthropic API error (%d)", resp.StatusCode)).
			WithDetail("response", message)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// extractionInputSchema describes the aggregate as a JSON Schema for tool use.
// Variant properties mirror the shared model types.
func extractionInputSchema() map[string]interface{} {
	source := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text":        map[string]interface{}{"type": "string"},
			"start_index": map[string]interface{}{"type": "integer", "minimum": 0},
			"end_index":   map[string]interface{}{"type": "integer", "minimum": 0},
		},
		"required": []string{"text", "start_index", "end_index"},
	}

	entity := func(required []string, extra map[string]interface{}) map[string]interface{} {
		props := map[string]interface{}{
			"confidence": map[string]interface{}{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"source":     source,
		}
		for k, v := range extra {
			props[k] = v
		}
		return map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":       "object",
				"properties": props,
				"required":   append(required, "confidence", "source"),
			},
		}
	}
	str := map[string]interface{}{"type": "string"}
	strList := map[string]interface{}{"type": "array", "items": str}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"conditions": entity([]string{"name"}, map[string]interface{}{
				"name": str, "status": str, "severity": str, "onset_date": str,
			}),
			"medications": entity([]string{"name"}, map[string]interface{}{
				"name": str, "dosage": str, "frequency": str, "route": str, "status": str,
			}),
			"vital_signs": entity([]string{"measurement_type", "value"}, map[string]interface{}{
				"measurement_type": str, "value": str, "unit": str, "measured_at": str,
			}),
			"lab_results": entity([]string{"test_name"}, map[string]interface{}{
				"test_name": str, "value": str, "unit": str, "reference_range": str, "status": str,
			}),
			"procedures": entity([]string{"name"}, map[string]interface{}{
				"name": str, "status": str, "performed_date": str, "outcome": str,
			}),
			"providers": entity([]string{"name"}, map[string]interface{}{
				"name": str, "specialty": str, "role": str,
			}),
			"encounters": entity([]string{"type"}, map[string]interface{}{
				"type": str, "date": str, "location": str, "reason": str,
			}),
			"service_requests": entity([]string{"request_type"}, map[string]interface{}{
				"request_type": str, "reason": str, "priority": str, "requested_date": str,
			}),
			"diagnostic_reports": entity([]string{"report_type", "findings"}, map[string]interface{}{
				"report_type": str, "findings": str, "conclusion": str, "report_date": str,
			}),
			"allergies": entity([]string{"allergen"}, map[string]interface{}{
				"allergen": str, "reaction": str, "severity": str, "status": str,
			}),
			"care_plans": entity([]string{"description"}, map[string]interface{}{
				"description": str, "goals": strList, "activities": strList, "status": str,
			}),
			"organizations": entity([]string{"name"}, map[string]interface{}{
				"name": str, "org_type": str, "address": str,
			}),
			"extraction_timestamp": str,
			"document_type":        str,
		},
		"required": []string{
			"conditions", "medications", "vital_signs", "lab_results",
			"procedures", "providers", "encounters", "service_requests",
			"diagnostic_reports", "allergies", "care_plans", "organizations",
			"extraction_timestamp",
		},
	}
}
