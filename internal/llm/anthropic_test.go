package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clarimed/clarimed/internal/faults"
)

func newAnthropicTestServer(t *testing.T, handler http.HandlerFunc) (*AnthropicProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewAnthropicProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("NewAnthropicProvider failed: %v", err)
	}
	return provider, server
}

func TestNewAnthropicProvider_RequiresKey(t *testing.T) {
	_, err := NewAnthropicProvider(Config{})
	if err == nil {
		t.Fatal("expected error without API key")
	}
	if faults.Classify(err) != faults.CodeConfiguration {
		t.Errorf("unexpected code: %s", faults.Classify(err))
	}
}

func TestAnthropicProvider_Extract_ToolUse(t *testing.T) {
	var captured anthropicRequest
	provider, _ := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{
				"type": "tool_use",
				"name": "record_medical_extraction",
				"input": {
					"conditions": [{"name": "Hypertension", "confidence": 0.9,
						"source": {"text": "hypertension", "start_index": 0, "end_index": 12}}],
					"extraction_timestamp": "2025-06-01T12:00:00Z"
				}
			}],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 100, "output_tokens": 50}
		}`))
	})

	resp, err := provider.Extract(context.Background(), ExtractRequest{Text: "hypertension"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(resp.Extraction.Conditions) != 1 || resp.Extraction.Conditions[0].Name != "Hypertension" {
		t.Errorf("unexpected extraction: %+v", resp.Extraction)
	}
	if resp.TokensUsed != 150 {
		t.Errorf("expected 150 tokens, got %d", resp.TokensUsed)
	}
	if resp.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("unexpected model: %s", resp.Model)
	}

	// The tool call is forced, not offered
	if captured.ToolChoice == nil || captured.ToolChoice.Type != "tool" ||
		captured.ToolChoice.Name != extractionToolName {
		t.Errorf("expected forced tool choice, got %+v", captured.ToolChoice)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Name != extractionToolName {
		t.Errorf("expected extraction tool in request, got %+v", captured.Tools)
	}
	if captured.System == "" {
		t.Error("expected system prompt")
	}
}

// Some models answer in plain text despite the forced tool; the provider
// salvages a JSON payload from the text block.
func TestAnthropicProvider_Extract_TextSalvage(t *testing.T) {
	provider, _ := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_2", "type": "message", "role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{
				"type": "text",
				"text": "Here you go:\n{\"conditions\": [{\"name\": \"Asthma\", \"confidence\": 0.8, \"source\": {\"text\": \"asthma\", \"start_index\": 0, \"end_index\": 6}}]}"
			}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 20}
		}`))
	})

	resp, err := provider.Extract(context.Background(), ExtractRequest{Text: "asthma"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(resp.Extraction.Conditions) != 1 || resp.Extraction.Conditions[0].Name != "Asthma" {
		t.Errorf("unexpected extraction: %+v", resp.Extraction)
	}
}

func TestAnthropicProvider_Extract_NoUsableContent(t *testing.T) {
	provider, _ := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "msg_3", "content": [], "usage": {}}`))
	})

	_, err := provider.Extract(context.Background(), ExtractRequest{Text: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if faults.Classify(err) != faults.CodeAIExtraction {
		t.Errorf("unexpected code: %s", faults.Classify(err))
	}
}

func TestAnthropicProvider_RateLimit(t *testing.T) {
	provider, _ := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
	})

	_, err := provider.Extract(context.Background(), ExtractRequest{Text: "x"})
	if err == nil {
		t.Fatal("expected error")
	}

	var fe *faults.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected categorized error, got %T", err)
	}
	if fe.Code != faults.CodeAIRateLimit {
		t.Errorf("unexpected code: %s", fe.Code)
	}
	if fe.RetryAfter != 7*time.Second {
		t.Errorf("expected Retry-After honored, got %v", fe.RetryAfter)
	}
}

func TestAnthropicProvider_RateLimitDefaultDelay(t *testing.T) {
	provider, _ := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := provider.Extract(context.Background(), ExtractRequest{Text: "x"})
	var fe *faults.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected categorized error, got %v", err)
	}
	if fe.RetryAfter != faults.DefaultRateLimitDelay {
		t.Errorf("expected default delay, got %v", fe.RetryAfter)
	}
}

func TestAnthropicProvider_ServerError(t *testing.T) {
	provider, _ := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "busy"}}`))
	})

	_, err := provider.Extract(context.Background(), ExtractRequest{Text: "x"})
	if faults.Classify(err) != faults.CodeExternalService {
		t.Errorf("unexpected code: %s", faults.Classify(err))
	}
}

func TestAnthropicProvider_Name(t *testing.T) {
	provider, _ := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	if provider.Name() != "anthropic" {
		t.Errorf("unexpected name: %s", provider.Name())
	}
}
