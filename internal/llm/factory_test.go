package llm

import (
	"testing"

	"github.com/clarimed/clarimed/internal/faults"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantNil  bool
		wantErr  bool
	}{
		{name: "openai", config: Config{Provider: "openai", APIKey: "k"}, wantName: "openai"},
		{name: "anthropic", config: Config{Provider: "anthropic", APIKey: "k"}, wantName: "anthropic"},
		{name: "claude alias", config: Config{Provider: "claude", APIKey: "k"}, wantName: "anthropic"},
		{name: "case insensitive", config: Config{Provider: "OpenAI", APIKey: "k"}, wantName: "openai"},
		{name: "disabled", config: Config{Provider: ""}, wantNil: true},
		{name: "unknown backend", config: Config{Provider: "cohere"}, wantErr: true},
		{name: "openai missing key", config: Config{Provider: "openai"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if faults.Classify(err) != faults.CodeConfiguration {
					t.Errorf("unexpected code: %s", faults.Classify(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			if tt.wantNil {
				if provider != nil {
					t.Errorf("expected nil provider, got %T", provider)
				}
				return
			}
			if provider.Name() != tt.wantName {
				t.Errorf("got %s, want %s", provider.Name(), tt.wantName)
			}
		})
	}
}
