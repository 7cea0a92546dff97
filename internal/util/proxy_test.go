package util

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func proxyFor(t *testing.T, fn func(*http.Request) (*url.URL, error), target string) *url.URL {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	proxyURL, err := fn(req)
	if err != nil {
		t.Fatalf("proxy func failed for %s: %v", target, err)
	}
	return proxyURL
}

func TestNewProxyFunc_SchemeSelection(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "http://sproxy:3129", "")

	if got := proxyFor(t, fn, "https://api.openai.com/v1"); got == nil || got.Host != "sproxy:3129" {
		t.Errorf("https request: got %v, want sproxy:3129", got)
	}
	if got := proxyFor(t, fn, "http://api.openai.com/v1"); got == nil || got.Host != "proxy:3128" {
		t.Errorf("http request: got %v, want proxy:3128", got)
	}
}

func TestNewProxyFunc_HTTPProxyCoversHTTPS(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "")

	if got := proxyFor(t, fn, "https://api.anthropic.com/v1/messages"); got == nil || got.Host != "proxy:3128" {
		t.Errorf("got %v, want proxy:3128", got)
	}
}

func TestNewProxyFunc_NoProxyBypass(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "http://sproxy:3129", "localhost, .internal.example")

	tests := []struct {
		target string
		bypass bool
	}{
		{"https://localhost:9000/v1", true},
		{"https://api.internal.example/v1", true},
		{"https://internal.example/v1", true},
		{"https://api.openai.com/v1", false},
		{"https://notinternal.example.com/v1", false},
	}
	for _, tt := range tests {
		got := proxyFor(t, fn, tt.target)
		if tt.bypass && got != nil {
			t.Errorf("%s: expected direct connection, got proxy %v", tt.target, got)
		}
		if !tt.bypass && got == nil {
			t.Errorf("%s: expected proxy, got direct connection", tt.target)
		}
	}
}

func TestNewProxyFunc_WildcardBypass(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "*")

	if got := proxyFor(t, fn, "https://api.openai.com/v1"); got != nil {
		t.Errorf("wildcard bypass: expected direct connection, got %v", got)
	}
}

func TestParseNoProxy(t *testing.T) {
	got := parseNoProxy(" localhost , .Internal.Example ,, ")
	want := []string{"localhost", "internal.example"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
