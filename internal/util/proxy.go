// Package util holds small helpers shared by the AI backend clients.
package util

import (
	"net/http"
	"net/url"
	"strings"
)

// NewProxyFunc builds the Proxy callback for a backend's HTTP transport from
// explicit proxy settings. With no explicit proxies the process environment
// (HTTP_PROXY, HTTPS_PROXY, NO_PROXY) applies. Hosts matching noProxy bypass
// the proxy entirely; "*" bypasses everything.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	bypass := parseNoProxy(noProxy)

	return func(req *http.Request) (*url.URL, error) {
		if hostBypassed(req.URL.Hostname(), bypass) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// parseNoProxy splits a comma-separated bypass list into normalized entries.
// Leading dots are stripped so ".internal.example" and "internal.example"
// match the same hosts.
func parseNoProxy(noProxy string) []string {
	var entries []string
	for _, part := range strings.Split(noProxy, ",") {
		entry := strings.ToLower(strings.TrimSpace(part))
		entry = strings.TrimPrefix(entry, ".")
		if entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// hostBypassed reports whether the host matches a bypass entry, either
// exactly or as a subdomain of it.
func hostBypassed(host string, bypass []string) bool {
	host = strings.ToLower(host)
	for _, entry := range bypass {
		if entry == "*" {
			return true
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
