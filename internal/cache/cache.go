package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Cache defines the interface for extraction result caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a content-addressable cache key from the document text and the
// extraction context (model, extraction version, ...). The key is a 16
// hex-char SHA-256 prefix: document content never appears in the key itself,
// only in the cached value.
func Key(text string, params map[string]string) string {
	h := sha256.New()
	h.Write([]byte(normalizeText(text)))
	h.Write([]byte{0})
	h.Write([]byte(canonicalParams(params)))
	digest := hex.EncodeToString(h.Sum(nil))
	return "clarimed:v1:" + digest[:16]
}

// normalizeText collapses whitespace so trivially reformatted documents hit
// the same cache entry.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// canonicalParams serializes context parameters with stable key order.
func canonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]string, len(params))
	for _, k := range keys {
		ordered[k] = params[k]
	}
	// encoding/json sorts map keys, giving a deterministic byte sequence
	data, err := json.Marshal(ordered)
	if err != nil {
		return "{}"
	}
	return string(data)
}
