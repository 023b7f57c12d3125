// Package codec decodes the compressed payloads carried by the timing
// feed: base64 text wrapping a raw DEFLATE stream (no zlib or gzip header)
// whose plaintext is JSON. Feed names ending in ".z" mark such payloads.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

// DecodeString inflates a base64-encoded DEFLATE payload into a JSON tree.
func DecodeString(s string) (any, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	return inflate(raw)
}

// Decode inflates a binary frame. Upstream binary frames arrive as raw
// DEFLATE bytes, but capture files carry them base64-encoded; base64 is
// tried first and raw DEFLATE is the fallback.
func Decode(data []byte) (any, error) {
	if raw, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		if v, err := inflate(raw); err == nil {
			return v, nil
		}
	}
	return inflate(data)
}

func inflate(raw []byte) (any, error) {
	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	plain, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	var v any
	if err := json.Unmarshal(plain, &v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}

// IsCompressed reports whether the feed name carries the ".z" suffix.
func IsCompressed(feed string) bool { return strings.HasSuffix(feed, ".z") }

// TrimZ returns the effective feed name with the ".z" suffix stripped.
func TrimZ(feed string) string { return strings.TrimSuffix(feed, ".z") }
