package subscription

import (
	"encoding/base64"
	"fmt"
	"strings"

	pkgerrors "kestrel/pkg/errors"
)

// Decoder turns raw subscription content into a list of node URIs. The URIs
// are kept opaque; interpreting the protocols inside them is the engine's
// job, not the panel's.
type Decoder struct{}

// NewDecoder creates a new subscription decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes subscription content and returns a list of URIs
func (d *Decoder) Decode(content []byte) ([]string, error) {
	if len(content) == 0 {
		return nil, pkgerrors.ErrSubscriptionEmpty
	}

	// Try to decode as base64; if that fails assume plain text.
	decoded, err := d.decodeBase64(content)
	if err != nil {
		decoded = string(content)
	}

	lines := strings.Split(decoded, "\n")
	uris := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if d.isNodeURI(line) {
			uris = append(uris, line)
		}
	}

	if len(uris) == 0 {
		return nil, pkgerrors.ErrSubscriptionEmpty
	}

	return uris, nil
}

// decodeBase64 attempts the common base64 variants in turn.
func (d *Decoder) decodeBase64(content []byte) (string, error) {
	contentStr := strings.TrimSpace(string(content))

	decoders := []func(string) ([]byte, error){
		base64.StdEncoding.DecodeString,
		base64.URLEncoding.DecodeString,
		base64.RawStdEncoding.DecodeString,
		base64.RawURLEncoding.DecodeString,
	}

	for _, decode := range decoders {
		if decoded, err := decode(contentStr); err == nil {
			return string(decoded), nil
		}
	}

	return "", fmt.Errorf("failed to decode base64")
}

// isNodeURI checks whether a line carries a known proxy scheme.
func (d *Decoder) isNodeURI(uri string) bool {
	schemes := []string{
		"vmess://",
		"vless://",
		"trojan://",
		"ss://",
		"shadowsocks://",
		"hysteria://",
		"hysteria2://",
		"hy2://",
		"tuic://",
		"wireguard://",
	}

	lower := strings.ToLower(uri)
	for _, scheme := range schemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
