package subscription

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "kestrel/pkg/errors"
)

func TestDecodePlainText(t *testing.T) {
	d := NewDecoder()

	content := []byte("vmess://abc123\nvless://def456\n\ntrojan://ghi789")
	uris, err := d.Decode(content)

	require.NoError(t, err)
	assert.Equal(t, []string{"vmess://abc123", "vless://def456", "trojan://ghi789"}, uris)
}

func TestDecodeBase64(t *testing.T) {
	d := NewDecoder()

	plain := "ss://node-1\nvmess://node-2\n"
	content := []byte(base64.StdEncoding.EncodeToString([]byte(plain)))

	uris, err := d.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"ss://node-1", "vmess://node-2"}, uris)
}

func TestDecodeRawURLBase64(t *testing.T) {
	d := NewDecoder()

	plain := "hysteria2://node-1\ntuic://node-2"
	content := []byte(base64.RawURLEncoding.EncodeToString([]byte(plain)))

	uris, err := d.Decode(content)
	require.NoError(t, err)
	assert.Len(t, uris, 2)
}

func TestDecodeSkipsUnknownSchemes(t *testing.T) {
	d := NewDecoder()

	content := []byte("vmess://ok\nhttp://not-a-node\n# comment\nrandom text\nss://ok2")
	uris, err := d.Decode(content)

	require.NoError(t, err)
	assert.Equal(t, []string{"vmess://ok", "ss://ok2"}, uris)
}

func TestDecodeSchemeCaseInsensitive(t *testing.T) {
	d := NewDecoder()

	uris, err := d.Decode([]byte("VMESS://upper\nVless://mixed"))
	require.NoError(t, err)
	assert.Len(t, uris, 2)
}

func TestDecodeEmptyContent(t *testing.T) {
	d := NewDecoder()

	_, err := d.Decode(nil)
	assert.ErrorIs(t, err, pkgerrors.ErrSubscriptionEmpty)

	_, err = d.Decode([]byte("no nodes here\njust text"))
	assert.ErrorIs(t, err, pkgerrors.ErrSubscriptionEmpty)
}

func TestDecodeTrimsWhitespace(t *testing.T) {
	d := NewDecoder()

	uris, err := d.Decode([]byte("  vmess://padded  \r\n\tss://tabbed\t"))
	require.NoError(t, err)
	assert.Equal(t, []string{"vmess://padded", "ss://tabbed"}, uris)
}
