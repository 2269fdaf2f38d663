package websocket

import (
	"bufio"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Example key/accept pair from RFC 6455 section 1.3.
const (
	rfcExampleKey    = "dGhlIHNhbXBsZSBub25jZQ=="
	rfcExampleAccept = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
)

func TestAcceptKeyForMatchesRFCExample(t *testing.T) {
	require.Equal(t, rfcExampleAccept, acceptKeyFor(rfcExampleKey))
}

func TestNewClientKeyIsBase64Of16Bytes(t *testing.T) {
	key, err := newClientKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)
	raw, err := base64.StdEncoding.DecodeString(key)
	require.NoError(t, err)
	require.Len(t, raw, 16)

	key2, err := newClientKey()
	require.NoError(t, err)
	require.NotEqual(t, key, key2, "two calls should not collide")
}

func TestBuildRequestSetsRequiredHeaders(t *testing.T) {
	u, err := url.Parse("ws://example.com/chat?x=1")
	require.NoError(t, err)

	opts := (&DialOptions{Subprotocols: []string{"chat.v1"}}).withDefaults()
	req, err := buildRequest(u, rfcExampleKey, opts)
	require.NoError(t, err)

	require.Equal(t, "/chat", req.URL.Path)
	require.Equal(t, "x=1", req.URL.RawQuery)
	require.Equal(t, "example.com", req.Host)
	require.Equal(t, "websocket", req.Header.Get("Upgrade"))
	require.Equal(t, "Upgrade", req.Header.Get("Connection"))
	require.Equal(t, rfcExampleKey, req.Header.Get("Sec-WebSocket-Key"))
	require.Equal(t, "13", req.Header.Get("Sec-WebSocket-Version"))
	require.Equal(t, "chat.v1", req.Header.Get("Sec-WebSocket-Protocol"))
}

func TestBuildRequestRejectsReservedExtraHeader(t *testing.T) {
	u, _ := url.Parse("ws://example.com/")
	opts := (&DialOptions{ExtraHeaders: map[string]string{"Host": "evil.example"}}).withDefaults()

	_, err := buildRequest(u, rfcExampleKey, opts)
	require.Error(t, err)
}

func TestBuildRequestOmitsDefaultPort(t *testing.T) {
	u, _ := url.Parse("ws://example.com:80/")
	require.Equal(t, "example.com", hostHeaderValue(u))

	u, _ = url.Parse("wss://example.com:443/")
	require.Equal(t, "example.com", hostHeaderValue(u))

	u, _ = url.Parse("ws://example.com:8080/")
	require.Equal(t, "example.com:8080", hostHeaderValue(u))
}

func TestPerformHandshakeAccepts101(t *testing.T) {
	opts := (&DialOptions{}).withDefaults()
	u, _ := url.Parse("ws://example.com/")
	req, err := buildRequest(u, rfcExampleKey, opts)
	require.NoError(t, err)

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + rfcExampleAccept + "\r\n\r\n"

	rw := bufio.NewReadWriter(bufio.NewReader(strings.NewReader(response)), bufio.NewWriter(&discard{}))
	_, err = performHandshake(rw, req, rfcExampleKey, opts)
	require.NoError(t, err)
}

func TestPerformHandshakeRejectsBadStatus(t *testing.T) {
	opts := (&DialOptions{}).withDefaults()
	u, _ := url.Parse("ws://example.com/")
	req, err := buildRequest(u, rfcExampleKey, opts)
	require.NoError(t, err)

	response := "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"
	rw := bufio.NewReadWriter(bufio.NewReader(strings.NewReader(response)), bufio.NewWriter(&discard{}))

	_, err = performHandshake(rw, req, rfcExampleKey, opts)
	require.Error(t, err)

	var he *HandshakeError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusNotFound, he.StatusCode)
}

func TestPerformHandshakeRejectsAcceptMismatch(t *testing.T) {
	opts := (&DialOptions{}).withDefaults()
	u, _ := url.Parse("ws://example.com/")
	req, err := buildRequest(u, rfcExampleKey, opts)
	require.NoError(t, err)

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: not-the-right-value\r\n\r\n"
	rw := bufio.NewReadWriter(bufio.NewReader(strings.NewReader(response)), bufio.NewWriter(&discard{}))

	_, err = performHandshake(rw, req, rfcExampleKey, opts)
	require.ErrorIs(t, err, ErrAcceptMismatch)
}

func TestPerformHandshakeRejectsUnofferedSubprotocol(t *testing.T) {
	opts := (&DialOptions{}).withDefaults() // no subprotocols offered
	u, _ := url.Parse("ws://example.com/")
	req, err := buildRequest(u, rfcExampleKey, opts)
	require.NoError(t, err)

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + rfcExampleAccept + "\r\n" +
		"Sec-WebSocket-Protocol: chat.v1\r\n\r\n"
	rw := bufio.NewReadWriter(bufio.NewReader(strings.NewReader(response)), bufio.NewWriter(&discard{}))

	_, err = performHandshake(rw, req, rfcExampleKey, opts)
	require.ErrorIs(t, err, ErrSubprotocolUnoffered)
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
