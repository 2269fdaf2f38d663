package websocket

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by RFC 6455 section 1.3, not used for security.
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

const (
	websocketGUID  = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	secWSKeyLength = 16
	secWSVersion   = "13"
)

// newClientKey generates the 16-byte nonce for Sec-WebSocket-Key,
// base64-std-encoded, per spec.md section 4.1.
func newClientKey() (string, error) {
	nonce := make([]byte, secWSKeyLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate handshake nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce), nil
}

// acceptKeyFor computes the expected Sec-WebSocket-Accept value for a
// given request key, per RFC 6455 section 1.3:
// base64(SHA1(key + GUID)).
func acceptKeyFor(key string) string {
	h := sha1.New() //nolint:gosec // see import comment above
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// buildRequest constructs the opening HTTP/1.1 Upgrade request, per
// spec.md section 4.1. u must have scheme ws or wss; the caller is
// responsible for translating that into the correct transport before the
// handshake runs (Dial does this, see dial.go).
func buildRequest(u *url.URL, key string, opts *DialOptions) (*http.Request, error) {
	requestURI := u.Path
	if requestURI == "" {
		requestURI = "/"
	}
	if u.RawQuery != "" {
		requestURI += "?" + u.RawQuery
	}

	req, err := http.NewRequest(http.MethodGet, requestURI, nil)
	if err != nil {
		return nil, err
	}
	req.Host = hostHeaderValue(u)

	req.Header.Set("Host", req.Host)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", key)
	req.Header.Set("Sec-WebSocket-Version", secWSVersion)
	if len(opts.Subprotocols) > 0 {
		req.Header.Set("Sec-WebSocket-Protocol", strings.Join(opts.Subprotocols, ", "))
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	for name, value := range opts.ExtraHeaders {
		if isReservedHandshakeHeader(name) {
			return nil, &HandshakeError{Err: ErrReservedHeader}
		}
		req.Header.Set(name, value)
	}
	return req, nil
}

var reservedHandshakeHeaders = map[string]bool{
	"host":                  true,
	"upgrade":               true,
	"connection":            true,
	"sec-websocket-key":     true,
	"sec-websocket-version": true,
	"sec-websocket-accept":  true,
}

func isReservedHandshakeHeader(name string) bool {
	lower := strings.ToLower(name)
	return reservedHandshakeHeaders[lower] || strings.HasPrefix(lower, "sec-websocket-")
}

func hostHeaderValue(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		return host
	}
	if (u.Scheme == "ws" && port == "80") || (u.Scheme == "wss" && port == "443") {
		return host
	}
	return host + ":" + port
}

// performHandshake writes req to rw, reads the HTTP response, and
// validates it per spec.md section 4.1. On success it returns the
// negotiated subprotocol (empty if none).
func performHandshake(rw *bufio.ReadWriter, req *http.Request, key string, opts *DialOptions) (string, error) {
	if err := req.Write(rw); err != nil {
		return "", &HandshakeError{Err: err}
	}
	if err := rw.Flush(); err != nil {
		return "", &HandshakeError{Err: err}
	}

	resp, err := http.ReadResponse(rw.Reader, req)
	if err != nil {
		return "", &HandshakeError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		prefix := make([]byte, 512)
		n, _ := io.ReadFull(resp.Body, prefix)
		return "", &HandshakeError{
			Err:        ErrBadStatus,
			StatusCode: resp.StatusCode,
			BodyPrefix: string(prefix[:n]),
		}
	}

	if !httpguts.HeaderValuesContainsToken(resp.Header["Upgrade"], "websocket") {
		return "", &HandshakeError{Err: ErrMissingUpgrade}
	}
	if !httpguts.HeaderValuesContainsToken(resp.Header["Connection"], "upgrade") {
		return "", &HandshakeError{Err: ErrMissingConnection}
	}

	wantAccept := acceptKeyFor(key)
	if resp.Header.Get("Sec-WebSocket-Accept") != wantAccept {
		return "", &HandshakeError{Err: ErrAcceptMismatch}
	}

	selected := resp.Header.Get("Sec-WebSocket-Protocol")
	if selected != "" && !containsString(opts.Subprotocols, selected) {
		return "", &HandshakeError{Err: ErrSubprotocolUnoffered}
	}

	// This core negotiates no extensions (spec.md section 1 non-goals),
	// so any Sec-WebSocket-Extensions in the response is a failure.
	if resp.Header.Get("Sec-WebSocket-Extensions") != "" {
		return "", &HandshakeError{Err: ErrExtensionUnsupported}
	}

	return selected, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
