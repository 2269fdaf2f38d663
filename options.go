package websocket

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog"
)

// ProxyKind selects how Dial reaches the target host, spec.md section 6
// "proxy" option.
type ProxyKind int

const (
	ProxyNone ProxyKind = iota
	ProxyHTTPConnect
	ProxySOCKS5
)

// ProxyConfig configures proxying per spec.md section 4.7. User/Pass are
// only meaningful for SOCKS5 (RFC 1929 sub-negotiation); HTTP-proxy
// authentication is explicitly out of scope, see SPEC_FULL.md section 9a.
type ProxyConfig struct {
	Kind ProxyKind
	Host string
	Port string
	User string
	Pass string
}

// DialOptions configures a Dial call. A nil *DialOptions is equivalent to
// &DialOptions{} (every field at its zero value uses the documented
// default).
type DialOptions struct {
	// MaxFrameSize bounds an individual inbound frame's payload length;
	// exceeding it fails the connection with close 1009. Default 64 MiB.
	MaxFrameSize uint64
	// MaxMessageSize bounds a reassembled message's total size; exceeding
	// it fails the connection with close 1009. Default 64 MiB.
	MaxMessageSize uint64
	// AutoPong, when true (the default), replies to an inbound ping with
	// a pong carrying the same payload. When false, the application is
	// responsible for observing Ping events and replying itself.
	AutoPong *bool
	// CloseTimeout bounds how long the closing handshake waits for the
	// peer's close frame before the transport is torn down unilaterally.
	// Default 5s.
	CloseTimeout time.Duration
	// DialTimeout bounds transport establishment: TCP connect, proxy
	// tunnel setup, and TLS handshake. Zero means no timeout beyond the
	// context passed to Dial.
	DialTimeout time.Duration
	// Subprotocols is the ordered list offered in the handshake.
	Subprotocols []string
	// ExtraHeaders are additional request headers. Names colliding with
	// a handshake-reserved header (Host, Upgrade, Connection,
	// Sec-WebSocket-*) are rejected.
	ExtraHeaders map[string]string
	// UserAgent, if set, is sent as the request's User-Agent header.
	UserAgent string
	// TLSConfig configures the TLS session for wss:// targets, including
	// pinned self-signed roots via TLSConfig.RootCAs.
	TLSConfig *tls.Config
	// Proxy configures an HTTP CONNECT or SOCKS5 proxy. The zero value
	// (ProxyNone) dials directly.
	Proxy ProxyConfig
	// MaskKeySource overrides the masking-key generator, for
	// deterministic tests. Defaults to a crypto/rand-backed source.
	MaskKeySource MaskKeySource
	// Logger receives structured diagnostic events. A nil Logger (the
	// zero value) defaults to a no-op logger, so the library is silent
	// unless the caller opts in.
	Logger *zerolog.Logger
}

func (o *DialOptions) withDefaults() *DialOptions {
	out := DialOptions{}
	if o != nil {
		out = *o
	}
	if out.MaxFrameSize == 0 {
		out.MaxFrameSize = defaultMaxFrameSize
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = defaultMaxFrameSize
	}
	if out.AutoPong == nil {
		t := true
		out.AutoPong = &t
	}
	if out.CloseTimeout == 0 {
		out.CloseTimeout = 5 * time.Second
	}
	if out.MaskKeySource == nil {
		out.MaskKeySource = randomMaskKey
	}
	if out.Logger == nil {
		nop := zerolog.Nop()
		out.Logger = &nop
	}
	return &out
}

// log returns the configured logger, always non-nil after withDefaults.
func (o *DialOptions) log() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func (o *DialOptions) autoPong() bool {
	return o.AutoPong == nil || *o.AutoPong
}
