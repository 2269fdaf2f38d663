package websocket

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
)

// Dial performs transport establishment (direct, TLS, or via a
// configured proxy) followed by the opening handshake, per spec.md
// sections 4.1, 4.7, and 6. urlStr must have scheme ws or wss. opts may
// be nil, in which case every option takes its documented default.
//
// The out-of-scope byte transport (TCP dial, TLS handshake, proxy
// tunnel) is established here using net and crypto/tls directly, per
// spec.md section 1: the core consumes that transport, it does not
// reimplement it.
func Dial(ctx context.Context, urlStr string, opts *DialOptions) (*Conn, error) {
	o := opts.withDefaults()

	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, &HandshakeError{Err: fmt.Errorf("parse url: %w", err)}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, &HandshakeError{Err: fmt.Errorf("unsupported scheme %q, want ws or wss", u.Scheme)}
	}

	if o.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.DialTimeout)
		defer cancel()
	}

	transport, err := dialTransport(ctx, hostPort(u), o)
	if err != nil {
		return nil, &HandshakeError{Err: err}
	}

	if u.Scheme == "wss" {
		tlsConn, err := tlsHandshake(ctx, transport, u.Hostname(), o)
		if err != nil {
			transport.Close()
			return nil, &HandshakeError{Err: err}
		}
		transport = tlsConn
	}

	key, err := newClientKey()
	if err != nil {
		transport.Close()
		return nil, &HandshakeError{Err: err}
	}

	req, err := buildRequest(u, key, o)
	if err != nil {
		transport.Close()
		return nil, err
	}

	br := bufio.NewReader(transport)
	bw := bufio.NewWriter(transport)
	rw := bufio.NewReadWriter(br, bw)

	subprotocol, err := performHandshake(rw, req, key, o)
	if err != nil {
		transport.Close()
		return nil, err
	}

	return newConn(transport, br, bw, o, subprotocol), nil
}

// hostPort resolves the request's TCP destination, applying the default
// ports from spec.md section 6: "ws:// plain TCP, default port 80;
// wss:// TLS over TCP, default port 443."
func hostPort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return net.JoinHostPort(u.Hostname(), port)
	}
	if u.Scheme == "wss" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}

func dialTransport(ctx context.Context, addr string, o *DialOptions) (net.Conn, error) {
	switch o.Proxy.Kind {
	case ProxyNone:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return conn, nil
	case ProxyHTTPConnect:
		return dialHTTPConnect(ctx, o.Proxy, addr)
	case ProxySOCKS5:
		return dialSOCKS5(ctx, o.Proxy, addr)
	default:
		return nil, fmt.Errorf("unknown proxy kind %d", o.Proxy.Kind)
	}
}

// tlsHandshake upgrades conn to TLS for a wss:// target. o.TLSConfig, if
// set, is cloned (never mutated) so callers may reuse one DialOptions
// across several Dial calls; ServerName defaults to the URL's hostname
// so certificate validation works without the caller repeating it,
// unless o.TLSConfig already sets a ServerName.
func tlsHandshake(ctx context.Context, conn net.Conn, serverName string, o *DialOptions) (net.Conn, error) {
	cfg := &tls.Config{}
	if o.TLSConfig != nil {
		cfg = o.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}
