package websocket

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// dialHTTPConnect opens a TCP connection to the proxy and issues a
// CONNECT tunnel to target, per spec.md section 4.7: "Open TCP to proxy,
// send CONNECT host:port HTTP/1.1 ..., expect a 2xx response ... then
// optionally wrap in TLS." The request/response is hand-rolled over
// net/http, the same technique net/http/httputil.ReverseProxy uses
// internally for its own CONNECT tunneling (SPEC_FULL.md section 4.7a):
// no pack repo ships a standalone CONNECT-tunnel library.
func dialHTTPConnect(ctx context.Context, cfg ProxyConfig, target string) (net.Conn, error) {
	proxyAddr := net.JoinHostPort(cfg.Host, cfg.Port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("dial proxy %s: %w", proxyAddr, err)
	}
	// The CONNECT exchange is bounded by the same deadline as the dial.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: target},
		Host:   target,
		Header: make(http.Header),
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write CONNECT request: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read CONNECT response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		prefix := make([]byte, 512)
		n, _ := resp.Body.Read(prefix)
		conn.Close()
		return nil, &HandshakeError{
			Err:        fmt.Errorf("proxy CONNECT failed"),
			StatusCode: resp.StatusCode,
			BodyPrefix: string(prefix[:n]),
		}
	}

	if br.Buffered() > 0 {
		// The proxy shouldn't send anything past the response before the
		// tunneled protocol starts, but if it did, don't drop those
		// bytes: read through the same buffer from here on.
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// bufferedConn serves reads out of r (which may already hold bytes
// buffered past an HTTP response) before falling through to the
// underlying net.Conn.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

// dialSOCKS5 tunnels through a SOCKS5 proxy per spec.md section 4.7 (RFC
// 1928 greeting/CONNECT, RFC 1929 user/pass sub-negotiation), via
// golang.org/x/net/proxy.SOCKS5 rather than reimplementing the wire
// protocol a second time (SPEC_FULL.md section 4.7a / 1b).
func dialSOCKS5(ctx context.Context, cfg ProxyConfig, target string) (net.Conn, error) {
	var auth *proxy.Auth
	if cfg.User != "" {
		auth = &proxy.Auth{User: cfg.User, Password: cfg.Pass}
	}

	proxyAddr := net.JoinHostPort(cfg.Host, cfg.Port)
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("configure socks5 dialer: %w", err)
	}

	if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
		return ctxDialer.DialContext(ctx, "tcp", target)
	}
	return dialer.Dial("tcp", target)
}
