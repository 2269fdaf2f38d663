// Package websocket implements the client side of RFC 6455, the WebSocket
// protocol.
//
// It dials over plain TCP (ws://), TLS (wss://, including pinned
// self-signed roots), and through HTTP CONNECT or SOCKS5 proxies. Once the
// opening handshake completes, the connection is split into a reader half
// and a writer half that may be driven from separate goroutines:
//
//	conn, err := websocket.Dial(ctx, "wss://example.com/socket", nil)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	r, w := conn.Reader(), conn.Writer()
//	if err := w.SendText("rookie"); err != nil {
//		return err
//	}
//	ev, err := r.Receive()
//	if err != nil {
//		return err
//	}
//
// The package does not negotiate permessage-deflate or any other
// extension, does not accept connections (no server side), and does not
// reconnect automatically.
package websocket
