package websocket

import (
	"errors"
	"fmt"
	"io"
)

// Reader is a connection's reader half: spec.md section 4.6, "exposes one
// operation: receive the next message or event." It drives the frame
// codec and the message assembler; auto-pong replies are written through
// the shared writeFrameLocked path so they never tear a data frame in
// flight.
type Reader struct {
	conn *Conn
}

// Receive reads frames until a complete message or control event is
// available, or the connection fails. Once the shared state reaches
// Closed with no poisoning error recorded (a clean closing handshake),
// Receive returns ErrConnClosed; if the state was poisoned by a protocol
// or IO failure, that classified error is returned instead, on this and
// every subsequent call.
func (r *Reader) Receive() (Event, error) {
	c := r.conn

	for {
		if poisonErr, ok := c.state.poisonedErr(); ok {
			return Event{}, poisonErr
		}
		if c.state.get() == stateClosed {
			return Event{}, ErrConnClosed
		}

		h, err := readFrameHeader(c.br, true, c.opts.MaxFrameSize)
		if err != nil {
			return Event{}, r.fail(err)
		}

		payload, err := readFramePayload(c.br, h)
		if err != nil {
			return Event{}, r.fail(err)
		}

		if h.isControl() {
			ev, ok, err := r.handleControl(h, payload)
			if err != nil {
				return Event{}, err
			}
			if ok {
				return ev, nil
			}
			continue
		}

		if !h.op.isData() {
			// readFrameHeader already rejects unknown opcodes, so this is
			// unreachable; kept as the assembler's dispatch boundary.
			return Event{}, r.fail(newProtocolError(CloseProtocolError, fmt.Sprintf("unexpected opcode %s", h.op)))
		}

		if !c.state.canReceiveData() {
			continue
		}

		kind, msg, err := c.assembler.feed(h, payload)
		if err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				return Event{}, c.failProtocol(pe)
			}
			return Event{}, r.fail(err)
		}
		if msg == nil {
			continue // message still in progress, fragment accepted
		}

		switch kind {
		case TextMessage:
			return Event{Kind: EventText, Data: msg}, nil
		case BinaryMessage:
			return Event{Kind: EventBinary, Data: msg}, nil
		default:
			continue
		}
	}
}

// fail classifies an error surfaced by the codec and routes it to the
// right connection-failure path.
func (r *Reader) fail(err error) error {
	c := r.conn
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return c.failProtocol(pe)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return c.failAbnormal()
	}
	return c.failIO(err)
}

// handleControl processes one control frame. It returns (event, true,
// nil) when the event should be surfaced to the caller, (zero, false,
// nil) for an opcode it does not handle (ping, pong and close always
// yield an event), or a non-nil error on connection failure.
func (r *Reader) handleControl(h frameHeader, payload []byte) (Event, bool, error) {
	c := r.conn

	switch h.op {
	case opPing:
		// spec.md section 4.4: "If Open or ClosingReceivedRemote and
		// auto-pong is enabled, schedule a pong with identical payload."
		if c.opts.autoPong() && (c.state.get() == stateOpen || c.state.get() == stateClosingReceivedRemote) {
			if err := c.writeFrameLocked(opPong, true, payload); err != nil {
				return Event{}, false, c.failIO(err)
			}
		}
		return Event{Kind: EventPing, Data: payload}, true, nil

	case opPong:
		return Event{Kind: EventPong, Data: payload}, true, nil

	case opClose:
		return r.handleClose(payload)

	default:
		return Event{}, false, nil
	}
}

// handleClose processes an inbound close frame per spec.md section 4.5:
// it validates the payload, advances the state machine, writes the echo
// when required, and always tears down the transport once the handshake
// is resolved (both transition rows for "recv close" end in Closed plus
// transport close).
func (r *Reader) handleClose(payload []byte) (Event, bool, error) {
	c := r.conn

	code, reason, err := decodeClosePayload(payload)
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) {
			return Event{}, false, c.failProtocol(pe)
		}
		return Event{}, false, err
	}

	shouldEcho, _ := c.state.receiveRemoteClose()
	logCloseHandshake(c.opts, code, reason, false)

	if shouldEcho {
		echoCode := code
		if echoCode == 0 || echoCode == CloseNoStatusReceived {
			echoCode = CloseNormalClosure
		}
		if werr := c.sendCloseFrame(echoCode, ""); werr != nil {
			return Event{}, false, c.failIO(werr)
		}
		c.state.completeEcho()
	}

	c.teardown()
	return Event{Kind: EventClose, Code: code, Reason: reason}, true, nil
}
