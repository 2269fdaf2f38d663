package websocket

import "errors"

var errControlPayloadTooLarge = errors.New("websocket: control frame payload exceeds 125 bytes")

// Writer is a connection's writer half: spec.md section 4.6, "send text,
// send binary (either buffered or streamed as fragments with explicit
// FIN), send ping, send pong, send close(code, reason)." Every Send* call
// is synchronous with respect to the transport: a frame is fully written
// (and, for a buffered send, atomic with respect to other writer calls)
// before the call returns, per spec.md section 5's back-pressure rule.
type Writer struct {
	conn *Conn
}

// SendText sends a complete text message in a single frame. The caller
// is responsible for payload being valid UTF-8; the codec validates
// inbound text, not outbound (spec.md section 4.3's invariant is phrased
// in terms of what's "delivered to the application").
func (w *Writer) SendText(payload string) error {
	return w.sendData(opText, true, []byte(payload))
}

// SendBinary sends a complete binary message in a single frame.
func (w *Writer) SendBinary(payload []byte) error {
	return w.sendData(opBinary, true, payload)
}

// SendTextFragment sends one fragment of a streamed text message. first
// selects the text opcode for the initial fragment and the continuation
// opcode otherwise; fin marks the final fragment. The caller must not
// start a second message until a fragment with fin=true has been sent,
// per spec.md section 5: fragments of one message are emitted
// contiguously.
func (w *Writer) SendTextFragment(first, fin bool, payload string) error {
	return w.sendData(fragmentOpcode(first, opText), fin, []byte(payload))
}

// SendBinaryFragment is the binary counterpart of SendTextFragment.
func (w *Writer) SendBinaryFragment(first, fin bool, payload []byte) error {
	return w.sendData(fragmentOpcode(first, opBinary), fin, payload)
}

func fragmentOpcode(first bool, op opcode) opcode {
	if first {
		return op
	}
	return opContinuation
}

func (w *Writer) sendData(op opcode, fin bool, payload []byte) error {
	c := w.conn
	if poisonErr, ok := c.state.poisonedErr(); ok {
		return poisonErr
	}
	if !c.state.canSendData() {
		return &StateError{Op: op.String(), State: c.state.get()}
	}
	if err := c.writeFrameLocked(op, fin, payload); err != nil {
		return c.failIO(err)
	}
	return nil
}

// SendPing sends a ping with the given payload (at most 125 bytes).
func (w *Writer) SendPing(payload []byte) error {
	return w.sendControl(opPing, payload)
}

// SendPong sends an unsolicited pong; see spec.md section 4.4, "Pong ...
// Unsolicited pongs are valid."
func (w *Writer) SendPong(payload []byte) error {
	return w.sendControl(opPong, payload)
}

func (w *Writer) sendControl(op opcode, payload []byte) error {
	if len(payload) > 125 {
		return errControlPayloadTooLarge
	}
	c := w.conn
	if poisonErr, ok := c.state.poisonedErr(); ok {
		return poisonErr
	}
	switch c.state.get() {
	case stateOpen, stateClosingReceivedRemote:
	default:
		return ErrConnClosed
	}
	if err := c.writeFrameLocked(op, true, payload); err != nil {
		return c.failIO(err)
	}
	return nil
}

// SendClose begins (from Open) or completes (from ClosingReceivedRemote)
// the closing handshake, per spec.md section 4.5. code must be a valid
// application close code (section 3) or zero for "no code". Once the
// handshake resolves, later SendText, SendBinary and fragment sends
// return a StateError, later SendPing, SendPong and SendClose calls
// return ErrConnClosed, and every later Receive call returns
// ErrConnClosed.
func (w *Writer) SendClose(code CloseCode, reason string) error {
	if code != 0 && !code.valid() {
		return newProtocolError(CloseProtocolError, "refusing to send a forbidden close code")
	}

	c := w.conn
	if poisonErr, ok := c.state.poisonedErr(); ok {
		return poisonErr
	}

	shouldSend, shouldTearDown, err := c.state.beginLocalClose()
	if err != nil {
		return err
	}
	logCloseHandshake(c.opts, code, reason, true)

	if shouldSend {
		if werr := c.sendCloseFrame(code, reason); werr != nil {
			return c.failIO(werr)
		}
	}
	if shouldTearDown {
		c.teardown()
	}
	return nil
}
