package websocket

import "bytes"

// assembler aggregates continuation frames into a logical message,
// validating UTF-8 incrementally for text messages, per spec.md
// section 4.3. It holds no transport state: frame-by-frame input comes
// from the connection's read loop, and a completed message (or a
// protocol error) comes back out.
type assembler struct {
	inProgress bool
	op         opcode // opcode of the first frame of the in-progress message
	buf        bytes.Buffer
	utf8       utf8Validator
	maxMessage uint64
}

func newAssembler(maxMessageSize uint64) *assembler {
	return &assembler{maxMessage: maxMessageSize}
}

// feed processes one data frame (text, binary, or continuation; control
// frames never reach the assembler, per spec.md section 4.3 "Control
// frames pass through without affecting the in-progress message"). It
// returns the completed message (type and payload) once a frame with
// FIN=1 has been processed, or (0, nil, nil) if the message is still in
// progress.
func (a *assembler) feed(h frameHeader, payload []byte) (MessageType, []byte, error) {
	switch {
	case !a.inProgress && h.op == opContinuation:
		// spec.md section 4.3: "Continuation frame with no message in
		// progress: fail 1002."
		return 0, nil, newProtocolError(CloseProtocolError, "continuation frame with no message in progress")

	case !a.inProgress:
		a.op = h.op
		a.buf.Reset()
		a.utf8 = utf8Validator{}

	case a.inProgress && h.op != opContinuation:
		// spec.md section 4.3: "Data frame while one in progress: opcode
		// must be 0x0 (continuation); otherwise fail 1002."
		return 0, nil, newProtocolError(CloseProtocolError, "data frame received while message in progress")
	}

	a.inProgress = true

	if uint64(a.buf.Len())+uint64(len(payload)) > a.maxMessage {
		a.inProgress = false
		return 0, nil, newProtocolError(CloseMessageTooBig, "reassembled message exceeds max_message_size")
	}

	if a.op == opText {
		if !a.utf8.write(payload) {
			a.inProgress = false
			return 0, nil, newProtocolError(CloseInvalidFrameData, "invalid UTF-8 in text message")
		}
	}
	a.buf.Write(payload)

	if !h.fin {
		return 0, nil, nil
	}

	if a.op == opText && !a.utf8.complete() {
		a.inProgress = false
		return 0, nil, newProtocolError(CloseInvalidFrameData, "text message ends mid UTF-8 sequence")
	}

	out := make([]byte, a.buf.Len())
	copy(out, a.buf.Bytes())
	a.inProgress = false
	a.buf.Reset()
	return MessageType(a.op), out, nil
}
