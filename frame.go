package websocket

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// frameHeader is the parsed form of a frame's first 2-14 bytes, RFC 6455
// section 5.2. Payload bytes are read separately, by readFramePayload,
// once the header has been validated; the payload is buffered whole.
type frameHeader struct {
	fin              bool
	rsv1, rsv2, rsv3 bool
	op               opcode
	masked           bool
	payloadLen       uint64
	maskKey          [4]byte
}

func (h frameHeader) String() string {
	return fmt.Sprintf("fin=%t rsv=%t%t%t op=%s masked=%t len=%d",
		h.fin, h.rsv1, h.rsv2, h.rsv3, h.op, h.masked, h.payloadLen)
}

func (h frameHeader) isControl() bool { return h.op.isControl() }

// encode serializes the header to its minimal wire form: payload lengths
// below 126 use the 7-bit field directly, lengths up to 65535 use the
// 16-bit extension, and anything larger uses the 64-bit extension with the
// most-significant bit clear (spec.md section 4.2, encoding rule 1). The
// caller is responsible for writing h.maskKey and the (already masked)
// payload afterwards.
func (h frameHeader) encode() []byte {
	buf := make([]byte, 2, 14)
	if h.fin {
		buf[0] = finBit
	}
	if h.rsv1 {
		buf[0] |= rsv1Bit
	}
	if h.rsv2 {
		buf[0] |= rsv2Bit
	}
	if h.rsv3 {
		buf[0] |= rsv3Bit
	}
	buf[0] |= byte(h.op) & opMask

	if h.masked {
		buf[1] = maskBit
	}

	switch {
	case h.payloadLen <= 125:
		buf[1] |= byte(h.payloadLen)
	case h.payloadLen <= math.MaxUint16:
		buf[1] |= 126
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(h.payloadLen))
		buf = append(buf, ext[:]...)
	default:
		buf[1] |= 127
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], h.payloadLen)
		buf = append(buf, ext[:]...)
	}

	if h.masked {
		buf = append(buf, h.maskKey[:]...)
	}
	return buf
}

// frameCodec constraints, spec.md section 6 "max_frame_size" default.
const defaultMaxFrameSize = 64 * 1024 * 1024

// readFrameHeader reads and validates one frame header from r, applying
// decoding rules 1-5 of spec.md section 4.2 before any payload is
// consumed. isClient indicates which masking direction this endpoint
// expects to receive (a client must reject masked inbound frames; rule
// 5). maxFrameSize bounds the payload length (rule 4, close 1009).
//
// On success the returned header's payload has NOT been read yet; the
// caller reads exactly header.payloadLen bytes next.
func readFrameHeader(r *bufio.Reader, isClient bool, maxFrameSize uint64) (frameHeader, error) {
	var first [2]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return frameHeader{}, err
	}

	h := frameHeader{
		fin:    first[0]&finBit != 0,
		rsv1:   first[0]&rsv1Bit != 0,
		rsv2:   first[0]&rsv2Bit != 0,
		rsv3:   first[0]&rsv3Bit != 0,
		op:     opcode(first[0] & opMask),
		masked: first[1]&maskBit != 0,
	}

	// Rule 1: any RSV bit set with no extension negotiated is a protocol
	// error. This core never negotiates an extension (spec.md section 1).
	if h.rsv1 || h.rsv2 || h.rsv3 {
		return frameHeader{}, newProtocolError(CloseProtocolError, "reserved bit set with no extension negotiated")
	}

	// Rule 2: unknown opcode.
	if !h.op.isValid() {
		return frameHeader{}, newProtocolError(CloseProtocolError, fmt.Sprintf("unknown opcode 0x%X", byte(h.op)))
	}

	// Rule 5: masking direction. Clients must reject masked inbound
	// frames; a hypothetical server role (unused by this client-only
	// core, kept for symmetry with the codec's decoding rules) would
	// reject unmasked inbound frames.
	if isClient && h.masked {
		return frameHeader{}, newProtocolError(CloseProtocolError, "received masked frame from server")
	}
	if !isClient && !h.masked {
		return frameHeader{}, newProtocolError(CloseProtocolError, "received unmasked frame from client")
	}

	payloadLen := uint64(first[1] & payloadLenMask)
	switch payloadLen {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return frameHeader{}, err
		}
		payloadLen = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return frameHeader{}, err
		}
		payloadLen = binary.BigEndian.Uint64(ext[:])
		if payloadLen&(1<<63) != 0 {
			return frameHeader{}, newProtocolError(CloseProtocolError, "64-bit length has high bit set")
		}
	}
	// Note rule 6: a non-minimal length prefix (e.g. 126 encoding a value
	// < 126) is accepted on receive; only the encoder is required to emit
	// minimally.
	h.payloadLen = payloadLen

	// Rule 3: control frames are never fragmented and never exceed 125
	// bytes.
	if h.isControl() && (!h.fin || h.payloadLen > 125) {
		return frameHeader{}, newProtocolError(CloseProtocolError, "control frame fragmented or oversized")
	}

	// Rule 4: frame size ceiling.
	if h.payloadLen > maxFrameSize {
		return frameHeader{}, newProtocolError(CloseMessageTooBig, fmt.Sprintf("frame length %d exceeds max_frame_size", h.payloadLen))
	}

	if h.masked {
		if _, err := io.ReadFull(r, h.maskKey[:]); err != nil {
			return frameHeader{}, err
		}
	}

	return h, nil
}

// readFramePayload reads exactly h.payloadLen bytes from r and, if the
// frame was masked, unmasks them in place.
func readFramePayload(r *bufio.Reader, h frameHeader) ([]byte, error) {
	if h.payloadLen == 0 {
		return nil, nil
	}
	payload := make([]byte, h.payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if h.masked {
		maskBytes(h.maskKey, payload)
	}
	return payload, nil
}

// writeFrame writes one complete frame (header, mask key, masked payload)
// to w and flushes it. Clients always mask (masked must be true); this
// core never sends unmasked frames since it implements the client side
// only.
func writeFrame(w *bufio.Writer, op opcode, fin bool, payload []byte, maskKey [4]byte) error {
	h := frameHeader{
		fin:        fin,
		op:         op,
		masked:     true,
		payloadLen: uint64(len(payload)),
		maskKey:    maskKey,
	}
	if _, err := w.Write(h.encode()); err != nil {
		return err
	}
	if len(payload) > 0 {
		masked := make([]byte, len(payload))
		copy(masked, payload)
		maskBytes(maskKey, masked)
		if _, err := w.Write(masked); err != nil {
			return err
		}
	}
	return w.Flush()
}
