package websocket

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func TestReadFrameHeaderUnmaskedText(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{
		0x81, 0x05, 0x48, 0x65, 0x6c, 0x6c, 0x6f,
	}))
	h, err := readFrameHeader(r, true, defaultMaxFrameSize)
	if err != nil {
		t.Fatalf("readFrameHeader: %v", err)
	}
	if !h.fin || h.op != opText || h.masked || h.payloadLen != 5 {
		t.Fatalf("unexpected header: %+v", h)
	}

	payload, err := readFramePayload(r, h)
	if err != nil {
		t.Fatalf("readFramePayload: %v", err)
	}
	if string(payload) != "Hello" {
		t.Fatalf("payload = %q, want %q", payload, "Hello")
	}
}

func TestReadFrameHeaderRejectsMaskedFromServer(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{
		0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58,
	}))
	_, err := readFrameHeader(r, true, defaultMaxFrameSize)
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Code != CloseProtocolError {
		t.Fatalf("want ProtocolError(1002), got %v", err)
	}
}

func TestWriteFrameMasksPayload(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}
	if err := writeFrame(w, opText, true, []byte("Hello"), key); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	want := []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("wrote %v, want %v", buf.Bytes(), want)
	}
}

func TestReadFrameHeaderReservedBit(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0xC1, 0x00}))
	_, err := readFrameHeader(r, true, defaultMaxFrameSize)
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Code != CloseProtocolError {
		t.Fatalf("want ProtocolError(1002) for reserved bit, got %v", err)
	}
}

func TestReadFrameHeaderUnknownOpcode(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x83, 0x00}))
	_, err := readFrameHeader(r, true, defaultMaxFrameSize)
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Code != CloseProtocolError {
		t.Fatalf("want ProtocolError(1002) for unknown opcode, got %v", err)
	}
}

func TestReadFrameHeaderControlFragmented(t *testing.T) {
	// FIN=0, opcode=ping: control frames must never be fragmented.
	r := bufio.NewReader(bytes.NewReader([]byte{0x09, 0x00}))
	_, err := readFrameHeader(r, true, defaultMaxFrameSize)
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Code != CloseProtocolError {
		t.Fatalf("want ProtocolError(1002) for fragmented control frame, got %v", err)
	}
}

func TestReadFrameHeaderControlTooBig(t *testing.T) {
	// FIN=1, opcode=ping, length=126 (extended 16-bit length follows).
	r := bufio.NewReader(bytes.NewReader([]byte{0x89, 126, 0x00, 126}))
	_, err := readFrameHeader(r, true, defaultMaxFrameSize)
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Code != CloseProtocolError {
		t.Fatalf("want ProtocolError(1002) for oversized control frame, got %v", err)
	}
}

func TestReadFrameHeaderExceedsMaxFrameSize(t *testing.T) {
	// FIN=1, opcode=binary, length=65535 via the 16-bit extension.
	r := bufio.NewReader(bytes.NewReader([]byte{0x82, 126, 0xff, 0xff}))
	_, err := readFrameHeader(r, true, 1024)
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Code != CloseMessageTooBig {
		t.Fatalf("want ProtocolError(1009), got %v", err)
	}
}

func TestFrameHeaderEncodeDecodeRoundTrip(t *testing.T) {
	key := [4]byte{1, 2, 3, 4}
	payload := bytes.Repeat([]byte("x"), 70000) // forces the 64-bit length extension

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeFrame(w, opBinary, true, payload, key); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	r := bufio.NewReader(&buf)
	// writeFrame always masks, so decode in the receiving (server) role.
	h, err := readFrameHeader(r, false, uint64(len(payload))+1)
	if err != nil {
		t.Fatalf("readFrameHeader: %v", err)
	}
	if h.payloadLen != uint64(len(payload)) {
		t.Fatalf("payloadLen = %d, want %d", h.payloadLen, len(payload))
	}
	got, err := readFramePayload(r, h)
	if err != nil {
		t.Fatalf("readFramePayload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("round trip payload mismatch")
	}
}
