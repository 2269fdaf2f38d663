package websocket

import (
	"crypto/rand"
	"encoding/binary"
)

// MaskKeySource produces a 32-bit masking key for one outbound frame.
// Cryptographically random is preferred but any uniformly random source
// is sufficient per RFC 6455 section 5.3; tests may install a
// deterministic source via DialOptions.MaskKeySource (spec.md section 6,
// "mask_key_source").
type MaskKeySource func() [4]byte

// randomMaskKey is the default MaskKeySource, backed by crypto/rand.
func randomMaskKey() [4]byte {
	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		// crypto/rand.Read only fails if the system CSPRNG is broken,
		// which leaves nothing sound to do but panic: a predictable mask
		// key is a protocol violation waiting to happen, not a
		// recoverable error.
		panic("websocket: crypto/rand unavailable: " + err.Error())
	}
	return key
}

// maskBytes applies the RFC 6455 section 5.3 masking algorithm to data in
// place: transformed[i] = original[i] XOR key[i%4]. Applying it twice with
// the same key restores the original bytes, so the same function masks on
// send and unmasks on receive.
//
// The loop processes 8 bytes at a time with a 64-bit word built by
// repeating the 4-byte key, falling back to a byte loop for the
// remainder, per the design note on masking performance: "word-wise XOR
// with a rotated key is the usual optimization."
func maskBytes(key [4]byte, data []byte) {
	if len(data) == 0 {
		return
	}
	var key64 uint64
	k32 := binary.LittleEndian.Uint32(key[:])
	key64 = uint64(k32) | uint64(k32)<<32

	i := 0
	for ; i+8 <= len(data); i += 8 {
		v := binary.LittleEndian.Uint64(data[i : i+8])
		binary.LittleEndian.PutUint64(data[i:i+8], v^key64)
	}
	for ; i < len(data); i++ {
		data[i] ^= key[i%4]
	}
}
