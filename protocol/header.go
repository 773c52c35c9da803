// Package protocol implements the wire framing for hioload-tcp streams: a
// fixed-size, little-endian length header followed by exactly that many
// payload bytes, with payload-size enforcement to prevent resource
// exhaustion.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package protocol

import (
	"encoding/binary"

	"github.com/momentics/hioload-tcp/api"
)

// HeaderSize is the fixed, compile-time-known size in bytes of every frame
// header on the wire.
const HeaderSize = 4

// Encode writes the little-endian 32-bit payload length into into, which
// must be at least HeaderSize bytes long.
func Encode(payloadLength uint32, into []byte) {
	binary.LittleEndian.PutUint32(into, payloadLength)
}

// Decode reads the payload length out of a HeaderSize-byte header and
// validates it against maxPayload. A length of zero or a length exceeding
// maxPayload is a MalformedHeader error.
func Decode(header []byte, maxPayload uint32) (uint32, error) {
	if len(header) < HeaderSize {
		return 0, api.WrapError(api.ErrCodeMalformedHeader, "short header", nil)
	}
	length := binary.LittleEndian.Uint32(header)
	if length == 0 {
		return 0, api.NewError(api.ErrCodeMalformedHeader, "zero-length frame is not permitted")
	}
	if length > maxPayload {
		return 0, api.NewError(api.ErrCodeMalformedHeader, "declared payload length exceeds maximum message size")
	}
	return length, nil
}

// TotalFrameSize returns the full size on the wire of a frame whose payload
// is payloadLength bytes long.
func TotalFrameSize(payloadLength uint32) uint32 {
	return HeaderSize + payloadLength
}
