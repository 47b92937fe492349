// Package wire implements the AMQP 1.0 binary layer: the 8-byte frame
// header and the primitive type encodings performative bodies are built
// from (described lists, unsigned integers, strings, symbols, binaries).
//
// The package deliberately covers only the subset of the AMQP type system
// the protocol engine needs. Encoding appends to byte slices; decoding is
// cursor-based via Reader. Multi-byte integers are network byte order as
// required by the AMQP 1.0 specification (part 1.6).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame header layout (AMQP 1.0 part 2.3.1):
//
//	0      4     5     6        8
//	+------+-----+-----+--------+
//	| size |doff |type |channel |
//	+------+-----+-----+--------+
//
// size is the total frame length including the header itself; doff is the
// data offset in 4-byte words (minimum 2, i.e. the 8-byte header).
const (
	// FrameHeaderSize is the fixed size of an AMQP frame header in bytes.
	FrameHeaderSize = 8

	// MinDataOffset is the minimum legal doff value (header only, no
	// extended header).
	MinDataOffset = 2

	// FrameTypeAMQP identifies an AMQP performative frame.
	FrameTypeAMQP = 0x00

	// FrameTypeSASL identifies a SASL frame. The engine does not speak
	// SASL; the constant exists so unexpected frames can be named in logs.
	FrameTypeSASL = 0x01
)

// Framing errors.
var (
	// ErrHeaderTooShort indicates fewer than 8 bytes were available for a
	// frame header.
	ErrHeaderTooShort = errors.New("frame header too short")

	// ErrInvalidDataOffset indicates a doff below the minimum of 2 words.
	ErrInvalidDataOffset = errors.New("invalid frame data offset")

	// ErrFrameTooShort indicates the declared frame size is smaller than
	// the header it must contain.
	ErrFrameTooShort = errors.New("declared frame size below header size")
)

// FrameHeader is the fixed header preceding every AMQP frame.
type FrameHeader struct {
	// Size is the total frame length in bytes, header included.
	Size uint32

	// DataOffset is the offset of the frame body in 4-byte words.
	DataOffset uint8

	// FrameType discriminates AMQP vs SASL frames.
	FrameType uint8

	// Channel is the transport channel the frame belongs to.
	Channel uint16
}

// ParseFrameHeader extracts a FrameHeader from wire format (big-endian).
//
// The input must be at least 8 bytes. The declared size and data offset
// are validated here; body extraction is the caller's concern because the
// body may not have been read yet.
func ParseFrameHeader(data []byte) (FrameHeader, error) {
	if len(data) < FrameHeaderSize {
		return FrameHeader{}, ErrHeaderTooShort
	}

	h := FrameHeader{
		Size:       binary.BigEndian.Uint32(data[0:4]),
		DataOffset: data[4],
		FrameType:  data[5],
		Channel:    binary.BigEndian.Uint16(data[6:8]),
	}

	if h.DataOffset < MinDataOffset {
		return FrameHeader{}, ErrInvalidDataOffset
	}
	if h.Size < FrameHeaderSize {
		return FrameHeader{}, ErrFrameTooShort
	}
	return h, nil
}

// BodyOffset returns the byte offset of the frame body within the frame.
func (h FrameHeader) BodyOffset() int {
	return int(h.DataOffset) * 4
}

// BuildFrame wraps an encoded performative body in a frame header for the
// given channel. An empty body produces an empty (keepalive) frame.
func BuildFrame(channel uint16, body []byte) []byte {
	frame := make([]byte, FrameHeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(FrameHeaderSize+len(body)))
	frame[4] = MinDataOffset
	frame[5] = FrameTypeAMQP
	binary.BigEndian.PutUint16(frame[6:8], channel)
	copy(frame[FrameHeaderSize:], body)
	return frame
}

// AMQP primitive type codes (part 1.6). Only the codes the engine
// produces or consumes are listed; Reader.Skip understands the full
// encoding categories via the code's subcategory nibble.
const (
	TypeCodeNull       = 0x40
	TypeCodeBoolTrue   = 0x41
	TypeCodeBoolFalse  = 0x42
	TypeCodeBool       = 0x56
	TypeCodeUint0      = 0x43
	TypeCodeSmallUint  = 0x52
	TypeCodeUint       = 0x70
	TypeCodeUshort     = 0x60
	TypeCodeUbyte      = 0x50
	TypeCodeUlong0     = 0x44
	TypeCodeSmallUlong = 0x53
	TypeCodeUlong      = 0x80
	TypeCodeStr8       = 0xa1
	TypeCodeStr32      = 0xb1
	TypeCodeSym8       = 0xa3
	TypeCodeSym32      = 0xb3
	TypeCodeVbin8      = 0xa0
	TypeCodeVbin32     = 0xb0
	TypeCodeList0      = 0x45
	TypeCodeList8      = 0xc0
	TypeCodeList32     = 0xd0
	TypeCodeMap8       = 0xc1
	TypeCodeMap32      = 0xd1
	TypeCodeDescribed  = 0x00
)

// Decoding errors.
var (
	// ErrBufferExhausted indicates a read past the end of the input.
	ErrBufferExhausted = errors.New("buffer exhausted")
)

// TypeError describes a type-code mismatch during decoding.
type TypeError struct {
	// Want names the expected type.
	Want string

	// Got is the type code found on the wire.
	Got byte
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expected %s, got type code 0x%02x", e.Want, e.Got)
}
