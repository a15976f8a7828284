// Package wire implements the 12-byte UDP packet header and the control
// sub-protocol carried inside Control packets.
package wire

import "fmt"

// HeaderSize is the fixed size of PacketHeader on the wire.
const HeaderSize = 12

// ProtocolVersion is the version value this implementation emits. Decoders
// accept any 2-bit version value but preserve it unchanged.
const ProtocolVersion = 0

// PacketType identifies the payload carried after the header.
type PacketType uint8

const (
	PacketAudio         PacketType = 0x01
	PacketVideoKeyframe PacketType = 0x02
	PacketVideoDelta    PacketType = 0x03
	PacketControl       PacketType = 0x04
	PacketBye           PacketType = 0x05
)

// ParsePacketType validates a raw type nibble, returning ok=false for
// unknown types (callers must drop those datagrams silently).
func ParsePacketType(b uint8) (PacketType, bool) {
	switch PacketType(b) {
	case PacketAudio, PacketVideoKeyframe, PacketVideoDelta, PacketControl, PacketBye:
		return PacketType(b), true
	default:
		return 0, false
	}
}

// PacketHeader is the fixed 12-byte header prefixing every datagram.
type PacketHeader struct {
	Version        uint8
	Type           PacketType
	ParticipantID  uint8
	Sequence       uint16
	TimestampMs    uint32
	PayloadLength  uint16
	FragmentID     uint8
	FragmentTotal  uint8
}

// NewHeader builds a header with the current protocol version and a
// fragment_total of 1 (single-fragment default).
func NewHeader(typ PacketType, participantID uint8, seq uint16, timestampMs uint32, payloadLen uint16) PacketHeader {
	return PacketHeader{
		Version:       ProtocolVersion,
		Type:          typ,
		ParticipantID: participantID,
		Sequence:      seq,
		TimestampMs:   timestampMs,
		PayloadLength: payloadLen,
		FragmentID:    0,
		FragmentTotal: 1,
	}
}

// Encode writes the header's 12 bytes into dst, which must be at least
// HeaderSize long. Byte 0 packs version into its top 2 bits and the packet
// type into its low 5 bits; bit 5 is left as the (unused) reserved bit.
func (h PacketHeader) Encode(dst []byte) {
	_ = dst[HeaderSize-1]
	dst[0] = (h.Version&0x03)<<6 | uint8(h.Type)&0x1F
	dst[1] = h.ParticipantID
	dst[2] = byte(h.Sequence >> 8)
	dst[3] = byte(h.Sequence)
	dst[4] = byte(h.TimestampMs >> 24)
	dst[5] = byte(h.TimestampMs >> 16)
	dst[6] = byte(h.TimestampMs >> 8)
	dst[7] = byte(h.TimestampMs)
	dst[8] = byte(h.PayloadLength >> 8)
	dst[9] = byte(h.PayloadLength)
	dst[10] = h.FragmentID
	dst[11] = h.FragmentTotal
}

// DecodeHeader parses a 12-byte header. ok is false for unknown packet
// types or undersized input.
func DecodeHeader(src []byte) (h PacketHeader, ok bool) {
	if len(src) < HeaderSize {
		return PacketHeader{}, false
	}
	typ, known := ParsePacketType(src[0] & 0x1F)
	if !known {
		return PacketHeader{}, false
	}
	h.Version = src[0] >> 6
	h.Type = typ
	h.ParticipantID = src[1]
	h.Sequence = uint16(src[2])<<8 | uint16(src[3])
	h.TimestampMs = uint32(src[4])<<24 | uint32(src[5])<<16 | uint32(src[6])<<8 | uint32(src[7])
	h.PayloadLength = uint16(src[8])<<8 | uint16(src[9])
	h.FragmentID = src[10]
	h.FragmentTotal = src[11]
	return h, true
}

// Packet is a header plus its payload bytes.
type Packet struct {
	Header  PacketHeader
	Payload []byte
}

// Encode serializes the packet to a newly allocated byte slice.
func (p Packet) Encode() []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	p.Header.Encode(buf[:HeaderSize])
	copy(buf[HeaderSize:], p.Payload)
	return buf
}

// DecodePacket parses a full datagram, validating that the declared
// payload length does not exceed the datagram's actual tail.
func DecodePacket(src []byte) (Packet, bool) {
	h, ok := DecodeHeader(src)
	if !ok {
		return Packet{}, false
	}
	tail := src[HeaderSize:]
	if int(h.PayloadLength) > len(tail) {
		return Packet{}, false
	}
	payload := make([]byte, h.PayloadLength)
	copy(payload, tail[:h.PayloadLength])
	return Packet{Header: h, Payload: payload}, true
}

func (t PacketType) String() string {
	switch t {
	case PacketAudio:
		return "Audio"
	case PacketVideoKeyframe:
		return "VideoKeyframe"
	case PacketVideoDelta:
		return "VideoDelta"
	case PacketControl:
		return "Control"
	case PacketBye:
		return "Bye"
	default:
		return fmt.Sprintf("PacketType(0x%02x)", uint8(t))
	}
}
