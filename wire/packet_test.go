package wire

import (
	"math/rand"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	types := []PacketType{PacketAudio, PacketVideoKeyframe, PacketVideoDelta, PacketControl, PacketBye}
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		want := PacketHeader{
			Version:       0,
			Type:          types[rng.Intn(len(types))],
			ParticipantID: uint8(rng.Intn(256)),
			Sequence:      uint16(rng.Intn(65536)),
			TimestampMs:   rng.Uint32(),
			PayloadLength: uint16(rng.Intn(65536)),
			FragmentID:    uint8(rng.Intn(256)),
			FragmentTotal: uint8(rng.Intn(256)),
		}
		buf := make([]byte, HeaderSize)
		want.Encode(buf)
		got, ok := DecodeHeader(buf)
		if !ok {
			t.Fatalf("decode failed for %+v", want)
		}
		if got != want {
			t.Fatalf("round-trip mismatch: want %+v got %+v", want, got)
		}
	}
}

func TestDecodeHeaderRejectsShort(t *testing.T) {
	if _, ok := DecodeHeader(make([]byte, HeaderSize-1)); ok {
		t.Fatal("expected decode failure on undersized buffer")
	}
}

func TestDecodeHeaderRejectsUnknownType(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[0] = 0x1F // type nibble 0x1F is not a known PacketType
	if _, ok := DecodeHeader(buf); ok {
		t.Fatal("expected decode failure on unknown packet type")
	}
}

func TestPacketRoundTrip(t *testing.T) {
	payload := []byte("hello, world")
	h := NewHeader(PacketAudio, 3, 42, 1000, uint16(len(payload)))
	p := Packet{Header: h, Payload: payload}

	encoded := p.Encode()
	got, ok := DecodePacket(encoded)
	if !ok {
		t.Fatal("decode failed")
	}
	if got.Header != h {
		t.Fatalf("header mismatch: want %+v got %+v", h, got.Header)
	}
	if string(got.Payload) != string(payload) {
		t.Fatalf("payload mismatch: want %q got %q", payload, got.Payload)
	}
}

func TestDecodePacketRejectsOverrunPayloadLength(t *testing.T) {
	h := NewHeader(PacketAudio, 1, 1, 0, 100) // claims 100 bytes
	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	// no payload bytes appended — declared length overruns the datagram tail
	if _, ok := DecodePacket(buf); ok {
		t.Fatal("expected decode failure when payload_length overruns datagram")
	}
}

func TestPacketTypeString(t *testing.T) {
	if PacketAudio.String() != "Audio" {
		t.Fatalf("unexpected String(): %s", PacketAudio.String())
	}
}
