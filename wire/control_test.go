package wire

import (
	"net"
	"strings"
	"testing"
)

func TestHelloRoundTrip(t *testing.T) {
	names := []string{"", "A", strings.Repeat("x", 255)}
	for _, name := range names {
		h := Hello{Name: name}
		got, ok := DecodeHello(h.Encode())
		if !ok || got.Name != name {
			t.Fatalf("Hello round-trip failed for name len %d: ok=%v got=%q", len(name), ok, got.Name)
		}
	}
}

func TestWelcomeRoundTrip(t *testing.T) {
	w := Welcome{SessionID: 0xdeadbeef, AssignedParticipant: 2}
	got, ok := DecodeWelcome(w.Encode())
	if !ok || got != w {
		t.Fatalf("Welcome round-trip failed: ok=%v got=%+v want=%+v", ok, got, w)
	}
}

func TestPeerJoinedRoundTrip(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 42), Port: 9001}
	p := PeerJoined{ParticipantID: 3, Addr: addr, Name: "guest"}
	got, ok := DecodePeerJoined(p.Encode())
	if !ok {
		t.Fatal("decode failed")
	}
	if got.ParticipantID != p.ParticipantID || got.Name != p.Name {
		t.Fatalf("mismatch: got %+v", got)
	}
	if !got.Addr.IP.Equal(addr.IP) || got.Addr.Port != addr.Port {
		t.Fatalf("address mismatch: want %v got %v", addr, got.Addr)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	hb := Heartbeat{}
	got, ok := DecodeHeartbeat(hb.Encode())
	if !ok || got != hb {
		t.Fatalf("Heartbeat round-trip failed")
	}
	if _, ok := DecodeHeartbeat(nil); ok {
		t.Fatal("expected decode failure on empty buffer")
	}
}

func TestNackRoundTrip(t *testing.T) {
	n := Nack{SeqStart: 65000, Count: 5}
	got, ok := DecodeNack(n.Encode())
	if !ok || got != n {
		t.Fatalf("Nack round-trip failed: ok=%v got=%+v", ok, got)
	}
}

func TestParseControlType(t *testing.T) {
	if _, ok := ParseControlType(nil); ok {
		t.Fatal("expected false on empty payload")
	}
	if ct, ok := ParseControlType([]byte{0x01, 0}); !ok || ct != ControlHello {
		t.Fatalf("expected ControlHello, got %v ok=%v", ct, ok)
	}
	if _, ok := ParseControlType([]byte{0xFF}); ok {
		t.Fatal("expected false on unknown control type")
	}
}
