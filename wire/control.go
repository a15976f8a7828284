package wire

import (
	"net"
)

// ControlType discriminates the payload carried inside a Control packet.
type ControlType uint8

const (
	ControlHello       ControlType = 0x01
	ControlWelcome     ControlType = 0x02
	ControlPeerJoined  ControlType = 0x03
	ControlHeartbeat   ControlType = 0x04
	ControlNack        ControlType = 0x05
)

// ParseControlType reads the discriminator byte from a control payload.
func ParseControlType(payload []byte) (ControlType, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	switch ControlType(payload[0]) {
	case ControlHello, ControlWelcome, ControlPeerJoined, ControlHeartbeat, ControlNack:
		return ControlType(payload[0]), true
	default:
		return 0, false
	}
}

func writeAddr(buf []byte, addr netip4) []byte {
	buf = append(buf, addr.ip[:]...)
	buf = append(buf, byte(addr.port>>8), byte(addr.port))
	return buf
}

func readAddr(buf []byte, offset int) (netip4, int, bool) {
	if len(buf) < offset+6 {
		return netip4{}, 0, false
	}
	var a netip4
	copy(a.ip[:], buf[offset:offset+4])
	a.port = uint16(buf[offset+4])<<8 | uint16(buf[offset+5])
	return a, offset + 6, true
}

// netip4 is a wire-shaped IPv4 address + port pair (6 bytes on the wire).
type netip4 struct {
	ip   [4]byte
	port uint16
}

// NewNetIP4 builds a netip4 from a *net.UDPAddr, truncating to its IPv4
// representation (the control addressing on the wire is v4-only).
func NewNetIP4(addr *net.UDPAddr) netip4 {
	var a netip4
	ip4 := addr.IP.To4()
	if ip4 != nil {
		copy(a.ip[:], ip4)
	}
	a.port = uint16(addr.Port)
	return a
}

// UDPAddr converts back to a *net.UDPAddr.
func (a netip4) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(a.ip[0], a.ip[1], a.ip[2], a.ip[3]), Port: int(a.port)}
}

// Hello is sent by a guest to request admission. Wire:
// [0x01][name_len u8][name utf8...]
type Hello struct {
	Name string
}

func (h Hello) Encode() []byte {
	name := []byte(h.Name)
	buf := make([]byte, 0, 2+len(name))
	buf = append(buf, byte(ControlHello), byte(len(name)))
	buf = append(buf, name...)
	return buf
}

func DecodeHello(buf []byte) (Hello, bool) {
	if len(buf) < 2 {
		return Hello{}, false
	}
	nameLen := int(buf[1])
	if len(buf) < 2+nameLen {
		return Hello{}, false
	}
	return Hello{Name: string(buf[2 : 2+nameLen])}, true
}

// Welcome is the host's admission reply. Wire:
// [0x02][session_id u32 BE][assigned_participant_id u8]
type Welcome struct {
	SessionID           uint32
	AssignedParticipant uint8
}

func (w Welcome) Encode() []byte {
	buf := make([]byte, 6)
	buf[0] = byte(ControlWelcome)
	buf[1] = byte(w.SessionID >> 24)
	buf[2] = byte(w.SessionID >> 16)
	buf[3] = byte(w.SessionID >> 8)
	buf[4] = byte(w.SessionID)
	buf[5] = w.AssignedParticipant
	return buf
}

func DecodeWelcome(buf []byte) (Welcome, bool) {
	if len(buf) < 6 {
		return Welcome{}, false
	}
	sid := uint32(buf[1])<<24 | uint32(buf[2])<<16 | uint32(buf[3])<<8 | uint32(buf[4])
	return Welcome{SessionID: sid, AssignedParticipant: buf[5]}, true
}

// PeerJoined announces a newly admitted peer to existing participants.
// Wire: [0x03][participant_id u8][addr 6B][name_len u8][name utf8...]
type PeerJoined struct {
	ParticipantID uint8
	Addr          *net.UDPAddr
	Name          string
}

func (p PeerJoined) Encode() []byte {
	name := []byte(p.Name)
	buf := make([]byte, 0, 8+len(name))
	buf = append(buf, byte(ControlPeerJoined), p.ParticipantID)
	buf = writeAddr(buf, NewNetIP4(p.Addr))
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	return buf
}

func DecodePeerJoined(buf []byte) (PeerJoined, bool) {
	if len(buf) < 3 {
		return PeerJoined{}, false
	}
	id := buf[1]
	addr, offset, ok := readAddr(buf, 2)
	if !ok {
		return PeerJoined{}, false
	}
	if len(buf) < offset+1 {
		return PeerJoined{}, false
	}
	nameLen := int(buf[offset])
	if len(buf) < offset+1+nameLen {
		return PeerJoined{}, false
	}
	name := string(buf[offset+1 : offset+1+nameLen])
	return PeerJoined{ParticipantID: id, Addr: addr.UDPAddr(), Name: name}, true
}

// Heartbeat is an empty-body keepalive. Wire: [0x04]
type Heartbeat struct{}

func (Heartbeat) Encode() []byte {
	return []byte{byte(ControlHeartbeat)}
}

func DecodeHeartbeat(buf []byte) (Heartbeat, bool) {
	if len(buf) == 0 {
		return Heartbeat{}, false
	}
	return Heartbeat{}, true
}

// Nack requests retransmission of a sequence range. Wire:
// [0x05][seq_start u16 BE][count u8]
type Nack struct {
	SeqStart uint16
	Count    uint8
}

func (n Nack) Encode() []byte {
	return []byte{byte(ControlNack), byte(n.SeqStart >> 8), byte(n.SeqStart), n.Count}
}

func DecodeNack(buf []byte) (Nack, bool) {
	if len(buf) < 4 {
		return Nack{}, false
	}
	return Nack{SeqStart: uint16(buf[1])<<8 | uint16(buf[2]), Count: buf[3]}, true
}
