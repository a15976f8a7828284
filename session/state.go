// Package session holds participant/session state and the host/guest
// handshake-and-liveness manager built on top of the transport package.
package session

import (
	"net"
	"sync"
	"time"
)

// Role identifies whether this process is the session host or a guest.
type Role uint8

const (
	RoleHost Role = iota
	RoleGuest
)

// PeerState is a participant's liveness state machine:
//
//	Connecting  --first datagram received--> Connected
//	Connecting/Connected --5s no datagram--> Disconnected
//	Any --Bye received--> Disconnected
//	Disconnected is terminal.
type PeerState uint8

const (
	PeerConnecting PeerState = iota
	PeerConnected
	PeerDisconnected
)

// livenessTimeout is how long a peer may be silent before it is considered
// disconnected.
const livenessTimeout = 5 * time.Second

// Peer is a remote participant.
type Peer struct {
	ParticipantID uint8
	Name          string
	Addr          *net.UDPAddr
	State         PeerState
	LastSeen      time.Time
}

// State is the session's single point of synchronized truth: participants
// and counters. All mutating methods are short, non-blocking critical
// sections — never held across I/O, per SPEC_FULL.md §5.
type State struct {
	mu sync.Mutex

	role              Role
	sessionID         uint32
	myParticipantID   uint8
	myName            string
	peers             map[uint8]*Peer
	nextParticipantID uint8
	audioSeq          uint16
	videoSeq          uint16
	start             time.Time
	ended             bool
}

// NewHost creates host-role state: the host is always participant 1 and
// assigns guests starting at 2.
func NewHost(name string, sessionID uint32) *State {
	return &State{
		role:              RoleHost,
		sessionID:         sessionID,
		myParticipantID:   1,
		myName:            name,
		peers:             make(map[uint8]*Peer),
		nextParticipantID: 2,
		start:             time.Now(),
	}
}

// NewGuest creates guest-role state before the handshake completes;
// SessionID and MyParticipantID are both zero until AdoptWelcome is called.
func NewGuest(name string) *State {
	return &State{
		role:  RoleGuest,
		peers: make(map[uint8]*Peer),
		myName: name,
		start:  time.Now(),
	}
}

// AdoptWelcome applies the host's assigned session id and participant id,
// then inserts the host itself as participant 1 in the Connecting state.
func (s *State) AdoptWelcome(sessionID uint32, assignedID uint8, hostAddr *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.myParticipantID = assignedID
	s.peers[1] = &Peer{ParticipantID: 1, Name: "host", Addr: hostAddr, State: PeerConnecting, LastSeen: time.Now()}
}

// Role reports the session's role.
func (s *State) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// SessionID reports the 32-bit session id.
func (s *State) SessionID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// MyParticipantID reports this process's own participant id.
func (s *State) MyParticipantID() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.myParticipantID
}

// MyName reports this process's own display name.
func (s *State) MyName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.myName
}

// ElapsedMs reports milliseconds since the session started.
func (s *State) ElapsedMs() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(time.Since(s.start).Milliseconds())
}

// NextAudioSeq returns the next audio sequence number, wrapping on overflow.
func (s *State) NextAudioSeq() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.audioSeq
	s.audioSeq++
	return seq
}

// NextVideoSeq returns the next video sequence number, wrapping on
// overflow. Audio and video keep independent counters (see SPEC_FULL.md §9
// Open Question decision).
func (s *State) NextVideoSeq() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.videoSeq
	s.videoSeq++
	return seq
}

// AssignParticipantID allocates the next guest id (host role only).
func (s *State) AssignParticipantID() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextParticipantID
	s.nextParticipantID++
	return id
}

// AddPeer inserts a new participant in the Connecting state. Entries are
// never removed once added, only transitioned to Disconnected.
func (s *State) AddPeer(id uint8, name string, addr *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[id] = &Peer{ParticipantID: id, Name: name, Addr: addr, State: PeerConnecting, LastSeen: time.Now()}
}

// TouchPeer marks a participant as having just been heard from, promoting
// it from Connecting to Connected.
func (s *State) TouchPeer(id uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return
	}
	p.LastSeen = time.Now()
	if p.State == PeerConnecting {
		p.State = PeerConnected
	}
}

// TouchPeerByAddr finds the peer whose remote address matches addr and
// touches it (used when handling inbound Heartbeat control packets, which
// carry no reliable participant id of their own on some paths).
func (s *State) TouchPeerByAddr(addr *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		if p.Addr != nil && p.Addr.IP.Equal(addr.IP) && p.Addr.Port == addr.Port {
			p.LastSeen = time.Now()
			if p.State == PeerConnecting {
				p.State = PeerConnected
			}
			return
		}
	}
}

// MarkDisconnected transitions a participant to the terminal Disconnected
// state (explicit Bye).
func (s *State) MarkDisconnected(id uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.peers[id]; ok {
		p.State = PeerDisconnected
	}
}

// CheckTimeouts transitions any non-Disconnected peer silent for more than
// the liveness timeout to Disconnected, returning the ids that timed out.
func (s *State) CheckTimeouts() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var timedOut []uint8
	for id, p := range s.peers {
		if p.State != PeerDisconnected && now.Sub(p.LastSeen) > livenessTimeout {
			p.State = PeerDisconnected
			timedOut = append(timedOut, id)
		}
	}
	return timedOut
}

// ConnectedPeerAddrs returns the addresses of every non-Disconnected peer
// (this includes Connecting peers: heartbeats and media go out before a
// peer has necessarily sent anything back).
func (s *State) ConnectedPeerAddrs() []*net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]*net.UDPAddr, 0, len(s.peers))
	for _, p := range s.peers {
		if p.State != PeerDisconnected {
			addrs = append(addrs, p.Addr)
		}
	}
	return addrs
}

// Peers returns a snapshot of the participant map.
func (s *State) Peers() map[uint8]Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint8]Peer, len(s.peers))
	for id, p := range s.peers {
		out[id] = *p
	}
	return out
}

// AllDisconnected reports whether every known peer has transitioned to
// Disconnected (used to surface "all peers disconnected" per S6).
func (s *State) AllDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.peers) == 0 {
		return false
	}
	for _, p := range s.peers {
		if p.State != PeerDisconnected {
			return false
		}
	}
	return true
}

// SetEnded marks the session as ended.
func (s *State) SetEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

// Ended reports whether the session has ended.
func (s *State) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
