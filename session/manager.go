package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hyperzoom/hyperzoom-go/internal/debug"
	"github.com/hyperzoom/hyperzoom-go/internal/upnp"
	"github.com/hyperzoom/hyperzoom-go/transport"
	"github.com/hyperzoom/hyperzoom-go/wire"
)

// ErrWelcomeTimeout is returned when a guest's Hello goes unanswered.
var ErrWelcomeTimeout = errors.New("session: timed out waiting for Welcome")

// heartbeatInterval is how often Heartbeat control packets are emitted and
// the participant map is scanned for timeouts.
const heartbeatInterval = 1 * time.Second

// welcomeTimeout bounds how long a guest waits for the host's Welcome.
const welcomeTimeout = 5 * time.Second

// byeRetries/byeSpacing describe the best-effort Bye teardown burst.
const byeRetries = 3
const byeSpacing = 50 * time.Millisecond

// Manager owns the transport, session state, and the long-lived goroutines
// (recv dispatcher, heartbeat loop) for one call.
type Manager struct {
	State     *State
	Transport *transport.UDPTransport
	UPnP      *upnp.Mapping

	// AudioEvents/VideoEvents are where the manager forwards inbound media
	// events after touching liveness; media pipelines consume them.
	AudioEvents chan transport.InboundEvent
	VideoEvents chan transport.InboundEvent

	cancel context.CancelFunc
}

// Host binds the transport, attempts a best-effort UPnP mapping, creates
// host session state, and spawns the recv dispatcher and heartbeat loop.
func Host(ctx context.Context, port uint16, name string, sessionID uint32) (*Manager, error) {
	t, err := transport.Bind(port)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}

	mapping, _ := upnp.TryMap(port)

	st := NewHost(name, sessionID)

	mgrCtx, cancel := context.WithCancel(ctx)
	m := &Manager{
		State:       st,
		Transport:   t,
		UPnP:        mapping,
		AudioEvents: make(chan transport.InboundEvent, 256),
		VideoEvents: make(chan transport.InboundEvent, 256),
		cancel:      cancel,
	}

	inbound := t.SpawnRecvLoop(mgrCtx)
	go m.dispatchLoop(mgrCtx, inbound, true)
	go m.heartbeatLoop(mgrCtx)

	debug.Infof("session host started on %s (session_id=%d)", t.LocalAddr(), sessionID)
	return m, nil
}

// Join binds the transport, creates guest session state, sends Hello to
// hostAddr, and waits up to welcomeTimeout for the Welcome reply before
// adopting the session id and assigned participant id.
func Join(ctx context.Context, port uint16, name string, hostAddr *net.UDPAddr) (*Manager, error) {
	t, err := transport.Bind(port)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	st := NewGuest(name)

	mgrCtx, cancel := context.WithCancel(ctx)
	m := &Manager{
		State:       st,
		Transport:   t,
		AudioEvents: make(chan transport.InboundEvent, 256),
		VideoEvents: make(chan transport.InboundEvent, 256),
		cancel:      cancel,
	}

	inbound := t.SpawnRecvLoop(mgrCtx)

	hello := wire.Hello{Name: name}
	pkt := wire.Packet{
		Header:  wire.NewHeader(wire.PacketControl, 0, 0, 0, uint16(len(hello.Encode()))),
		Payload: hello.Encode(),
	}
	if err := t.SendTo(pkt.Encode(), hostAddr); err != nil {
		cancel()
		t.Close()
		return nil, fmt.Errorf("join: sending Hello: %w", err)
	}

	welcomeCh := make(chan wire.Welcome, 1)
	go waitForWelcome(mgrCtx, inbound, welcomeCh, m)

	select {
	case w := <-welcomeCh:
		st.AdoptWelcome(w.SessionID, w.AssignedParticipant, hostAddr)
	case <-time.After(welcomeTimeout):
		cancel()
		t.Close()
		return nil, ErrWelcomeTimeout
	case <-ctx.Done():
		cancel()
		t.Close()
		return nil, ctx.Err()
	}

	go m.dispatchLoop(mgrCtx, inbound, false)
	go m.heartbeatLoop(mgrCtx)

	debug.Infof("joined session %d as participant %d", st.SessionID(), st.MyParticipantID())
	return m, nil
}

// waitForWelcome consumes inbound events until a Control(Welcome) arrives,
// discarding everything else it reads before then (there shouldn't be much
// else this early); dispatchLoop takes over the channel afterwards.
func waitForWelcome(ctx context.Context, inbound <-chan transport.InboundEvent, out chan<- wire.Welcome, m *Manager) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-inbound:
			if !ok {
				return
			}
			if ev.Kind == transport.EventControl {
				if ct, ok := wire.ParseControlType(ev.Payload); ok && ct == wire.ControlWelcome {
					if w, ok := wire.DecodeWelcome(ev.Payload); ok {
						select {
						case out <- w:
						default:
						}
						return
					}
				}
			}
		}
	}
}

// dispatchLoop is the session manager's inbound task: it handles Control
// and Bye events directly and forwards Audio/Video events (after touching
// liveness) to the pipelines' own channels.
func (m *Manager) dispatchLoop(ctx context.Context, inbound <-chan transport.InboundEvent, isHost bool) {
	defer close(m.AudioEvents)
	defer close(m.VideoEvents)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-inbound:
			if !ok {
				return
			}
			switch ev.Kind {
			case transport.EventAudio:
				m.State.TouchPeer(ev.ParticipantID)
				select {
				case m.AudioEvents <- ev:
				case <-ctx.Done():
					return
				}
			case transport.EventVideo:
				m.State.TouchPeer(ev.ParticipantID)
				select {
				case m.VideoEvents <- ev:
				case <-ctx.Done():
					return
				}
			case transport.EventControl:
				if isHost {
					m.handleControlAsHost(ev)
				} else {
					m.handleControlAsGuest(ev)
				}
			case transport.EventBye:
				m.State.MarkDisconnected(ev.ParticipantID)
			}
		}
	}
}

func (m *Manager) handleControlAsHost(ev transport.InboundEvent) {
	ct, ok := wire.ParseControlType(ev.Payload)
	if !ok {
		return
	}
	switch ct {
	case wire.ControlHello:
		hello, ok := wire.DecodeHello(ev.Payload)
		if !ok {
			return
		}
		id := m.State.AssignParticipantID()
		m.State.AddPeer(id, hello.Name, ev.From)
		welcome := wire.Welcome{SessionID: m.State.SessionID(), AssignedParticipant: id}
		m.sendControl(welcome.Encode(), ev.From)
	case wire.ControlHeartbeat:
		m.State.TouchPeerByAddr(ev.From)
	}
}

func (m *Manager) handleControlAsGuest(ev transport.InboundEvent) {
	ct, ok := wire.ParseControlType(ev.Payload)
	if !ok {
		return
	}
	// Guests don't respond to Hello (they never receive one); only track
	// liveness off of Heartbeat, matching the original's asymmetric
	// dispatch (see DESIGN.md / manager.rs do_join()).
	if ct == wire.ControlHeartbeat {
		m.State.TouchPeerByAddr(ev.From)
	}
}

func (m *Manager) sendControl(payload []byte, addr *net.UDPAddr) {
	pkt := wire.Packet{
		Header:  wire.NewHeader(wire.PacketControl, m.State.MyParticipantID(), 0, m.State.ElapsedMs(), uint16(len(payload))),
		Payload: payload,
	}
	if err := m.Transport.SendTo(pkt.Encode(), addr); err != nil {
		debug.Warnf("control send to %s failed: %v", addr, err)
	}
}

// heartbeatLoop runs every heartbeatInterval: it checks for timed-out peers
// then emits a Heartbeat to every non-Disconnected peer.
func (m *Manager) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	hb := wire.Heartbeat{}.Encode()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range m.State.CheckTimeouts() {
				debug.Logf("participant %d timed out", id)
			}
			for _, addr := range m.State.ConnectedPeerAddrs() {
				m.sendControl(hb, addr)
			}
		}
	}
}

// End performs end-of-call teardown: stops the heartbeat/dispatch loops,
// sends a best-effort burst of Bye datagrams to every non-Disconnected
// peer, and releases the UPnP mapping.
func (m *Manager) End() {
	peers := m.State.ConnectedPeerAddrs()

	bye := wire.Packet{
		Header: wire.NewHeader(wire.PacketBye, m.State.MyParticipantID(), 0, m.State.ElapsedMs(), 0),
	}
	payload := bye.Encode()

	m.cancel()
	for i := 0; i < byeRetries; i++ {
		for _, addr := range peers {
			if err := m.Transport.SendTo(payload, addr); err != nil {
				debug.Warnf("bye send to %s failed: %v", addr, err)
			}
		}
		if i < byeRetries-1 {
			time.Sleep(byeSpacing)
		}
	}

	m.Transport.Close()
	m.UPnP.Remove()
	m.State.SetEnded()
}
