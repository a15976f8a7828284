// Package transport binds the UDP socket shared by all senders and runs
// the single receive loop that dispatches typed inbound events.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hyperzoom/hyperzoom-go/internal/debug"
	"github.com/hyperzoom/hyperzoom-go/wire"
)

// maxDatagramSize is MTU-sized, matching the recv loop's read buffer.
const maxDatagramSize = 1500

// inboundQueueSize is generous enough that a burst of audio/video/control
// traffic never blocks the recv loop behind a slow consumer.
const inboundQueueSize = 1024

// InboundEventKind tags which fields of InboundEvent are meaningful. Go has
// no sum types, so this tagged-struct pattern is the direct translation of
// the Rust `InboundEvent` enum (see SPEC_FULL.md §5, "polymorphism over
// inbound events").
type InboundEventKind uint8

const (
	EventAudio InboundEventKind = iota
	EventVideo
	EventControl
	EventBye
)

// InboundEvent is dispatched from the recv loop to the session manager's
// inbound consumer.
type InboundEvent struct {
	Kind InboundEventKind

	ParticipantID uint8
	Sequence      uint16
	TimestampMs   uint32
	Payload       []byte

	// Video-only fields.
	IsKeyframe    bool
	FragmentID    uint8
	FragmentTotal uint8

	// Control-only field: the UDP source address the datagram arrived from.
	From *net.UDPAddr
}

// UDPTransport wraps a bound UDP socket for send/recv.
type UDPTransport struct {
	conn *net.UDPConn
}

// Bind opens a UDP socket on 0.0.0.0:port.
func Bind(port uint16) (*UDPTransport, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: int(port)}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("bind UDP socket on %s: %w", addr, err)
	}
	debug.Logf("UDP socket bound on %s", conn.LocalAddr())
	return &UDPTransport{conn: conn}, nil
}

// LocalAddr returns the bound local address.
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// SendTo is a fire-and-forget send: errors are returned to the caller but
// are never fatal to the pipeline.
func (t *UDPTransport) SendTo(buf []byte, target *net.UDPAddr) error {
	if _, err := t.conn.WriteToUDP(buf, target); err != nil {
		return fmt.Errorf("UDP send_to %s: %w", target, err)
	}
	return nil
}

// Close releases the underlying socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

// SpawnRecvLoop starts the receive loop goroutine. It reads datagrams,
// validates and parses the header, maps the packet type to an
// InboundEvent, and sends it on the returned channel. The loop never
// parses beyond the header; payload interpretation is the consumer's job.
// The loop exits when ctx is cancelled or the socket is closed.
func (t *UDPTransport) SpawnRecvLoop(ctx context.Context) <-chan InboundEvent {
	events := make(chan InboundEvent, inboundQueueSize)

	go func() {
		defer close(events)
		buf := make([]byte, maxDatagramSize)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			n, from, err := t.conn.ReadFromUDP(buf)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				debug.Warnf("UDP recv error: %v", err)
				continue
			}

			if n < wire.HeaderSize {
				debug.Logf("ignoring undersized packet (%d bytes) from %s", n, from)
				continue
			}

			pkt, ok := wire.DecodePacket(buf[:n])
			if !ok {
				debug.Logf("failed to parse packet from %s", from)
				continue
			}

			event, ok := toInboundEvent(pkt, from)
			if !ok {
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events
}

func toInboundEvent(pkt wire.Packet, from *net.UDPAddr) (InboundEvent, bool) {
	h := pkt.Header
	switch h.Type {
	case wire.PacketAudio:
		return InboundEvent{
			Kind:          EventAudio,
			ParticipantID: h.ParticipantID,
			Sequence:      h.Sequence,
			TimestampMs:   h.TimestampMs,
			Payload:       pkt.Payload,
		}, true
	case wire.PacketVideoKeyframe, wire.PacketVideoDelta:
		return InboundEvent{
			Kind:          EventVideo,
			ParticipantID: h.ParticipantID,
			Sequence:      h.Sequence,
			TimestampMs:   h.TimestampMs,
			IsKeyframe:    h.Type == wire.PacketVideoKeyframe,
			FragmentID:    h.FragmentID,
			FragmentTotal: h.FragmentTotal,
			Payload:       pkt.Payload,
		}, true
	case wire.PacketControl:
		return InboundEvent{
			Kind:          EventControl,
			ParticipantID: h.ParticipantID,
			Payload:       pkt.Payload,
			From:          from,
		}, true
	case wire.PacketBye:
		return InboundEvent{Kind: EventBye, ParticipantID: h.ParticipantID}, true
	default:
		return InboundEvent{}, false
	}
}
