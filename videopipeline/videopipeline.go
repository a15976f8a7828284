// Package videopipeline wires camera capture, downscale/I420/VP8 encode
// and send, and inbound fragment reassembly/VP8 decode/I420-to-RGB for
// per-peer display frames.
package videopipeline

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperzoom/hyperzoom-go/internal/debug"
	"github.com/hyperzoom/hyperzoom-go/internal/device"
	"github.com/hyperzoom/hyperzoom-go/internal/rtpriority"
	"github.com/hyperzoom/hyperzoom-go/session"
	"github.com/hyperzoom/hyperzoom-go/transport"
	"github.com/hyperzoom/hyperzoom-go/videoframe"
	"github.com/hyperzoom/hyperzoom-go/videofragment"
	"github.com/hyperzoom/hyperzoom-go/vp8codec"
	"github.com/hyperzoom/hyperzoom-go/wire"
)

// encodeWidth/encodeHeight is the fixed 480p encode resolution every
// camera frame is downscaled to before VP8 encoding.
const encodeWidth = 854
const encodeHeight = 480

// captureQueueDepth is the capture-to-encode handoff depth. The pipeline
// itself drops nothing; whether a full channel drops or blocks a frame is
// decided by the camera's send.
const captureQueueDepth = 4

// idleEncodePoll is how often the encode goroutine checks whether the
// camera has been (re-)enabled while it has nothing to encode.
const idleEncodePoll = 33 * time.Millisecond

// fragmentExpiry/expireInterval bound how long a partially reassembled
// frame is held before it's dropped as stale.
const fragmentExpiry = 200 * time.Millisecond
const expireInterval = 500 * time.Millisecond

// Pipeline owns the camera and the encode/decode goroutines gluing it to
// the network and the per-peer remote frame store.
type Pipeline struct {
	camera device.Camera

	cameraEnabled atomic.Bool

	localFrame atomic.Pointer[videoframe.Frame]

	remoteMu     sync.Mutex
	remoteFrames map[uint8]videoframe.Frame

	encodeStop chan struct{}
	decodeStop chan struct{}
	wg         sync.WaitGroup
}

// New starts camera capture and spawns the encode and decode goroutines;
// cameraEnabled only sets the initial toggle that gates encoding. inbound delivers InboundEvent values of kind
// EventVideo from the transport's receive loop.
func New(camera device.Camera, cameraEnabled bool, t *transport.UDPTransport, state *session.State, inbound <-chan transport.InboundEvent) (*Pipeline, error) {
	p := &Pipeline{
		camera:       camera,
		remoteFrames: make(map[uint8]videoframe.Frame),
		encodeStop:   make(chan struct{}),
		decodeStop:   make(chan struct{}),
	}
	p.cameraEnabled.Store(cameraEnabled)

	captureFrames := make(chan videoframe.Frame, captureQueueDepth)
	if err := camera.Start(captureFrames); err != nil {
		debug.Warnf("videopipeline: camera capture failed to start: %v", err)
	}

	p.wg.Add(2)
	go p.encodeLoop(captureFrames, t, state)
	go p.decodeLoop(inbound)

	debug.Infof("videopipeline running (camera=%v)", cameraEnabled)
	return p, nil
}

// SetCameraEnabled toggles whether captured frames are encoded and sent.
func (p *Pipeline) SetCameraEnabled(enabled bool) {
	p.cameraEnabled.Store(enabled)
}

// IsCameraEnabled reports the current camera toggle state.
func (p *Pipeline) IsCameraEnabled() bool {
	return p.cameraEnabled.Load()
}

// LocalFrame returns the most recent downscaled local camera frame for
// preview, or false if none has been captured yet.
func (p *Pipeline) LocalFrame() (videoframe.Frame, bool) {
	f := p.localFrame.Load()
	if f == nil {
		return videoframe.Frame{}, false
	}
	return *f, true
}

// RemoteFrame returns the most recently decoded frame for a peer, or
// false if nothing has been decoded from them yet.
func (p *Pipeline) RemoteFrame(participantID uint8) (videoframe.Frame, bool) {
	p.remoteMu.Lock()
	defer p.remoteMu.Unlock()
	f, ok := p.remoteFrames[participantID]
	return f, ok
}

func (p *Pipeline) encodeLoop(capture <-chan videoframe.Frame, t *transport.UDPTransport, state *session.State) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	enc, err := vp8codec.NewEncoder(encodeWidth, encodeHeight)
	if err != nil {
		debug.Errorf("videopipeline: creating VP8 encoder: %v", err)
		return
	}
	defer enc.Close()

	var rtDone atomic.Bool
	var videoSeq uint16

	idleTicker := time.NewTicker(idleEncodePoll)
	defer idleTicker.Stop()

	for {
		if !p.cameraEnabled.Load() {
			select {
			case <-p.encodeStop:
				return
			case <-idleTicker.C:
			}
			continue
		}

		select {
		case <-p.encodeStop:
			return
		case raw, ok := <-capture:
			if !ok {
				return
			}
			rtpriority.PromoteOnce(&rtDone, "video-encode")

			scaled := videoframe.Downscale(raw, encodeWidth, encodeHeight)
			i420 := videoframe.RGBToI420(scaled.Data, scaled.Width, scaled.Height)
			p.localFrame.Store(&scaled)

			frames, err := enc.Encode(i420)
			if err != nil {
				debug.Warnf("videopipeline: VP8 encode error: %v", err)
				continue
			}
			for _, f := range frames {
				sendVideoFrame(t, state, f, &videoSeq)
			}
		case <-idleTicker.C:
		}
	}
}

func sendVideoFrame(t *transport.UDPTransport, state *session.State, frame vp8codec.EncodedFrame, videoSeq *uint16) {
	peers := state.ConnectedPeerAddrs()
	if len(peers) == 0 {
		return
	}

	packetType := wire.PacketVideoDelta
	if frame.IsKeyframe {
		packetType = wire.PacketVideoKeyframe
	}

	myID := state.MyParticipantID()
	ts := state.ElapsedMs()

	for _, frag := range videofragment.FragmentPayload(frame.Data) {
		seq := *videoSeq
		*videoSeq++

		header := wire.NewHeader(packetType, myID, seq, ts, uint16(len(frag.Data)))
		header.FragmentID = frag.ID
		header.FragmentTotal = frag.Total
		pkt := wire.Packet{Header: header, Payload: frag.Data}.Encode()

		for _, addr := range peers {
			if err := t.SendTo(pkt, addr); err != nil {
				debug.Warnf("videopipeline: send to %s failed: %v", addr, err)
			}
		}
	}
}

func (p *Pipeline) decodeLoop(inbound <-chan transport.InboundEvent) {
	defer p.wg.Done()

	assembler := videofragment.NewAssembler()
	decoders := make(map[uint8]*vp8codec.Decoder)
	defer func() {
		for _, d := range decoders {
			d.Close()
		}
	}()

	ticker := time.NewTicker(expireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.decodeStop:
			return
		case <-ticker.C:
			assembler.ExpireStale(fragmentExpiry)
		case ev, ok := <-inbound:
			if !ok {
				return
			}
			if ev.Kind != transport.EventVideo {
				continue
			}

			isKeyframe := ev.IsKeyframe
			reassembled, ready := assembler.Push(ev.ParticipantID, ev.TimestampMs, ev.FragmentID, ev.FragmentTotal, ev.Payload, isKeyframe)
			if !ready {
				continue
			}

			dec, ok := decoders[reassembled.ParticipantID]
			if !ok {
				var err error
				dec, err = vp8codec.NewDecoder()
				if err != nil {
					debug.Errorf("videopipeline: creating VP8 decoder for peer %d: %v", reassembled.ParticipantID, err)
					continue
				}
				decoders[reassembled.ParticipantID] = dec
			}

			decoded, ok, err := dec.Decode(reassembled.Data)
			if err != nil {
				debug.Warnf("videopipeline: VP8 decode error for peer %d: %v", reassembled.ParticipantID, err)
				continue
			}
			if !ok {
				continue
			}

			rgb := videoframe.I420ToRGB(decoded.Data, decoded.Width, decoded.Height)
			frame := videoframe.Frame{Data: rgb, Width: decoded.Width, Height: decoded.Height}

			p.remoteMu.Lock()
			p.remoteFrames[reassembled.ParticipantID] = frame
			p.remoteMu.Unlock()
		}
	}
}

// Close stops the decode goroutine, then the encode goroutine and camera,
// mirroring the original's drop order (decode task first, encode thread
// and capture device last).
func (p *Pipeline) Close() {
	close(p.decodeStop)
	close(p.encodeStop)
	p.wg.Wait()
	p.camera.Stop()
}
