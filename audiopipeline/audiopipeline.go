// Package audiopipeline wires capture, Opus encode/send, jitter-buffered
// receive/playback, and optional local AAC recording into one pipeline.
//
// Input:  device.Capturer -> capture ring -> encode goroutine -> Opus encode -> UDP send
//                                          -> recorder ring -> audiorecorder [when recording]
// Output: jitter.Buffer -> refill goroutine -> playback ring -> device.Player
package audiopipeline

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperzoom/hyperzoom-go/aac"
	"github.com/hyperzoom/hyperzoom-go/audiocodec"
	"github.com/hyperzoom/hyperzoom-go/audiorecorder"
	"github.com/hyperzoom/hyperzoom-go/internal/debug"
	"github.com/hyperzoom/hyperzoom-go/internal/device"
	"github.com/hyperzoom/hyperzoom-go/internal/rtpriority"
	"github.com/hyperzoom/hyperzoom-go/jitter"
	"github.com/hyperzoom/hyperzoom-go/session"
	"github.com/hyperzoom/hyperzoom-go/transport"
	"github.com/hyperzoom/hyperzoom-go/wire"
)

// sampleRate is the pipeline's fixed operating rate.
const sampleRate = 48000

// ringMillis sizes the capture/playback channels to ~200ms of audio,
// matching the original's HeapRb sizing.
const ringMillis = 200

// prefillMillis is how much silence is queued in the playback channel
// before the player starts pulling from it.
const prefillMillis = 10

// refillInterval is how often the refill goroutine drains one jitter frame
// into the playback channel (one Opus frame period).
const refillInterval = 5 * time.Millisecond

// Pipeline owns the capture/playback devices and the encode/refill
// goroutines gluing them to the network and the jitter buffer.
type Pipeline struct {
	capturer device.Capturer
	player   device.Player

	encodeStop chan struct{}
	refillStop chan struct{}
	wg         sync.WaitGroup

	recorder      *audiorecorder.Recorder
	recorderInput chan float32
}

// New starts capture and playback, and spawns the encode and refill
// goroutines. If recordingPath is non-empty, a local AAC recording of
// this endpoint's captured audio also starts.
func New(capturer device.Capturer, player device.Player, t *transport.UDPTransport, state *session.State, jb *jitter.Buffer, recordingPath string) (*Pipeline, error) {
	captureSamples := make(chan float32, sampleRate*ringMillis/1000)
	if err := capturer.Start(captureSamples); err != nil {
		return nil, err
	}

	playbackSamples := make(chan float32, sampleRate*ringMillis/1000)
	prefill := sampleRate * prefillMillis / 1000
	for i := 0; i < prefill; i++ {
		playbackSamples <- 0
	}
	if err := player.Start(playbackSamples); err != nil {
		capturer.Stop()
		return nil, err
	}

	p := &Pipeline{
		capturer:   capturer,
		player:     player,
		encodeStop: make(chan struct{}),
		refillStop: make(chan struct{}),
	}

	if recordingPath != "" {
		p.recorderInput = make(chan float32, sampleRate*ringMillis/1000)
		rec, err := audiorecorder.Start(p.recorderInput, recordingPath)
		if err != nil {
			debug.Warnf("audiopipeline: recording disabled, failed to start: %v", err)
			p.recorderInput = nil
		} else {
			p.recorder = rec
		}
	}

	p.wg.Add(2)
	go p.encodeLoop(captureSamples, t, state)
	go p.refillLoop(jb, playbackSamples)

	debug.Infof("audiopipeline running (recording=%v)", p.recorder != nil)
	return p, nil
}

func (p *Pipeline) encodeLoop(capture <-chan float32, t *transport.UDPTransport, state *session.State) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	enc, err := audiocodec.NewEncoder()
	if err != nil {
		debug.Errorf("audiopipeline: creating opus encoder: %v", err)
		return
	}
	defer enc.Close()

	var rtDone atomic.Bool
	var frameBuf [audiocodec.FrameSamples]float32
	n := 0

	for {
		select {
		case <-p.encodeStop:
			return
		case sample, ok := <-capture:
			if !ok {
				return
			}
			rtpriority.PromoteOnce(&rtDone, "audio-encode")

			if p.recorderInput != nil {
				select {
				case p.recorderInput <- sample:
				default:
				}
			}

			frameBuf[n] = sample
			n++
			if n != audiocodec.FrameSamples {
				continue
			}
			n = 0

			var pcm [audiocodec.FrameSamples]int16
			for i, s := range frameBuf {
				pcm[i] = aac.F32ToI16(s)
			}
			encoded, err := enc.EncodeFrame(pcm)
			if err != nil {
				debug.Warnf("audiopipeline: opus encode: %v", err)
				continue
			}
			sendAudioPacket(t, state, encoded)
		}
	}
}

func sendAudioPacket(t *transport.UDPTransport, state *session.State, encoded []byte) {
	peers := state.ConnectedPeerAddrs()
	if len(peers) == 0 {
		return
	}
	seq := state.NextAudioSeq()
	header := wire.NewHeader(wire.PacketAudio, state.MyParticipantID(), seq, state.ElapsedMs(), uint16(len(encoded)))
	pkt := wire.Packet{Header: header, Payload: encoded}.Encode()

	for _, addr := range peers {
		if err := t.SendTo(pkt, addr); err != nil {
			debug.Warnf("audiopipeline: send to %s failed: %v", addr, err)
		}
	}
}

func (p *Pipeline) refillLoop(jb *jitter.Buffer, out chan<- float32) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var rtDone atomic.Bool
	ticker := time.NewTicker(refillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.refillStop:
			return
		case <-ticker.C:
			rtpriority.PromoteOnce(&rtDone, "audio-refill")
			frame := jb.Pull()
			for _, sample := range frame {
				select {
				case out <- sample:
				default:
					// Playback channel is full; drop rather than block the
					// refill loop indefinitely.
				}
			}
		}
	}
}

// DecodeInbound decodes one inbound Audio event's payload and pushes it
// into the jitter buffer at its wire sequence number.
func DecodeInbound(dec *audiocodec.Decoder, jb *jitter.Buffer, seq uint16, payload []byte) {
	pcm := dec.DecodeFrame(payload)
	var frame jitter.Frame
	for i, s := range pcm {
		frame[i] = float32(s) / 32767.0
	}
	jb.Push(seq, frame)
}

// Close stops the recorder (so it can drain and finalize first), then the
// encode/refill goroutines, then the capture/playback devices.
func (p *Pipeline) Close() {
	if p.recorder != nil {
		close(p.recorderInput)
		p.recorder.Wait()
	}

	close(p.encodeStop)
	close(p.refillStop)
	p.wg.Wait()

	p.capturer.Stop()
	p.player.Stop()
}
