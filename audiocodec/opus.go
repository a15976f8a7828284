// Package audiocodec wraps Opus encode/decode for the 5ms mono voice
// frames carried in Audio packets.
package audiocodec

import (
	"fmt"

	opus "github.com/qrtc/opus-go"
)

// SampleRate is the only rate this package supports.
const SampleRate = 48000

// FrameSamples is the number of samples per channel per frame (5ms @ 48kHz).
const FrameSamples = 240

// MaxEncodedSize bounds the size of one encoded Opus frame.
const MaxEncodedSize = 256

// bitrate is the fixed target bitrate for the voice-optimized CBR profile.
const bitrate = 32000

// Encoder wraps an Opus encoder configured for low-delay mono voice: CBR,
// inband FEC, 5ms frames. Mirrors the original's create_encoder(), which
// explicitly avoids the generic "audio" application in favor of low-delay
// voice mode.
type Encoder struct {
	enc *opus.OpusEncoder
}

// NewEncoder creates a 48kHz mono low-delay Opus encoder at 32kbps CBR with
// inband FEC enabled.
func NewEncoder() (*Encoder, error) {
	enc, err := opus.CreateOpusEncoder(&opus.OpusEncoderConfig{
		SampleRate:  SampleRate,
		MaxChannels: 1,
		Application: opus.AppVoip,
		Bitrate:     bitrate,
		VBR:         false,
		FEC:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("audiocodec: creating opus encoder: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// EncodeFrame encodes exactly FrameSamples mono int16 samples into an Opus
// packet. Each call returns a newly allocated slice.
func (e *Encoder) EncodeFrame(pcm [FrameSamples]int16) ([]byte, error) {
	raw := make([]byte, FrameSamples*2)
	for i, s := range pcm {
		raw[2*i] = byte(s)
		raw[2*i+1] = byte(s >> 8)
	}
	out := make([]byte, MaxEncodedSize)
	n, err := e.enc.Encode(raw, out)
	if err != nil {
		return nil, fmt.Errorf("audiocodec: encode: %w", err)
	}
	return out[:n], nil
}

// Close releases the underlying encoder.
func (e *Encoder) Close() {
	if e.enc != nil {
		e.enc.Close()
		e.enc = nil
	}
}

// Decoder wraps an Opus decoder configured for 48kHz mono, with
// packet-loss concealment on a missing packet.
type Decoder struct {
	dec *opus.OpusDecoder
}

// NewDecoder creates a 48kHz mono Opus decoder.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.CreateOpusDecoder(&opus.OpusDecoderConfig{
		SampleRate:  SampleRate,
		MaxChannels: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("audiocodec: creating opus decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// DecodeFrame decodes one Opus packet into FrameSamples mono int16
// samples. Passing a nil/empty packet triggers packet-loss concealment
// for a missing frame, matching the original's behavior on a lost
// packet. Any underlying decode error falls back to silence rather than
// propagating, since a single lost/garbled frame should never abort
// playback.
func (d *Decoder) DecodeFrame(packet []byte) [FrameSamples]int16 {
	var out [FrameSamples]int16
	raw := make([]byte, FrameSamples*2)

	var n int
	var err error
	if len(packet) == 0 {
		n, err = d.dec.Decode(nil, raw)
	} else {
		n, err = d.dec.Decode(packet, raw)
	}
	if err != nil || n <= 0 {
		return out
	}

	for i := 0; i < FrameSamples && 2*i+1 < len(raw); i++ {
		out[i] = int16(raw[2*i]) | int16(raw[2*i+1])<<8
	}
	return out
}

// Close releases the underlying decoder.
func (d *Decoder) Close() {
	if d.dec != nil {
		d.dec.Close()
		d.dec = nil
	}
}
