// Package aac wraps an AAC-LC encoder for the 48kHz mono recording path.
// It produces raw (ADTS-less) AAC frames plus the AudioSpecificConfig
// bytes the fmp4 muxer embeds in the esds box.
package aac

import (
	"fmt"

	fdkaac "github.com/viert/go-fdkaac/fdkaac"
)

// SampleRate is the only rate this package supports.
const SampleRate = 48000

// Bitrate is the fixed CBR target, matching the recording's AAC-LC profile.
const Bitrate = 192000

// FrameSamples is the number of PCM samples per channel per AAC frame.
const FrameSamples = 1024

// Encoder wraps libfdk-aac configured for mono 48kHz CBR AAC-LC with a
// raw (no ADTS/LATM framing) bitstream, matching the original's
// EncoderParams{transport: Raw, audio_object_type: Mpeg4LowComplexity}.
type Encoder struct {
	enc *fdkaac.AacEncoder
	asc []byte
}

// NewEncoder creates and configures the encoder, capturing the
// AudioSpecificConfig the encoder derives from its parameters.
func NewEncoder() (*Encoder, error) {
	enc := fdkaac.NewAacEncoder()
	if err := enc.InitEncoder(fdkaac.EncoderParams{
		SampleRate:  SampleRate,
		Channels:    1,
		Bitrate:     Bitrate,
		BitrateMode: fdkaac.BitrateModeConstant,
		Transport:   fdkaac.TransportRaw,
		ObjectType:  fdkaac.ObjectTypeAACLC,
	}); err != nil {
		return nil, fmt.Errorf("aac: init encoder: %w", err)
	}

	asc, err := enc.AudioSpecificConfig()
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("aac: reading audio specific config: %w", err)
	}

	return &Encoder{enc: enc, asc: append([]byte(nil), asc...)}, nil
}

// AudioSpecificConfig returns the ASC bytes to embed in the mp4a/esds box.
func (e *Encoder) AudioSpecificConfig() []byte {
	return e.asc
}

// EncodeFrame encodes exactly FrameSamples mono int16 PCM samples. The
// encoder has priming latency: early calls may return an empty slice
// while the codec fills its lookahead window, matching the original's
// behavior of pushing only non-empty encoded output to the muxer.
func (e *Encoder) EncodeFrame(pcm [FrameSamples]int16) ([]byte, error) {
	raw := make([]byte, FrameSamples*2)
	for i, s := range pcm {
		raw[2*i] = byte(s)
		raw[2*i+1] = byte(s >> 8)
	}
	out, err := e.enc.Encode(raw)
	if err != nil {
		return nil, fmt.Errorf("aac: encode: %w", err)
	}
	return out, nil
}

// Close releases the underlying encoder.
func (e *Encoder) Close() {
	if e.enc != nil {
		e.enc.Close()
		e.enc = nil
	}
}

// F32ToI16 converts a clamped float32 PCM sample in [-1.0, 1.0] to int16,
// matching the original's f32_to_i16 helper.
func F32ToI16(sample float32) int16 {
	if sample > 1.0 {
		sample = 1.0
	}
	if sample < -1.0 {
		sample = -1.0
	}
	return int16(sample * 32767.0)
}
