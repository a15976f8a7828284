// Package audiorecorder glues a stream of captured PCM samples to an
// AAC-LC encoder and a fragmented MP4 muxer, producing a crash-safe
// local recording of one participant's audio.
package audiorecorder

import (
	"fmt"
	"os"

	"github.com/hyperzoom/hyperzoom-go/aac"
	"github.com/hyperzoom/hyperzoom-go/fmp4"
	"github.com/hyperzoom/hyperzoom-go/internal/debug"
)

// framesPerFragment bounds each fMP4 fragment to roughly one second of
// audio (47 * 1024 samples @ 48kHz ≈ 1.002s), matching the crash-safety
// window of the original recorder.
const framesPerFragment = 47

// Recorder drains a sample stream into path as an AAC-LC fMP4 file until
// the stream closes, then drains the final partial frame and finalizes
// the file.
type Recorder struct {
	done chan struct{}
}

// Start begins recording. samples must be closed by the producer to
// signal end-of-call; Start returns once the goroutine is running, not
// once recording finishes — call Wait to block for that.
func Start(samples <-chan float32, path string) (*Recorder, error) {
	enc, err := aac.NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("audiorecorder: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("audiorecorder: creating %s: %w", path, err)
	}

	muxer, err := fmp4.New(f, enc.AudioSpecificConfig())
	if err != nil {
		enc.Close()
		f.Close()
		return nil, fmt.Errorf("audiorecorder: %w", err)
	}

	r := &Recorder{done: make(chan struct{})}
	go r.loop(samples, enc, muxer, f)
	return r, nil
}

// Wait blocks until the recording goroutine has finalized the file.
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) loop(samples <-chan float32, enc *aac.Encoder, muxer *fmp4.Writer, f *os.File) {
	defer close(r.done)
	defer f.Close()
	defer enc.Close()

	var frameBuf [aac.FrameSamples]int16
	n := 0
	framesInFragment := 0

	encodeAndPush := func() {
		out, err := enc.EncodeFrame(frameBuf)
		if err != nil {
			debug.Warnf("audiorecorder: encode: %v", err)
			n = 0
			return
		}
		if len(out) > 0 {
			muxer.PushFrame(out)
			framesInFragment++
			if framesInFragment >= framesPerFragment {
				if err := muxer.FlushFragment(); err != nil {
					debug.Warnf("audiorecorder: flush fragment: %v", err)
				}
				framesInFragment = 0
			}
		}
		n = 0
	}

	for sample := range samples {
		frameBuf[n] = aac.F32ToI16(sample)
		n++
		if n == aac.FrameSamples {
			encodeAndPush()
		}
	}

	if n > 0 {
		for i := n; i < aac.FrameSamples; i++ {
			frameBuf[i] = 0
		}
		encodeAndPush()
	}

	if err := muxer.Finalize(); err != nil {
		debug.Warnf("audiorecorder: finalize: %v", err)
	}
}
