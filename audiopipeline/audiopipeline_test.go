package audiopipeline

import (
	"testing"
	"time"

	"github.com/hyperzoom/hyperzoom-go/audiocodec"
	"github.com/hyperzoom/hyperzoom-go/internal/device"
	"github.com/hyperzoom/hyperzoom-go/jitter"
	"github.com/hyperzoom/hyperzoom-go/session"
	"github.com/hyperzoom/hyperzoom-go/transport"
)

// fakeCapturer/fakePlayer let tests drive the pipeline without real audio
// hardware; they just forward/sink whatever channel they're given.
type fakeCapturer struct{}

func (f *fakeCapturer) Start(samples chan<- float32) error { return nil }
func (f *fakeCapturer) Stop()                              {}

type fakePlayer struct{}

func (f *fakePlayer) Start(samples <-chan float32) error {
	go func() {
		for range samples {
		}
	}()
	return nil
}
func (f *fakePlayer) Stop() {}

var (
	_ device.Capturer = (*fakeCapturer)(nil)
	_ device.Player   = (*fakePlayer)(nil)
)

func TestDecodeInboundPushesNormalizedSamplesIntoJitterBuffer(t *testing.T) {
	enc, err := audiocodec.NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()
	dec, err := audiocodec.NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	defer dec.Close()

	var pcm [audiocodec.FrameSamples]int16
	for i := range pcm {
		pcm[i] = 5000
	}
	packet, err := enc.EncodeFrame(pcm)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	jb := jitter.New()
	DecodeInbound(dec, jb, 0, packet)

	if jb.Len() != 1 {
		t.Fatalf("expected one frame queued in the jitter buffer, got %d", jb.Len())
	}
}

func TestNewStartsAndClosesCleanlyWithoutRecording(t *testing.T) {
	tr, err := transport.Bind(0)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer tr.Close()

	state := session.NewGuest("tester")
	jb := jitter.New()

	p, err := New(&fakeCapturer{}, &fakePlayer{}, tr, state, jb, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Let the encode/refill goroutines run at least one tick before closing.
	time.Sleep(10 * time.Millisecond)
	p.Close()
}
