package videopipeline

import (
	"testing"
	"time"

	"github.com/hyperzoom/hyperzoom-go/internal/device"
	"github.com/hyperzoom/hyperzoom-go/session"
	"github.com/hyperzoom/hyperzoom-go/transport"
	"github.com/hyperzoom/hyperzoom-go/videoframe"
)

// fakeCamera lets tests push frames on demand instead of reading real
// camera hardware.
type fakeCamera struct {
	frames chan<- videoframe.Frame
}

func (f *fakeCamera) Start(frames chan<- videoframe.Frame) error {
	f.frames = frames
	return nil
}
func (f *fakeCamera) Stop() {}

var _ device.Camera = (*fakeCamera)(nil)

func solidFrame(w, h uint32, r, g, b byte) videoframe.Frame {
	data := make([]byte, int(w)*int(h)*3)
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = r, g, b
	}
	return videoframe.Frame{Data: data, Width: w, Height: h}
}

func TestNewStartsAndClosesCleanlyWithCameraDisabled(t *testing.T) {
	tr, err := transport.Bind(0)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer tr.Close()

	state := session.NewGuest("tester")
	inbound := make(chan transport.InboundEvent)

	p, err := New(&fakeCamera{}, false, tr, state, inbound)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.IsCameraEnabled() {
		t.Fatal("expected camera disabled at start")
	}

	time.Sleep(10 * time.Millisecond)
	p.Close()
}

func TestEncodeLoopProducesLocalPreviewFrame(t *testing.T) {
	tr, err := transport.Bind(0)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer tr.Close()

	state := session.NewGuest("tester")
	inbound := make(chan transport.InboundEvent)
	cam := &fakeCamera{}

	p, err := New(cam, true, tr, state, inbound)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	raw := solidFrame(32, 18, 200, 50, 50)
	select {
	case cam.frames <- raw:
	case <-time.After(time.Second):
		t.Fatal("encode loop never consumed a captured frame")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := p.LocalFrame(); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected a local preview frame to be stored after encoding")
}

func TestSetCameraEnabledTogglesState(t *testing.T) {
	tr, err := transport.Bind(0)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer tr.Close()

	state := session.NewGuest("tester")
	inbound := make(chan transport.InboundEvent)

	p, err := New(&fakeCamera{}, false, tr, state, inbound)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	p.SetCameraEnabled(true)
	if !p.IsCameraEnabled() {
		t.Fatal("expected camera enabled after SetCameraEnabled(true)")
	}
}

func TestRemoteFrameAbsentForUnknownPeer(t *testing.T) {
	tr, err := transport.Bind(0)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer tr.Close()

	state := session.NewGuest("tester")
	inbound := make(chan transport.InboundEvent)

	p, err := New(&fakeCamera{}, false, tr, state, inbound)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if _, ok := p.RemoteFrame(7); ok {
		t.Fatal("expected no remote frame for a peer that never sent video")
	}
}
