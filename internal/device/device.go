// Package device defines the thin capture/playback/camera collaborator
// interfaces the audio and video pipelines depend on. Device enumeration
// and the platform audio/camera backends themselves are explicitly out of
// scope (see SPEC_FULL.md §1); no cross-platform audio or camera I/O
// library appears anywhere in the reference corpus, so this package only
// specifies the seams the pipelines need, not an implementation.
package device

import "github.com/hyperzoom/hyperzoom-go/videoframe"

// Capturer produces mono float32 PCM samples at 48kHz from the default
// input device. Implementations push samples into the caller-supplied
// ring buffer and must return promptly when Stop is called.
type Capturer interface {
	Start(samples chan<- float32) error
	Stop()
}

// Player consumes mono float32 PCM samples at 48kHz for playback on the
// default output device.
type Player interface {
	Start(samples <-chan float32) error
	Stop()
}

// Camera produces RGB24 frames from the default camera at its native
// resolution and framerate.
type Camera interface {
	Start(frames chan<- videoframe.Frame) error
	Stop()
}
