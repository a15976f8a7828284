package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/hyperzoom/hyperzoom-go/audiocodec"
	"github.com/hyperzoom/hyperzoom-go/audiopipeline"
	"github.com/hyperzoom/hyperzoom-go/internal"
	"github.com/hyperzoom/hyperzoom-go/internal/debug"
	"github.com/hyperzoom/hyperzoom-go/internal/recording"
	"github.com/hyperzoom/hyperzoom-go/jitter"
	"github.com/hyperzoom/hyperzoom-go/session"
	"github.com/hyperzoom/hyperzoom-go/transport"
	"github.com/hyperzoom/hyperzoom-go/videoframe"
	"github.com/hyperzoom/hyperzoom-go/videopipeline"
)

func main() {
	internal.SetupUsage()
	pflag.Parse()

	debug.Verbose = internal.DebugMode

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := internal.ValidateMode(); err != nil {
		return err
	}

	name := internal.Name
	if name == "" {
		name = fmt.Sprintf("participant-%d", os.Getpid())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mgr *session.Manager
	var err error
	if internal.Host {
		mgr, err = session.Host(ctx, internal.Port, name, internal.SessionID)
	} else {
		hostAddr, resolveErr := net.ResolveUDPAddr("udp4", internal.JoinAddr)
		if resolveErr != nil {
			return fmt.Errorf("resolving --join address: %w", resolveErr)
		}
		mgr, err = session.Join(ctx, internal.Port, name, hostAddr)
	}
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	var recordingPath string
	if internal.Record {
		dir, err := recording.SessionDir(time.Now())
		if err != nil {
			debug.Warnf("recording disabled, could not create session directory: %v", err)
		} else {
			recordingPath = filepath.Join(dir, recording.RecordingFilename())
		}
	}

	// No portaudio/malgo backend is wired in (see DESIGN.md); these
	// placeholders stand in for a real microphone/speaker/camera so the
	// pipelines still have somewhere to run their encode/decode loops.
	jb := jitter.New()
	audio, err := audiopipeline.New(&silentCapturer{}, &discardPlayer{}, mgr.Transport, mgr.State, jb, recordingPath)
	if err != nil {
		mgr.End()
		return fmt.Errorf("starting audio pipeline: %w", err)
	}

	video, err := videopipeline.New(&noCamera{}, internal.Camera, mgr.Transport, mgr.State, mgr.VideoEvents)
	if err != nil {
		audio.Close()
		mgr.End()
		return fmt.Errorf("starting video pipeline: %w", err)
	}

	go forwardAudioEvents(mgr, jb)

	role := "host"
	if mgr.State.Role() == session.RoleGuest {
		role = "guest"
	}
	fmt.Fprintf(os.Stderr, "HyperZoom running as %s (%s) on %s, participant id %d\n", role, name, mgr.Transport.LocalAddr(), mgr.State.MyParticipantID())
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintln(os.Stderr, "Shutting down...")
	video.Close()
	audio.Close()
	mgr.End()
	return nil
}

// forwardAudioEvents decodes inbound Opus packets and pushes them into the
// jitter buffer that the audio pipeline's refill loop drains.
func forwardAudioEvents(mgr *session.Manager, jb *jitter.Buffer) {
	dec, err := audiocodec.NewDecoder()
	if err != nil {
		debug.Errorf("main: creating opus decoder: %v", err)
		return
	}
	defer dec.Close()

	for ev := range mgr.AudioEvents {
		audiopipeline.DecodeInbound(dec, jb, ev.Sequence, ev.Payload)
	}
}

type silentCapturer struct{ stop chan struct{} }

func (c *silentCapturer) Start(samples chan<- float32) error {
	c.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				for i := 0; i < audiocodec.FrameSamples; i++ {
					select {
					case samples <- 0:
					default:
					}
				}
			}
		}
	}()
	return nil
}

func (c *silentCapturer) Stop() {
	if c.stop != nil {
		close(c.stop)
	}
}

type discardPlayer struct{ stop chan struct{} }

func (p *discardPlayer) Start(samples <-chan float32) error {
	p.stop = make(chan struct{})
	go func() {
		for {
			select {
			case <-p.stop:
				return
			case _, ok := <-samples:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (p *discardPlayer) Stop() {
	if p.stop != nil {
		close(p.stop)
	}
}

type noCamera struct{}

func (noCamera) Start(frames chan<- videoframe.Frame) error { return nil }
func (noCamera) Stop()                                      {}
