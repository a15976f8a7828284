package aac

import "testing"

func TestNewEncoderProducesNonEmptyAudioSpecificConfig(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	if len(enc.AudioSpecificConfig()) == 0 {
		t.Fatal("expected a non-empty AudioSpecificConfig")
	}
}

func TestEncodeFrameEventuallyProducesOutput(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	var pcm [FrameSamples]int16
	for i := range pcm {
		pcm[i] = int16(2000)
	}

	var total int
	for i := 0; i < 8; i++ {
		out, err := enc.EncodeFrame(pcm)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		total += len(out)
	}
	if total == 0 {
		t.Fatal("expected some encoded output within 8 frames (priming delay bound)")
	}
}

func TestF32ToI16Clamps(t *testing.T) {
	if got := F32ToI16(2.0); got != 32767 {
		t.Fatalf("expected clamp to 32767, got %d", got)
	}
	if got := F32ToI16(-2.0); got != -32767 {
		t.Fatalf("expected clamp to -32767, got %d", got)
	}
	if got := F32ToI16(0); got != 0 {
		t.Fatalf("expected 0 for silence, got %d", got)
	}
}
