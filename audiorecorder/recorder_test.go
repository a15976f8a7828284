package audiorecorder

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStartWaitProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.mp4")

	samples := make(chan float32, 64)
	rec, err := Start(samples, path)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Feed four AAC frames (~85ms) of a quiet constant signal, then signal
	// end of call.
	for i := 0; i < aacFrameSamplesForTest()*4; i++ {
		samples <- 0.1
	}
	close(samples)
	rec.Wait()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat recording: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected a non-empty recording file")
	}
}

func TestStartWaitFinalizesCleanlyWithNoSamples(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.mp4")

	samples := make(chan float32)
	rec, err := Start(samples, path)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	close(samples)
	rec.Wait()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat recording: %v", err)
	}
	// Init segment (ftyp+moov) is still written even with zero samples.
	if info.Size() == 0 {
		t.Fatal("expected the init segment to be written even with no samples")
	}
}

func aacFrameSamplesForTest() int {
	return 1024
}
