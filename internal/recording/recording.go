// Package recording creates the on-disk layout for a call's local
// recordings: a timestamped session directory plus a JSON metadata
// sidecar describing the participants and files within it.
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// recordingFilename is the fixed name used for a participant's local
// audio recording inside a session directory.
const recordingFilename = "local_recording.mp4"

// RecordingFilename returns the fixed filename used for a local audio
// recording inside a session directory.
func RecordingFilename() string {
	return recordingFilename
}

// SessionDir creates and returns `~/HyperZoom/recordings/<timestamp>/`,
// where timestamp has the form YYYY-MM-DD_HH-MM-SS in UTC.
func SessionDir(now time.Time) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("recording: resolving home directory: %w", err)
	}
	dir := filepath.Join(home, "HyperZoom", "recordings", now.UTC().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("recording: creating session directory %s: %w", dir, err)
	}
	return dir, nil
}

// ParticipantInfo describes one participant in the session metadata.
type ParticipantInfo struct {
	ParticipantID uint8  `json:"participant_id"`
	Name          string `json:"name"`
}

// RecordingInfo describes one recorded file in the session metadata.
type RecordingInfo struct {
	ParticipantID uint8  `json:"participant_id"`
	Filename      string `json:"filename"`
}

// SessionMetadata is the JSON sidecar written alongside a session's
// recordings.
type SessionMetadata struct {
	SessionID    uint32            `json:"session_id"`
	StartedAt    time.Time         `json:"started_at"`
	Participants []ParticipantInfo `json:"participants"`
	Recordings   []RecordingInfo   `json:"recordings"`
}

// WriteMetadata writes session_metadata.json into dir as pretty-printed
// JSON.
func WriteMetadata(dir string, meta SessionMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("recording: marshaling metadata: %w", err)
	}
	path := filepath.Join(dir, "session_metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("recording: writing %s: %w", path, err)
	}
	return nil
}
