// Package videofragment splits encoded VP8 frames into UDP-sized
// fragments and reassembles them on the receive side.
package videofragment

import (
	"sync"
	"time"
)

// MaxFragmentSize is the maximum payload per UDP fragment.
const MaxFragmentSize = 1200

// Fragment is one piece of a split encoded frame.
type Fragment struct {
	ID    uint8
	Total uint8
	Data  []byte
}

// FragmentPayload splits an encoded video frame into MTU-sized fragments.
// A frame at or under MaxFragmentSize becomes a single fragment with
// (id=0, total=1). fragment_total is capped at 255.
func FragmentPayload(encoded []byte) []Fragment {
	if len(encoded) <= MaxFragmentSize {
		return []Fragment{{ID: 0, Total: 1, Data: append([]byte(nil), encoded...)}}
	}

	total := (len(encoded) + MaxFragmentSize - 1) / MaxFragmentSize
	if total > 255 {
		total = 255
	}

	fragments := make([]Fragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxFragmentSize
		end := start + MaxFragmentSize
		if end > len(encoded) {
			end = len(encoded)
		}
		fragments = append(fragments, Fragment{
			ID:    uint8(i),
			Total: uint8(total),
			Data:  append([]byte(nil), encoded[start:end]...),
		})
	}
	return fragments
}

type pendingKey struct {
	participantID uint8
	timestampMs   uint32
}

type pendingFrame struct {
	fragments  map[uint8][]byte
	total      uint8
	isKeyframe bool
	created    time.Time
}

// Reassembled is a fully reassembled frame ready for decoding.
type Reassembled struct {
	ParticipantID uint8
	TimestampMs   uint32
	Data          []byte
	IsKeyframe    bool
}

// Assembler reassembles fragmented video frames from multiple peers,
// keyed by (participant_id, timestamp_ms).
type Assembler struct {
	mu      sync.Mutex
	pending map[pendingKey]*pendingFrame
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{pending: make(map[pendingKey]*pendingFrame)}
}

// Push adds one fragment. It returns the reassembled frame once every
// fragment for its key has arrived. fragment_total == 0 is rejected.
// Duplicate fragment ids overwrite prior bytes; out-of-order arrival is
// tolerated. A mismatched fragment_total across fragments of the same key
// is not validated — the first total seen for a key wins (left as-is, per
// SPEC_FULL.md §9 Open Question decision).
func (a *Assembler) Push(participantID uint8, timestampMs uint32, fragmentID, fragmentTotal uint8, data []byte, isKeyframe bool) (Reassembled, bool) {
	if fragmentTotal == 0 {
		return Reassembled{}, false
	}

	if fragmentTotal == 1 {
		return Reassembled{
			ParticipantID: participantID,
			TimestampMs:   timestampMs,
			Data:          append([]byte(nil), data...),
			IsKeyframe:    isKeyframe,
		}, true
	}

	key := pendingKey{participantID, timestampMs}

	a.mu.Lock()
	defer a.mu.Unlock()

	pf, ok := a.pending[key]
	if !ok {
		pf = &pendingFrame{
			fragments:  make(map[uint8][]byte),
			total:      fragmentTotal,
			isKeyframe: isKeyframe,
			created:    time.Now(),
		}
		a.pending[key] = pf
	}
	pf.fragments[fragmentID] = append([]byte(nil), data...)

	if len(pf.fragments) != int(pf.total) {
		return Reassembled{}, false
	}

	delete(a.pending, key)
	full := make([]byte, 0)
	for i := 0; i < int(pf.total); i++ {
		if frag, ok := pf.fragments[uint8(i)]; ok {
			full = append(full, frag...)
		}
	}
	return Reassembled{
		ParticipantID: participantID,
		TimestampMs:   timestampMs,
		Data:          full,
		IsKeyframe:    pf.isKeyframe,
	}, true
}

// ExpireStale drops incomplete frames older than maxAge.
func (a *Assembler) ExpireStale(maxAge time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	for key, pf := range a.pending {
		if now.Sub(pf.created) >= maxAge {
			delete(a.pending, key)
		}
	}
}
