package fmp4

import (
	"encoding/binary"
	"fmt"
	"io"
	"testing"
)

// memSeeker is a minimal io.WriteSeeker over an in-memory buffer, standing
// in for the *os.File the recorder writes to in production.
type memSeeker struct {
	buf []byte
	pos int64
}

func (m *memSeeker) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = m.pos + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("bad whence %d", whence)
	}
	m.pos = newPos
	return newPos, nil
}

func readBoxTypesAtTopLevel(t *testing.T, data []byte) []string {
	t.Helper()
	var types []string
	off := 0
	for off+8 <= len(data) {
		size := binary.BigEndian.Uint32(data[off : off+4])
		boxType := string(data[off+4 : off+8])
		types = append(types, boxType)
		if size == 0 {
			break
		}
		off += int(size)
	}
	return types
}

func TestNewWritesFtypThenMoov(t *testing.T) {
	m := &memSeeker{}
	asc := []byte{0x12, 0x10}
	if _, err := New(m, asc); err != nil {
		t.Fatalf("New: %v", err)
	}

	types := readBoxTypesAtTopLevel(t, m.buf)
	if len(types) != 2 || types[0] != "ftyp" || types[1] != "moov" {
		t.Fatalf("expected [ftyp moov], got %v", types)
	}
}

func TestFtypBoxIsTwentyEightBytes(t *testing.T) {
	m := &memSeeker{}
	if _, err := New(m, []byte{0x12, 0x10}); err != nil {
		t.Fatalf("New: %v", err)
	}

	if len(m.buf) < 8 {
		t.Fatalf("output too short to contain a box header: %d bytes", len(m.buf))
	}
	size := binary.BigEndian.Uint32(m.buf[0:4])
	boxType := string(m.buf[4:8])
	if boxType != "ftyp" {
		t.Fatalf("expected first box to be ftyp, got %q", boxType)
	}
	// 8B header + 4B major_brand + 4B minor_version + 3x4B compatible
	// brands (isom/iso5/mp41) = 28B; three compatible brands can never
	// fit in 24B.
	const wantSize = 28
	if size != wantSize {
		t.Fatalf("expected ftyp box size %d, got %d", wantSize, size)
	}

	majorBrand := string(m.buf[8:12])
	if majorBrand != "isom" {
		t.Fatalf("expected major_brand isom, got %q", majorBrand)
	}
	compatibleBrands := []string{
		string(m.buf[16:20]),
		string(m.buf[20:24]),
		string(m.buf[24:28]),
	}
	want := []string{"isom", "iso5", "mp41"}
	for i, b := range compatibleBrands {
		if b != want[i] {
			t.Fatalf("compatible brand %d: expected %q, got %q", i, want[i], b)
		}
	}
}

func TestFlushFragmentWritesMoofMdatAndAdvancesDecodeTime(t *testing.T) {
	m := &memSeeker{}
	w, err := New(m, []byte{0x12, 0x10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w.PushFrame([]byte{0xAA, 0xBB, 0xCC})
	w.PushFrame([]byte{0xDD, 0xEE})
	if w.PendingCount() != 2 {
		t.Fatalf("expected 2 pending frames, got %d", w.PendingCount())
	}

	before := len(m.buf)
	if err := w.FlushFragment(); err != nil {
		t.Fatalf("FlushFragment: %v", err)
	}
	if w.PendingCount() != 0 {
		t.Fatal("expected pending frames to clear after flush")
	}
	if len(m.buf) <= before {
		t.Fatal("expected file to grow after flushing a fragment")
	}
	if w.baseDecodeMs != 2*FrameDuration {
		t.Fatalf("expected base decode time to advance by 2 frames, got %d", w.baseDecodeMs)
	}

	types := readBoxTypesAtTopLevel(t, m.buf)
	if len(types) < 4 || types[2] != "moof" || types[3] != "mdat" {
		t.Fatalf("expected [ftyp moov moof mdat ...], got %v", types)
	}
}

func TestFlushFragmentNoopWhenEmpty(t *testing.T) {
	m := &memSeeker{}
	w, _ := New(m, []byte{0x12, 0x10})
	before := len(m.buf)
	if err := w.FlushFragment(); err != nil {
		t.Fatalf("FlushFragment: %v", err)
	}
	if len(m.buf) != before {
		t.Fatal("expected no bytes written on an empty flush")
	}
}

func TestFinalizeAppendsStandardMoov(t *testing.T) {
	m := &memSeeker{}
	w, _ := New(m, []byte{0x12, 0x10})
	w.PushFrame([]byte{0x01, 0x02})
	w.PushFrame([]byte{0x03, 0x04, 0x05})

	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	types := readBoxTypesAtTopLevel(t, m.buf)
	if len(types) < 5 {
		t.Fatalf("expected at least 5 top-level boxes, got %v", types)
	}
	if types[len(types)-1] != "moov" {
		t.Fatalf("expected final box to be moov, got %v", types)
	}
}

func TestFinalizeIsNoopWithoutAnySamples(t *testing.T) {
	m := &memSeeker{}
	w, _ := New(m, []byte{0x12, 0x10})
	before := len(m.buf)
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(m.buf) != before {
		t.Fatal("expected finalize with no samples to write nothing further")
	}
}
