// Package fmp4 writes a crash-safe fragmented MP4 (fMP4) file carrying a
// single AAC-LC audio track: an init segment (ftyp+moov), one moof+mdat
// pair per fragment flushed to disk as it's produced, and a standard moov
// appended at clean shutdown for players that don't support fragmented
// playback. A crash loses at most one fragment's worth of audio.
package fmp4

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Timescale is the movie/media timescale, matching the AAC sample rate.
const Timescale = 48000

// FrameDuration is the duration, in timescale units, of one AAC-LC frame.
const FrameDuration = 1024

// bitrate is embedded in the esds DecoderConfigDescriptor.
const bitrate = 192000

type sampleInfo struct {
	fileOffset uint64
	size       uint32
	duration   uint32
}

type pendingFrame struct {
	data     []byte
	duration uint32
}

// Writer accumulates AAC-LC frames and flushes them as MP4 fragments.
// W must support both writing and seeking, since box sizes are patched
// in place after a box's contents are known.
type Writer struct {
	w            io.WriteSeeker
	asc          []byte
	seqNum       uint32
	baseDecodeMs uint64
	pending      []pendingFrame
	samples      []sampleInfo
}

// New creates a writer and immediately emits the init segment
// (ftyp + moov with mvex) so the file is valid from the first byte.
func New(w io.WriteSeeker, audioSpecificConfig []byte) (*Writer, error) {
	fw := &Writer{
		w:   w,
		asc: append([]byte(nil), audioSpecificConfig...),
	}
	if err := writeFtyp(w); err != nil {
		return nil, err
	}
	if err := writeInitMoov(w, fw.asc); err != nil {
		return nil, err
	}
	return fw, nil
}

// PushFrame adds one raw AAC-LC frame to the current (unflushed) fragment.
func (fw *Writer) PushFrame(aacData []byte) {
	fw.pending = append(fw.pending, pendingFrame{
		data:     append([]byte(nil), aacData...),
		duration: FrameDuration,
	})
}

// PendingCount reports how many frames are accumulated in the current
// fragment.
func (fw *Writer) PendingCount() int {
	return len(fw.pending)
}

// FlushFragment writes the current fragment as a moof+mdat pair and
// flushes it. A no-op when there are no pending frames.
func (fw *Writer) FlushFragment() error {
	if len(fw.pending) == 0 {
		return nil
	}

	fw.seqNum++
	seq := fw.seqNum
	baseDT := fw.baseDecodeMs

	sampleCount := uint32(len(fw.pending))
	const trunEntrySize = 8
	trunSize := 12 + 4 + 4 + sampleCount*trunEntrySize
	const tfdtSize = 20
	const tfhdSize = 16
	trafSize := 8 + tfhdSize + tfdtSize + trunSize
	const mfhdSize = 16
	moofSize := 8 + mfhdSize + trafSize

	var mdatPayloadSize uint32
	for _, f := range fw.pending {
		mdatPayloadSize += uint32(len(f.data))
	}
	mdatSize := 8 + mdatPayloadSize

	dataOffset := int32(moofSize) + 8

	if err := writeBoxHeader(fw.w, "moof", moofSize); err != nil {
		return err
	}
	if err := writeFullBoxHeader(fw.w, "mfhd", mfhdSize, 0, 0); err != nil {
		return err
	}
	if err := writeU32(fw.w, seq); err != nil {
		return err
	}

	if err := writeBoxHeader(fw.w, "traf", trafSize); err != nil {
		return err
	}
	// tfhd — default-base-is-moof flag (0x020000)
	if err := writeFullBoxHeader(fw.w, "tfhd", tfhdSize, 0, 0x020000); err != nil {
		return err
	}
	if err := writeU32(fw.w, 1); err != nil { // track_id
		return err
	}
	// tfdt — version 1, 64-bit base_decode_time
	if err := writeFullBoxHeader(fw.w, "tfdt", tfdtSize, 1, 0); err != nil {
		return err
	}
	if err := writeU64(fw.w, baseDT); err != nil {
		return err
	}
	// trun — data-offset-present | sample-duration | sample-size
	if err := writeFullBoxHeader(fw.w, "trun", trunSize, 0, 0x000301); err != nil {
		return err
	}
	if err := writeU32(fw.w, sampleCount); err != nil {
		return err
	}
	if err := writeI32(fw.w, dataOffset); err != nil {
		return err
	}
	for _, f := range fw.pending {
		if err := writeU32(fw.w, f.duration); err != nil {
			return err
		}
		if err := writeU32(fw.w, uint32(len(f.data))); err != nil {
			return err
		}
	}

	if err := writeBoxHeader(fw.w, "mdat", mdatSize); err != nil {
		return err
	}
	mdatContentStart, err := fw.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("fmp4: seek: %w", err)
	}

	for i, f := range fw.pending {
		var offset int64
		if i == 0 {
			offset = mdatContentStart
		} else {
			offset, err = fw.w.Seek(0, io.SeekCurrent)
			if err != nil {
				return fmt.Errorf("fmp4: seek: %w", err)
			}
		}
		if _, err := fw.w.Write(f.data); err != nil {
			return fmt.Errorf("fmp4: write: %w", err)
		}
		fw.samples = append(fw.samples, sampleInfo{
			fileOffset: uint64(offset),
			size:       uint32(len(f.data)),
			duration:   f.duration,
		})
	}

	var totalDuration uint64
	for _, f := range fw.pending {
		totalDuration += uint64(f.duration)
	}
	fw.baseDecodeMs += totalDuration
	fw.pending = fw.pending[:0]

	if flusher, ok := fw.w.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return fmt.Errorf("fmp4: flush: %w", err)
		}
	}

	return nil
}

// Finalize flushes any remaining pending frames and, if any samples were
// ever written, appends a standard (non-fragmented) moov describing the
// whole track for maximum player compatibility.
func (fw *Writer) Finalize() error {
	if err := fw.FlushFragment(); err != nil {
		return err
	}
	if len(fw.samples) == 0 {
		return nil
	}
	if err := writeFinalMoov(fw.w, fw.asc, fw.samples); err != nil {
		return err
	}
	if flusher, ok := fw.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// ---------------------------------------------------------------------
// Low-level box helpers
// ---------------------------------------------------------------------

func writeBoxHeader(w io.Writer, boxType string, size uint32) error {
	if err := writeU32(w, size); err != nil {
		return err
	}
	if _, err := io.WriteString(w, boxType); err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	return nil
}

func writeFullBoxHeader(w io.Writer, boxType string, size uint32, version uint8, flags uint32) error {
	if err := writeBoxHeader(w, boxType, size); err != nil {
		return err
	}
	vf := uint32(version)<<24 | (flags & 0x00FFFFFF)
	return writeU32(w, vf)
}

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	if err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	return nil
}

func writeU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	return nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	return nil
}

func writeI32(w io.Writer, v int32) error {
	return writeU32(w, uint32(v))
}

func writeU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	return nil
}

func writeZeros(w io.Writer, count int) error {
	if count <= 0 {
		return nil
	}
	_, err := w.Write(make([]byte, count))
	if err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	return nil
}

var unityMatrix = [9]uint32{
	0x00010000, 0, 0,
	0, 0x00010000, 0,
	0, 0, 0x40000000,
}

func writeUnityMatrix(w io.Writer) error {
	for _, v := range unityMatrix {
		if err := writeU32(w, v); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// ftyp
// ---------------------------------------------------------------------

func writeFtyp(w io.Writer) error {
	size := uint32(8 + 4 + 4 + 12)
	if err := writeBoxHeader(w, "ftyp", size); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "isom"); err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	if err := writeU32(w, 0x200); err != nil {
		return err
	}
	for _, brand := range []string{"isom", "iso5", "mp41"} {
		if _, err := io.WriteString(w, brand); err != nil {
			return fmt.Errorf("fmp4: write: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Init moov (for fragmented playback)
// ---------------------------------------------------------------------

func writeInitMoov(w io.WriteSeeker, asc []byte) error {
	start, err := boxStartPlaceholder(w, "moov")
	if err != nil {
		return err
	}
	if err := writeMvhd(w, 0); err != nil {
		return err
	}
	if err := writeTrak(w, asc, nil, 0); err != nil {
		return err
	}
	if err := writeMvex(w); err != nil {
		return err
	}
	return patchBoxSize(w, start)
}

func writeMvhd(w io.Writer, duration uint32) error {
	const size = 108
	if err := writeFullBoxHeader(w, "mvhd", size, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil { // creation_time
		return err
	}
	if err := writeU32(w, 0); err != nil { // modification_time
		return err
	}
	if err := writeU32(w, Timescale); err != nil {
		return err
	}
	if err := writeU32(w, duration); err != nil {
		return err
	}
	if err := writeU32(w, 0x00010000); err != nil { // rate = 1.0
		return err
	}
	if err := writeU16(w, 0x0100); err != nil { // volume = 1.0
		return err
	}
	if err := writeZeros(w, 10); err != nil {
		return err
	}
	if err := writeUnityMatrix(w); err != nil {
		return err
	}
	if err := writeZeros(w, 24); err != nil { // pre_defined[6]
		return err
	}
	return writeU32(w, 2) // next_track_ID
}

func writeTrak(w io.WriteSeeker, asc []byte, samples []sampleInfo, duration uint32) error {
	start, err := boxStartPlaceholder(w, "trak")
	if err != nil {
		return err
	}
	if err := writeTkhd(w, duration); err != nil {
		return err
	}
	if err := writeMdia(w, asc, samples, duration); err != nil {
		return err
	}
	return patchBoxSize(w, start)
}

func writeTkhd(w io.Writer, duration uint32) error {
	const size = 92
	if err := writeFullBoxHeader(w, "tkhd", size, 0, 0x03); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil { // track_ID
		return err
	}
	if err := writeU32(w, 0); err != nil { // reserved
		return err
	}
	if err := writeU32(w, duration); err != nil {
		return err
	}
	if err := writeZeros(w, 8); err != nil {
		return err
	}
	if err := writeU16(w, 0); err != nil { // layer
		return err
	}
	if err := writeU16(w, 0); err != nil { // alternate_group
		return err
	}
	if err := writeU16(w, 0x0100); err != nil { // volume
		return err
	}
	if err := writeU16(w, 0); err != nil {
		return err
	}
	if err := writeUnityMatrix(w); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil { // width
		return err
	}
	return writeU32(w, 0) // height
}

func writeMdia(w io.WriteSeeker, asc []byte, samples []sampleInfo, duration uint32) error {
	start, err := boxStartPlaceholder(w, "mdia")
	if err != nil {
		return err
	}
	if err := writeMdhd(w, duration); err != nil {
		return err
	}
	if err := writeHdlr(w); err != nil {
		return err
	}
	if err := writeMinf(w, asc, samples); err != nil {
		return err
	}
	return patchBoxSize(w, start)
}

func writeMdhd(w io.Writer, duration uint32) error {
	const size = 32
	if err := writeFullBoxHeader(w, "mdhd", size, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil {
		return err
	}
	if err := writeU32(w, Timescale); err != nil {
		return err
	}
	if err := writeU32(w, duration); err != nil {
		return err
	}
	if err := writeU16(w, 0x55C4); err != nil { // language: undetermined
		return err
	}
	return writeU16(w, 0)
}

func writeHdlr(w io.Writer) error {
	const name = "SoundHandler\x00"
	size := uint32(8+4+4+4+12) + uint32(len(name))
	if err := writeFullBoxHeader(w, "hdlr", size, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil { // pre_defined
		return err
	}
	if _, err := io.WriteString(w, "soun"); err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	if err := writeZeros(w, 12); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}
	return nil
}

func writeMinf(w io.WriteSeeker, asc []byte, samples []sampleInfo) error {
	start, err := boxStartPlaceholder(w, "minf")
	if err != nil {
		return err
	}
	if err := writeSmhd(w); err != nil {
		return err
	}
	if err := writeDinf(w); err != nil {
		return err
	}
	if samples == nil {
		if err := writeStblInit(w, asc); err != nil {
			return err
		}
	} else {
		if err := writeStblFinal(w, asc, samples); err != nil {
			return err
		}
	}
	return patchBoxSize(w, start)
}

func writeSmhd(w io.Writer) error {
	const size = 16
	if err := writeFullBoxHeader(w, "smhd", size, 0, 0); err != nil {
		return err
	}
	if err := writeU16(w, 0); err != nil { // balance
		return err
	}
	return writeU16(w, 0) // reserved
}

func writeDinf(w io.Writer) error {
	const urlSize = 12
	const drefSize = 8 + 4 + 4 + urlSize
	const dinfSize = 8 + drefSize
	if err := writeBoxHeader(w, "dinf", dinfSize); err != nil {
		return err
	}
	if err := writeFullBoxHeader(w, "dref", drefSize, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil { // entry_count
		return err
	}
	return writeFullBoxHeader(w, "url ", urlSize, 0, 0x01) // self-contained
}

func writeStblInit(w io.WriteSeeker, asc []byte) error {
	start, err := boxStartPlaceholder(w, "stbl")
	if err != nil {
		return err
	}
	if err := writeStsd(w, asc); err != nil {
		return err
	}
	if err := writeEmptyStts(w); err != nil {
		return err
	}
	if err := writeEmptyStsc(w); err != nil {
		return err
	}
	if err := writeEmptyStsz(w); err != nil {
		return err
	}
	if err := writeEmptyStco(w); err != nil {
		return err
	}
	return patchBoxSize(w, start)
}

func writeStsd(w io.WriteSeeker, asc []byte) error {
	start, err := boxStartPlaceholderFull(w, "stsd", 0, 0)
	if err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil { // entry_count
		return err
	}

	esdsInner := buildEsdsContents(asc)
	esdsSize := uint32(12 + len(esdsInner))
	mp4aSize := uint32(8+6+2+8+2+2+4+2+2) + esdsSize

	if err := writeBoxHeader(w, "mp4a", mp4aSize); err != nil {
		return err
	}
	if err := writeZeros(w, 6); err != nil {
		return err
	}
	if err := writeU16(w, 1); err != nil { // data_reference_index
		return err
	}
	if err := writeZeros(w, 8); err != nil {
		return err
	}
	if err := writeU16(w, 1); err != nil { // channel_count (mono)
		return err
	}
	if err := writeU16(w, 16); err != nil { // sample_size
		return err
	}
	if err := writeU32(w, 0); err != nil {
		return err
	}
	if err := writeU16(w, uint16(Timescale)); err != nil { // samplerate 16.16
		return err
	}
	if err := writeU16(w, 0); err != nil {
		return err
	}

	if err := writeFullBoxHeader(w, "esds", esdsSize, 0, 0); err != nil {
		return err
	}
	if _, err := w.Write(esdsInner); err != nil {
		return fmt.Errorf("fmp4: write: %w", err)
	}

	return patchBoxSize(w, start)
}

func buildEsdsContents(asc []byte) []byte {
	var buf []byte

	decConfigLen := 13 + 2 + len(asc)
	const slConfigLen = 1
	esDescLen := 3 + (2 + decConfigLen) + (2 + slConfigLen)

	buf = append(buf, 0x03, byte(esDescLen))
	buf = append(buf, 0x00, 0x01) // ES_ID
	buf = append(buf, 0x00)       // stream priority

	buf = append(buf, 0x04, byte(decConfigLen))
	buf = append(buf, 0x40) // objectTypeIndication: Audio ISO/IEC 14496-3
	buf = append(buf, 0x15) // streamType: audio(5)<<2 | upstream(0)<<1 | 1
	buf = append(buf, 0x00, 0x00, 0x00)
	var br [4]byte
	binary.BigEndian.PutUint32(br[:], bitrate)
	buf = append(buf, br[:]...) // maxBitrate
	buf = append(buf, br[:]...) // avgBitrate

	buf = append(buf, 0x05, byte(len(asc)))
	buf = append(buf, asc...)

	buf = append(buf, 0x06, byte(slConfigLen), 0x02) // predefined = MP4

	return buf
}

func writeEmptyStts(w io.Writer) error {
	if err := writeFullBoxHeader(w, "stts", 16, 0, 0); err != nil {
		return err
	}
	return writeU32(w, 0)
}

func writeEmptyStsc(w io.Writer) error {
	if err := writeFullBoxHeader(w, "stsc", 16, 0, 0); err != nil {
		return err
	}
	return writeU32(w, 0)
}

func writeEmptyStsz(w io.Writer) error {
	if err := writeFullBoxHeader(w, "stsz", 20, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil {
		return err
	}
	return writeU32(w, 0)
}

func writeEmptyStco(w io.Writer) error {
	if err := writeFullBoxHeader(w, "stco", 16, 0, 0); err != nil {
		return err
	}
	return writeU32(w, 0)
}

func writeMvex(w io.Writer) error {
	const mvexSize = 8 + 32
	if err := writeBoxHeader(w, "mvex", mvexSize); err != nil {
		return err
	}
	const trexSize = 32
	if err := writeFullBoxHeader(w, "trex", trexSize, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil { // track_ID
		return err
	}
	if err := writeU32(w, 1); err != nil { // default_sample_description_index
		return err
	}
	if err := writeU32(w, FrameDuration); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil { // default_sample_size
		return err
	}
	return writeU32(w, 0) // default_sample_flags
}

// ---------------------------------------------------------------------
// Finalization moov
// ---------------------------------------------------------------------

func writeFinalMoov(w io.WriteSeeker, asc []byte, samples []sampleInfo) error {
	var totalDuration uint64
	for _, s := range samples {
		totalDuration += uint64(s.duration)
	}

	start, err := boxStartPlaceholder(w, "moov")
	if err != nil {
		return err
	}
	if err := writeMvhd(w, uint32(totalDuration)); err != nil {
		return err
	}
	if err := writeTrak(w, asc, samples, uint32(totalDuration)); err != nil {
		return err
	}
	return patchBoxSize(w, start)
}

func writeStblFinal(w io.WriteSeeker, asc []byte, samples []sampleInfo) error {
	start, err := boxStartPlaceholder(w, "stbl")
	if err != nil {
		return err
	}
	if err := writeStsd(w, asc); err != nil {
		return err
	}

	sttsSize := uint32(16 + 8)
	if err := writeFullBoxHeader(w, "stts", sttsSize, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil { // entry_count
		return err
	}
	if err := writeU32(w, uint32(len(samples))); err != nil {
		return err
	}
	if err := writeU32(w, FrameDuration); err != nil {
		return err
	}

	stszSize := uint32(20 + 4*len(samples))
	if err := writeFullBoxHeader(w, "stsz", stszSize, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 0); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(samples))); err != nil {
		return err
	}
	for _, s := range samples {
		if err := writeU32(w, s.size); err != nil {
			return err
		}
	}

	stscSize := uint32(16 + 12)
	if err := writeFullBoxHeader(w, "stsc", stscSize, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil {
		return err
	}
	if err := writeU32(w, 1); err != nil {
		return err
	}

	co64Size := uint32(16 + 8*len(samples))
	if err := writeFullBoxHeader(w, "co64", co64Size, 0, 0); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(samples))); err != nil {
		return err
	}
	for _, s := range samples {
		if err := writeU64(w, s.fileOffset); err != nil {
			return err
		}
	}

	return patchBoxSize(w, start)
}

// ---------------------------------------------------------------------
// Size patching helpers
// ---------------------------------------------------------------------

func boxStartPlaceholder(w io.WriteSeeker, boxType string) (int64, error) {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("fmp4: seek: %w", err)
	}
	if err := writeBoxHeader(w, boxType, 0); err != nil {
		return 0, err
	}
	return pos, nil
}

func boxStartPlaceholderFull(w io.WriteSeeker, boxType string, version uint8, flags uint32) (int64, error) {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("fmp4: seek: %w", err)
	}
	if err := writeFullBoxHeader(w, boxType, 0, version, flags); err != nil {
		return 0, err
	}
	return pos, nil
}

func patchBoxSize(w io.WriteSeeker, start int64) error {
	end, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("fmp4: seek: %w", err)
	}
	size := uint32(end - start)
	if _, err := w.Seek(start, io.SeekStart); err != nil {
		return fmt.Errorf("fmp4: seek: %w", err)
	}
	if err := writeU32(w, size); err != nil {
		return err
	}
	_, err = w.Seek(end, io.SeekStart)
	if err != nil {
		return fmt.Errorf("fmp4: seek: %w", err)
	}
	return nil
}
