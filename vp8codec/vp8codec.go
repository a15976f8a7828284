// Package vp8codec wraps VP8 encode and decode over libvpx-go for the
// video pipeline. Bitrate, timebase, and rate-control mode intentionally
// diverge from the teacher's own WHEP-client defaults (see DESIGN.md):
// this domain needs a low, steady ~400kbps VBR stream at a 1/24 timebase
// rather than the teacher's 1Mbps CBR at 1/30.
package vp8codec

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/Azunyan1111/libvpx-go/vpx"
)

// bitrateKbps is the encoder's target bitrate in kbit/s.
const bitrateKbps = 400

// timebaseNum/timebaseDen give the 1/24 encoder timebase.
const timebaseNum = 1
const timebaseDen = 24

// Encoder wraps a VP8 encoder bound to a fixed resolution.
type Encoder struct {
	ctx    *vpx.CodecCtx
	img    *vpx.Image
	width  int
	height int
	pts    int64
}

// NewEncoder creates a VP8 encoder for width x height I420 input, using a
// ~400kbps VBR profile at a 1/24 timebase.
func NewEncoder(width, height int) (*Encoder, error) {
	ctx := vpx.NewCodecCtx()
	if ctx == nil {
		return nil, fmt.Errorf("vp8codec: failed to create codec context")
	}

	iface := vpx.EncoderIfaceVP8()
	if iface == nil {
		vpx.CodecDestroy(ctx)
		return nil, fmt.Errorf("vp8codec: failed to get VP8 encoder interface")
	}

	cfg := &vpx.CodecEncCfg{}
	if err := vpx.Error(vpx.CodecEncConfigDefault(iface, cfg, 0)); err != nil {
		vpx.CodecDestroy(ctx)
		return nil, fmt.Errorf("vp8codec: default encoder config: %w", err)
	}
	cfg.Deref()

	cfg.GW = uint32(width)
	cfg.GH = uint32(height)
	cfg.GTimebase = vpx.Rational{Num: timebaseNum, Den: timebaseDen}
	cfg.RcTargetBitrate = bitrateKbps
	cfg.GPass = vpx.RcOnePass
	cfg.RcEndUsage = vpx.Vbr
	cfg.KfMode = vpx.KfAuto
	cfg.KfMaxDist = timebaseDen // roughly one keyframe per second

	numThreads := runtime.NumCPU()
	if numThreads > 4 {
		numThreads = 4
	}
	if numThreads < 1 {
		numThreads = 1
	}
	cfg.GThreads = uint32(numThreads)
	cfg.GLagInFrames = 0
	cfg.RcMinQuantizer = 4
	cfg.RcMaxQuantizer = 56
	cfg.GProfile = 0

	if err := vpx.Error(vpx.CodecEncInitVer(ctx, iface, cfg, 0, vpx.EncoderABIVersion)); err != nil {
		vpx.CodecDestroy(ctx)
		return nil, fmt.Errorf("vp8codec: init encoder: %w", err)
	}

	img := vpx.ImageAlloc(nil, vpx.ImageFormatI420, uint32(width), uint32(height), 1)
	if img == nil {
		vpx.CodecDestroy(ctx)
		return nil, fmt.Errorf("vp8codec: failed to allocate image")
	}
	img.Deref()

	return &Encoder{ctx: ctx, img: img, width: width, height: height}, nil
}

// EncodedFrame is one VP8 frame ready for fragmenting and sending.
type EncodedFrame struct {
	Data       []byte
	IsKeyframe bool
}

// Encode accepts one I420 frame (w*h*3/2 bytes) and returns zero or more
// encoded VP8 frames (libvpx may hold a frame back internally before
// emitting it).
func (e *Encoder) Encode(i420 []byte) ([]EncodedFrame, error) {
	w := int(e.img.DW)
	h := int(e.img.DH)
	expected := w * h * 3 / 2
	if len(i420) != expected {
		return nil, fmt.Errorf("vp8codec: expected %d I420 bytes for %dx%d, got %d", expected, w, h, len(i420))
	}
	copyI420IntoImage(e.img, i420, w, h)

	if err := vpx.Error(vpx.CodecEncode(e.ctx, e.img, vpx.CodecPts(e.pts), 1, 0, vpx.DlRealtime)); err != nil {
		detail := vpx.CodecErrorDetail(e.ctx)
		return nil, fmt.Errorf("vp8codec: encode: %w (detail: %s)", err, detail)
	}
	e.pts++

	var out []EncodedFrame
	var iter vpx.CodecIter
	for {
		pkt := vpx.CodecGetCxData(e.ctx, &iter)
		if pkt == nil {
			break
		}
		pkt.Deref()
		if pkt.Kind != vpx.CodecCxFramePkt {
			continue
		}
		out = append(out, EncodedFrame{
			Data:       pkt.GetFrameData(),
			IsKeyframe: pkt.IsKeyframe(),
		})
	}
	return out, nil
}

// Close releases the underlying encoder and image.
func (e *Encoder) Close() {
	if e.img != nil {
		vpx.ImageFree(e.img)
		e.img = nil
	}
	if e.ctx != nil {
		vpx.CodecDestroy(e.ctx)
		e.ctx = nil
	}
}

func copyI420IntoImage(img *vpx.Image, i420 []byte, w, h int) {
	yStride := int(img.Stride[vpx.PlaneY])
	uStride := int(img.Stride[vpx.PlaneU])
	vStride := int(img.Stride[vpx.PlaneV])

	yPlane := (*(*[1 << 30]byte)(unsafe.Pointer(img.Planes[vpx.PlaneY])))[:yStride*h]
	uPlane := (*(*[1 << 30]byte)(unsafe.Pointer(img.Planes[vpx.PlaneU])))[: uStride*h/2]
	vPlane := (*(*[1 << 30]byte)(unsafe.Pointer(img.Planes[vpx.PlaneV])))[: vStride*h/2]

	ySize := w * h
	uvSize := w * h / 4
	srcY := i420[:ySize]
	srcU := i420[ySize : ySize+uvSize]
	srcV := i420[ySize+uvSize : ySize+2*uvSize]

	for row := 0; row < h; row++ {
		copy(yPlane[row*yStride:row*yStride+w], srcY[row*w:(row+1)*w])
	}
	uvH, uvW := h/2, w/2
	for row := 0; row < uvH; row++ {
		copy(uPlane[row*uStride:row*uStride+uvW], srcU[row*uvW:(row+1)*uvW])
		copy(vPlane[row*vStride:row*vStride+uvW], srcV[row*uvW:(row+1)*uvW])
	}
}

// Decoder wraps a VP8 decoder. One Decoder is created per remote peer, so
// independent bitstream state (and any internal reference frames) never
// crosses participants.
type Decoder struct {
	ctx *vpx.CodecCtx
}

// NewDecoder creates a VP8 decoder with no fixed output resolution; the
// codec takes the resolution of the bitstream it's fed.
func NewDecoder() (*Decoder, error) {
	ctx := vpx.NewCodecCtx()
	if ctx == nil {
		return nil, fmt.Errorf("vp8codec: failed to create codec context")
	}

	iface := vpx.DecoderIfaceVP8()
	if iface == nil {
		vpx.CodecDestroy(ctx)
		return nil, fmt.Errorf("vp8codec: failed to get VP8 decoder interface")
	}

	cfg := &vpx.CodecDecCfg{W: 0, H: 0, Threads: 1}
	if err := vpx.Error(vpx.CodecDecInitVer(ctx, iface, cfg, 0, vpx.DecoderABIVersion)); err != nil {
		vpx.CodecDestroy(ctx)
		return nil, fmt.Errorf("vp8codec: init decoder: %w", err)
	}

	return &Decoder{ctx: ctx}, nil
}

// DecodedFrame is one decoded I420 frame.
type DecodedFrame struct {
	Data   []byte
	Width  uint32
	Height uint32
}

// Decode feeds one VP8 frame into the decoder and returns the decoded
// I420 frame if one is ready. A nil/false result is not an error — it
// just means libvpx hasn't produced a displayable frame from this input
// yet.
func (d *Decoder) Decode(data []byte) (DecodedFrame, bool, error) {
	if err := vpx.Error(vpx.CodecDecode(d.ctx, data, uint32(len(data)), nil, 0)); err != nil {
		return DecodedFrame{}, false, fmt.Errorf("vp8codec: decode: %w", err)
	}

	var iter vpx.CodecIter
	img := vpx.CodecGetFrame(d.ctx, &iter)
	if img == nil {
		return DecodedFrame{}, false, nil
	}
	img.Deref()

	w := int(img.DW)
	h := int(img.DH)
	yStride := int(img.Stride[vpx.PlaneY])
	uStride := int(img.Stride[vpx.PlaneU])
	vStride := int(img.Stride[vpx.PlaneV])

	yPlane := (*(*[1 << 30]byte)(unsafe.Pointer(img.Planes[vpx.PlaneY])))[:yStride*h]
	uPlane := (*(*[1 << 30]byte)(unsafe.Pointer(img.Planes[vpx.PlaneU])))[: uStride*h/2]
	vPlane := (*(*[1 << 30]byte)(unsafe.Pointer(img.Planes[vpx.PlaneV])))[: vStride*h/2]

	out := make([]byte, w*h+2*(w/2)*(h/2))
	ySize := w * h
	uvSize := (w / 2) * (h / 2)
	for row := 0; row < h; row++ {
		copy(out[row*w:(row+1)*w], yPlane[row*yStride:row*yStride+w])
	}
	uvH, uvW := h/2, w/2
	for row := 0; row < uvH; row++ {
		copy(out[ySize+row*uvW:ySize+(row+1)*uvW], uPlane[row*uStride:row*uStride+uvW])
		copy(out[ySize+uvSize+row*uvW:ySize+uvSize+(row+1)*uvW], vPlane[row*vStride:row*vStride+uvW])
	}

	return DecodedFrame{Data: out, Width: uint32(w), Height: uint32(h)}, true, nil
}

// Close releases the underlying decoder.
func (d *Decoder) Close() {
	if d.ctx != nil {
		vpx.CodecDestroy(d.ctx)
		d.ctx = nil
	}
}
