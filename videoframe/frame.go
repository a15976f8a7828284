// Package videoframe holds the raw RGB24 frame type plus the BT.601
// RGB<->I420 color conversion and downscale helpers used by the video
// pipeline.
package videoframe

// Frame is a raw RGB24 video frame: width*height*3 bytes, row-major,
// 3 bytes (R,G,B) per pixel.
type Frame struct {
	Data   []byte
	Width  uint32
	Height uint32
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// RGBToI420 converts RGB24 data to I420 (YUV420 planar) using BT.601
// coefficients. Output layout: Y plane (w*h) + U plane (w/2*h/2) + V plane
// (w/2*h/2). Width and height must be even; odd inputs are truncated by
// integer division, matching the original's behavior.
func RGBToI420(rgb []byte, width, height uint32) []byte {
	w := int(width)
	h := int(height)
	uvW := w / 2
	uvH := h / 2

	ySize := w * h
	uvSize := uvW * uvH
	yuv := make([]byte, ySize+2*uvSize)

	yPlane := yuv[:ySize]
	uPlane := yuv[ySize : ySize+uvSize]
	vPlane := yuv[ySize+uvSize:]

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			idx := (row*w + col) * 3
			r := float64(rgb[idx])
			g := float64(rgb[idx+1])
			b := float64(rgb[idx+2])
			y := 16.0 + 65.481*r/255.0 + 128.553*g/255.0 + 24.966*b/255.0
			yPlane[row*w+col] = clampByte(y)
		}
	}

	for row := 0; row < uvH; row++ {
		for col := 0; col < uvW; col++ {
			var rSum, gSum, bSum uint32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					idx := ((row*2+dy)*w + col*2 + dx) * 3
					rSum += uint32(rgb[idx])
					gSum += uint32(rgb[idx+1])
					bSum += uint32(rgb[idx+2])
				}
			}
			r := float64(rSum / 4)
			g := float64(gSum / 4)
			b := float64(bSum / 4)

			u := 128.0 - 37.797*r/255.0 - 74.203*g/255.0 + 112.0*b/255.0
			v := 128.0 + 112.0*r/255.0 - 93.786*g/255.0 - 18.214*b/255.0

			uPlane[row*uvW+col] = clampByte(u)
			vPlane[row*uvW+col] = clampByte(v)
		}
	}

	return yuv
}

// I420ToRGB converts I420 planar data back to RGB24 using BT.601
// coefficients, with nearest-neighbor chroma upsampling.
func I420ToRGB(yuv []byte, width, height uint32) []byte {
	w := int(width)
	h := int(height)
	uvW := w / 2

	ySize := w * h
	uvSize := (w / 2) * (h / 2)

	yPlane := yuv[:ySize]
	uPlane := yuv[ySize : ySize+uvSize]
	vPlane := yuv[ySize+uvSize:]

	rgb := make([]byte, w*h*3)

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			y := float64(yPlane[row*w+col]) - 16.0
			u := float64(uPlane[(row/2)*uvW+col/2]) - 128.0
			v := float64(vPlane[(row/2)*uvW+col/2]) - 128.0

			r := 1.164*y + 1.596*v
			g := 1.164*y - 0.392*u - 0.813*v
			b := 1.164*y + 2.017*u

			idx := (row*w + col) * 3
			rgb[idx] = clampByte(r)
			rgb[idx+1] = clampByte(g)
			rgb[idx+2] = clampByte(b)
		}
	}

	return rgb
}

// Downscale resizes src to the target resolution using nearest-neighbor
// sampling. No image-resize package appears anywhere in the reference
// corpus's dependency surface (see DESIGN.md), so this is a justified
// stdlib-only component.
func Downscale(src Frame, targetW, targetH uint32) Frame {
	if src.Width == targetW && src.Height == targetH {
		data := append([]byte(nil), src.Data...)
		return Frame{Data: data, Width: targetW, Height: targetH}
	}

	dst := make([]byte, int(targetW)*int(targetH)*3)
	for y := uint32(0); y < targetH; y++ {
		srcY := y * src.Height / targetH
		for x := uint32(0); x < targetW; x++ {
			srcX := x * src.Width / targetW
			srcIdx := (srcY*src.Width + srcX) * 3
			dstIdx := (y*targetW + x) * 3
			dst[dstIdx] = src.Data[srcIdx]
			dst[dstIdx+1] = src.Data[srcIdx+1]
			dst[dstIdx+2] = src.Data[srcIdx+2]
		}
	}

	return Frame{Data: dst, Width: targetW, Height: targetH}
}
