package videoframe

import "testing"

func solidColor(width, height uint32, r, g, b byte) []byte {
	rgb := make([]byte, int(width)*int(height)*3)
	for i := 0; i < len(rgb); i += 3 {
		rgb[i] = r
		rgb[i+1] = g
		rgb[i+2] = b
	}
	return rgb
}

func TestRGBToI420BlackProducesLumaMinimum(t *testing.T) {
	rgb := solidColor(4, 4, 0, 0, 0)
	yuv := RGBToI420(rgb, 4, 4)
	for i := 0; i < 16; i++ {
		if yuv[i] != 16 {
			t.Fatalf("expected Y=16 for black, got %d at %d", yuv[i], i)
		}
	}
	for i := 16; i < len(yuv); i++ {
		if yuv[i] != 128 {
			t.Fatalf("expected chroma=128 for black/gray, got %d at %d", yuv[i], i)
		}
	}
}

func TestRGBToI420WhiteProducesLumaNearMax(t *testing.T) {
	rgb := solidColor(4, 4, 255, 255, 255)
	yuv := RGBToI420(rgb, 4, 4)
	for i := 0; i < 16; i++ {
		if yuv[i] < 234 {
			t.Fatalf("expected Y near 235 for white, got %d", yuv[i])
		}
	}
}

func TestI420RoundTripApproximatelyPreservesGray(t *testing.T) {
	rgb := solidColor(8, 8, 128, 128, 128)
	yuv := RGBToI420(rgb, 8, 8)
	back := I420ToRGB(yuv, 8, 8)
	for i, v := range back {
		diff := int(v) - int(rgb[i])
		if diff < -3 || diff > 3 {
			t.Fatalf("round trip drifted too far at %d: got %d want ~%d", i, v, rgb[i])
		}
	}
}

func TestDownscaleIdentityWhenSameSize(t *testing.T) {
	src := Frame{Data: solidColor(4, 4, 10, 20, 30), Width: 4, Height: 4}
	dst := Downscale(src, 4, 4)
	for i, v := range dst.Data {
		if v != src.Data[i] {
			t.Fatalf("identity downscale mutated data at %d", i)
		}
	}
}

func TestDownscaleProducesTargetDimensions(t *testing.T) {
	src := Frame{Data: solidColor(1920, 1080, 5, 5, 5), Width: 1920, Height: 1080}
	dst := Downscale(src, 854, 480)
	if dst.Width != 854 || dst.Height != 480 {
		t.Fatalf("unexpected dims: %dx%d", dst.Width, dst.Height)
	}
	if len(dst.Data) != 854*480*3 {
		t.Fatalf("unexpected data length: %d", len(dst.Data))
	}
	for i, v := range dst.Data {
		if v != 5 {
			t.Fatalf("downscaled solid color changed at %d: %d", i, v)
		}
	}
}
