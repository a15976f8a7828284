package vp8codec

import "testing"

func solidI420(w, h int, y, u, v byte) []byte {
	buf := make([]byte, w*h+2*(w/2)*(h/2))
	ySize := w * h
	uvSize := (w / 2) * (h / 2)
	for i := 0; i < ySize; i++ {
		buf[i] = y
	}
	for i := 0; i < uvSize; i++ {
		buf[ySize+i] = u
		buf[ySize+uvSize+i] = v
	}
	return buf
}

func TestEncodeProducesAtLeastOneKeyframeEventually(t *testing.T) {
	enc, err := NewEncoder(64, 48)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	frame := solidI420(64, 48, 128, 128, 128)

	var sawKeyframe bool
	for i := 0; i < 3; i++ {
		frames, err := enc.Encode(frame)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		for _, f := range frames {
			if f.IsKeyframe {
				sawKeyframe = true
			}
		}
	}
	if !sawKeyframe {
		t.Fatal("expected at least one keyframe within the first 3 frames")
	}
}

func TestEncodeRejectsWrongSizedInput(t *testing.T) {
	enc, err := NewEncoder(64, 48)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	if _, err := enc.Encode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for undersized I420 input")
	}
}

func TestEncodeDecodeRoundTripProducesSameDimensions(t *testing.T) {
	enc, err := NewEncoder(64, 48)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	defer dec.Close()

	frame := solidI420(64, 48, 128, 128, 128)

	var decoded DecodedFrame
	var gotFrame bool
	for i := 0; i < 3 && !gotFrame; i++ {
		encoded, err := enc.Encode(frame)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		for _, f := range encoded {
			d, ok, err := dec.Decode(f.Data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if ok {
				decoded = d
				gotFrame = true
				break
			}
		}
	}
	if !gotFrame {
		t.Fatal("expected a decoded frame within 3 encode/decode rounds")
	}
	if decoded.Width != 64 || decoded.Height != 48 {
		t.Fatalf("unexpected decoded dimensions: %dx%d", decoded.Width, decoded.Height)
	}
}
