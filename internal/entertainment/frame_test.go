package entertainment

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// buildFrame assembles a v1 streaming packet with the given color space
// flag and 9-byte records.
func buildFrame(colorSpace byte, records ...[]byte) []byte {
	header := make([]byte, headerSizeV1)
	copy(header, frameMagic)
	header[9] = 1 // version major
	header[14] = colorSpace
	pkt := header
	for _, rec := range records {
		pkt = append(pkt, rec...)
	}
	return pkt
}

func rgbRecord(lightID uint16, r, g, b byte) []byte {
	return []byte{
		0x00, byte(lightID >> 8), byte(lightID),
		r, 0x00, g, 0x00, b, 0x00,
	}
}

func TestSplitFrames(t *testing.T) {
	one := buildFrame(0, rgbRecord(1, 0xFF, 0x00, 0x00))
	two := buildFrame(0, rgbRecord(2, 0x00, 0xFF, 0x00))

	var buf []byte
	buf = append(buf, one...)
	buf = append(buf, two...)

	frames, rest := SplitFrames(buf)
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], one) {
		t.Error("first frame mangled")
	}
	if !bytes.Equal(frames[1], two) {
		t.Error("second frame mangled")
	}
	if len(rest) != 0 {
		t.Errorf("rest = %q", rest)
	}
}

func TestSplitFramesPartialTailCompletesLater(t *testing.T) {
	frame := buildFrame(0, rgbRecord(1, 0xFF, 0x00, 0x00))
	cut := len(frame) - 4

	frames, rest := SplitFrames(frame[:cut])
	if len(frames) != 0 {
		t.Fatalf("frames = %d from a truncated packet", len(frames))
	}
	if !bytes.Equal(rest, frame[:cut]) {
		t.Fatalf("rest lost data: %q", rest)
	}

	frames, rest = SplitFrames(append(rest, frame[cut:]...))
	if len(frames) != 1 || !bytes.Equal(frames[0], frame) {
		t.Fatalf("reassembled frames = %v", frames)
	}
	if len(rest) != 0 {
		t.Errorf("rest = %q", rest)
	}
}

func TestSplitFramesFlushesCompleteTail(t *testing.T) {
	one := buildFrame(0, rgbRecord(1, 0xFF, 0x00, 0x00))

	frames, rest := SplitFrames(one)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want the whole tail flushed", len(frames))
	}
	if !bytes.Equal(frames[0], one) {
		t.Error("flushed frame mangled")
	}
	if len(rest) != 0 {
		t.Errorf("rest = %q", rest)
	}
}

func TestSplitFramesNoMagic(t *testing.T) {
	frames, rest := SplitFrames([]byte("garbage"))
	if len(frames) != 0 {
		t.Errorf("frames = %d", len(frames))
	}
	if string(rest) != "garbage" {
		t.Errorf("rest = %q", rest)
	}
}

func TestParseFrameRGB(t *testing.T) {
	pkt := buildFrame(0,
		rgbRecord(1, 0xFF, 0x80, 0x00),
		rgbRecord(7, 0x10, 0x20, 0x30),
	)
	frame, err := ParseFrame(pkt)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if frame.Version != 1 {
		t.Errorf("version = %d", frame.Version)
	}
	if frame.Space != ColorSpaceRGB {
		t.Errorf("space = %v", frame.Space)
	}
	if len(frame.Records) != 2 {
		t.Fatalf("records = %d", len(frame.Records))
	}

	rec := frame.Records[0]
	if rec.LightID != 1 {
		t.Errorf("light id = %d", rec.LightID)
	}
	if rec.R != 0xFF || rec.G != 0x80 || rec.B != 0x00 {
		t.Errorf("rgb = %d,%d,%d", rec.R, rec.G, rec.B)
	}
	if want := (0xFF + 0x80 + 0x00) / 3; rec.Brightness != want {
		t.Errorf("brightness = %d, want %d", rec.Brightness, want)
	}

	if frame.Records[1].LightID != 7 {
		t.Errorf("second light id = %d", frame.Records[1].LightID)
	}
}

func TestParseFrameXY(t *testing.T) {
	// x = y = 0x7FFF/0xFFFF, brightness word 0xC800.
	rec := []byte{0x00, 0x00, 0x03, 0x7F, 0xFF, 0x7F, 0xFF, 0xC8, 0x00}
	frame, err := ParseFrame(buildFrame(1, rec))
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if frame.Space != ColorSpaceXY {
		t.Fatalf("space = %v", frame.Space)
	}
	got := frame.Records[0]
	if got.LightID != 3 {
		t.Errorf("light id = %d", got.LightID)
	}
	if math.Abs(got.X-0.5) > 0.001 || math.Abs(got.Y-0.5) > 0.001 {
		t.Errorf("xy = %f,%f", got.X, got.Y)
	}
	if got.Brightness != 0xC8 {
		t.Errorf("brightness = %d, want %d", got.Brightness, 0xC8)
	}
}

func TestParseFrameShort(t *testing.T) {
	if _, err := ParseFrame([]byte("HueStream")); !errors.Is(err, errShortFrame) {
		t.Errorf("err = %v, want errShortFrame", err)
	}
}

func TestParseFrameV2Offset(t *testing.T) {
	// A v2 packet carries a 36-byte entertainment configuration id
	// between the header and the records.
	pkt := make([]byte, headerSizeV2)
	copy(pkt, frameMagic)
	pkt[9] = 2
	pkt = append(pkt, rgbRecord(4, 0x40, 0x40, 0x40)...)

	frame, err := ParseFrame(pkt)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if len(frame.Records) != 1 || frame.Records[0].LightID != 4 {
		t.Fatalf("records = %+v", frame.Records)
	}
}
