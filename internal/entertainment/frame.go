package entertainment

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Streaming packets start with this magic, followed by a protocol
// header and fixed-size per-light records.
var frameMagic = []byte("HueStream")

const (
	headerSizeV1 = 16
	headerSizeV2 = 52
	recordSize   = 9

	// Clients stream 20 channels at most.
	maxFrameSize = headerSizeV2 + recordSize*20
)

// ColorSpace identifies how a record's 6 color bytes are encoded.
type ColorSpace int

const (
	ColorSpaceRGB ColorSpace = iota
	ColorSpaceXY
)

// Record is a single light command decoded from a streaming frame.
type Record struct {
	LightID    uint16
	Space      ColorSpace
	R, G, B    int
	X, Y       float64
	Brightness int
}

// Frame is one decoded streaming packet.
type Frame struct {
	Version int
	Space   ColorSpace
	Records []Record
}

var errShortFrame = errors.New("entertainment: frame too short")

// SplitFrames cuts complete frames out of buf. The trailing segment is
// flushed too when its record region is whole, so a frame does not wait
// for the next packet's magic to arrive; otherwise it is returned as
// the remainder for the next read.
func SplitFrames(buf []byte) (frames [][]byte, rest []byte) {
	parts := bytes.Split(buf, frameMagic)
	if len(parts) < 2 {
		return nil, buf
	}
	for _, part := range parts[1 : len(parts)-1] {
		frames = append(frames, append(append([]byte{}, frameMagic...), part...))
	}
	tail := append(append([]byte{}, frameMagic...), parts[len(parts)-1]...)
	if frameComplete(tail) {
		return append(frames, tail), nil
	}
	// rest keeps its magic so the partial frame can complete on the
	// next read
	return frames, tail
}

// frameComplete reports whether pkt holds a header plus a whole number
// of records.
func frameComplete(pkt []byte) bool {
	if len(pkt) < headerSizeV1 {
		return false
	}
	offset := headerSizeV1
	if pkt[9] != 1 {
		offset = headerSizeV2
	}
	body := len(pkt) - offset
	return body >= recordSize && body%recordSize == 0
}

// ParseFrame decodes one streaming packet. Short packets (the initial
// handshake message) yield errShortFrame and are skipped by the caller.
func ParseFrame(pkt []byte) (Frame, error) {
	if len(pkt) < headerSizeV1 {
		return Frame{}, errShortFrame
	}
	frame := Frame{Version: int(pkt[9])}
	if pkt[14] != 0 {
		frame.Space = ColorSpaceXY
	}
	offset := headerSizeV1
	if frame.Version != 1 {
		offset = headerSizeV2
	}
	if len(pkt) < offset {
		return Frame{}, errShortFrame
	}
	for data := pkt[offset:]; len(data) >= recordSize; data = data[recordSize:] {
		frame.Records = append(frame.Records, parseRecord(data[:recordSize], frame.Space))
	}
	return frame, nil
}

func parseRecord(data []byte, space ColorSpace) Record {
	rec := Record{
		LightID: binary.BigEndian.Uint16(data[1:3]),
		Space:   space,
	}
	if space == ColorSpaceRGB {
		rec.R = int(binary.BigEndian.Uint16(data[3:5]) / 256)
		rec.G = int(binary.BigEndian.Uint16(data[5:7]) / 256)
		rec.B = int(binary.BigEndian.Uint16(data[7:9]) / 256)
		rec.Brightness = (rec.R + rec.G + rec.B) / 3
	} else {
		rec.X = float64(binary.BigEndian.Uint16(data[3:5])) / 65535
		rec.Y = float64(binary.BigEndian.Uint16(data[5:7])) / 65535
		rec.Brightness = int(binary.BigEndian.Uint16(data[7:9]) / 256)
	}
	return rec
}
