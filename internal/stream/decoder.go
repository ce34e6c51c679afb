package stream

import (
	"bytes"
	"strings"
)

// DataPrefix marks a line that carries an event record.
const DataPrefix = "data: "

// Frame is a single complete data record extracted from the byte stream.
type Frame struct {
	Index    int    // ordinal within this turn's stream, starting at 1
	Data     string // text after the "data: " prefix, expected to be JSON
	RawBytes int    // byte length of the line including its terminator
}

// Decoder maintains state across chunks to handle partial lines.
type Decoder struct {
	buffer     []byte
	frameIndex int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed processes raw bytes from the stream and returns the complete records
// they finish. The trailing fragment is kept for the next call.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buffer = append(d.buffer, chunk...)
	var frames []Frame

	for {
		idx := bytes.IndexByte(d.buffer, '\n')
		if idx == -1 {
			break
		}

		raw := d.buffer[:idx]
		d.buffer = d.buffer[idx+1:]
		line := strings.TrimSuffix(string(raw), "\r")

		data, ok := strings.CutPrefix(line, DataPrefix)
		if !ok {
			// event:, id:, comments and blank keep-alives
			continue
		}

		d.frameIndex++
		frames = append(frames, Frame{
			Index:    d.frameIndex,
			Data:     data,
			RawBytes: len(raw) + 1,
		})
	}

	// Reclaim the consumed prefix once nothing is pending.
	if len(d.buffer) == 0 {
		d.buffer = nil
	}
	return frames
}

// Pending reports how many bytes are waiting for a line terminator.
func (d *Decoder) Pending() int {
	return len(d.buffer)
}

// Close ends the stream. Unterminated trailing data is dropped, never
// emitted; the number of dropped bytes is returned.
func (d *Decoder) Close() int {
	n := len(d.buffer)
	d.buffer = nil
	return n
}
