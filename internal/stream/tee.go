package stream

import (
	"io"
)

// TeeReadCloser copies every byte read from a stream body into a sink, so
// a raw capture can be replayed through the decoder later.
type TeeReadCloser struct {
	reader io.Reader
	body   io.ReadCloser
	sink   io.Writer
}

// TeeBody wraps body so that reads also land in sink. Write errors on the
// sink surface as read errors, which ends the turn.
func TeeBody(body io.ReadCloser, sink io.Writer) *TeeReadCloser {
	return &TeeReadCloser{
		reader: io.TeeReader(body, sink),
		body:   body,
		sink:   sink,
	}
}

func (t *TeeReadCloser) Read(p []byte) (int, error) {
	return t.reader.Read(p)
}

// Close closes the body and, when the sink is closable, the sink too.
func (t *TeeReadCloser) Close() error {
	err := t.body.Close()
	if c, ok := t.sink.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
