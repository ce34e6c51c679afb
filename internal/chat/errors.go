package chat

import "fmt"

// TransportError means the request could not be opened or its body could
// not be read. StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("chat stream status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("chat stream status %d", e.StatusCode)
	case e.Err != nil:
		return "chat stream transport: " + e.Err.Error()
	}
	return "chat stream transport failure"
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is an error event sent by the server mid-stream.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }
