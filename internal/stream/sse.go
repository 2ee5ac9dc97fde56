package stream

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"

	"scanorder/internal/port"
)

// SSEStream reads Server-Sent Events from a response body. It implements
// port.EventStream.
type SSEStream struct {
	body      io.ReadCloser
	r         *bufio.Reader
	closeOnce sync.Once
	closeErr  error
}

// NewSSEStream wraps an event-stream body.
func NewSSEStream(body io.ReadCloser) *SSEStream {
	return &SSEStream{
		body: body,
		r:    bufio.NewReader(body),
	}
}

// Next blocks until a complete event (terminated by a blank line) is read.
// Comments, id and retry fields are ignored. It returns io.EOF at the end of the stream.
func (s *SSEStream) Next() (port.RawEvent, error) {
	var ev port.RawEvent
	hasData := false

	for {
		line, err := s.r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return port.RawEvent{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if hasData {
				return ev, nil
			}
			ev = port.RawEvent{}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				ev.Name = value
			case "data":
				if hasData {
					ev.Data = append(ev.Data, '\n')
				}
				ev.Data = append(ev.Data, value...)
				hasData = true
			}
		}

		if err != nil {
			// An event cut off by EOF is never dispatched.
			return port.RawEvent{}, io.EOF
		}
	}
}

// Close releases the body. Safe to call more than once.
func (s *SSEStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
